package imagedrop

import (
	"net/http"
	"strings"
)

// DefaultUploadMethod is used when UploadConfig.Method is empty.
const DefaultUploadMethod = http.MethodPost

// InsertFunc inserts value as an image embed at the current insertion
// point. Only the first call inserts.
type InsertFunc func(value any)

// CallbackOK receives the parsed body of a successful upload and decides
// what to insert. Not calling insert means nothing is inserted.
type CallbackOK func(response any, insert InsertFunc)

// CallbackKO receives a failed upload. Nothing is inserted.
type CallbackKO func(err *UploadError)

// Config configures a Handler.
type Config struct {
	// UploadImage enables uploading. When nil every decoded image is
	// inserted directly as a data URI.
	UploadImage *UploadConfig
}

// UploadConfig configures the upload step.
//
//	Field       Default                      Notes
//	URL         none                         required
//	Method      POST                         upper-cased
//	Headers     none                         copied at construction
//	CallbackOK  insert(response)             raw parsed body is inserted
//	CallbackKO  Notifier.Alert(err.Error())
type UploadConfig struct {
	URL        string
	Method     string
	Headers    map[string]string
	CallbackOK CallbackOK
	CallbackKO CallbackKO
}

// DefaultCallbackOK inserts the parsed response as is.
func DefaultCallbackOK(response any, insert InsertFunc) {
	insert(response)
}

// AlertCallbackKO returns a CallbackKO that shows the failure through n.
func AlertCallbackKO(n Notifier) CallbackKO {
	return func(err *UploadError) {
		n.Alert(err.Error())
	}
}

// normalize validates c and returns a copy with defaults applied.
func (c *UploadConfig) normalize(n Notifier) (*UploadConfig, error) {
	if c == nil {
		return nil, nil
	}
	if strings.TrimSpace(c.URL) == "" {
		return nil, ErrMissingUploadURL
	}

	out := &UploadConfig{
		URL:        c.URL,
		Method:     strings.ToUpper(strings.TrimSpace(c.Method)),
		Headers:    make(map[string]string, len(c.Headers)),
		CallbackOK: c.CallbackOK,
		CallbackKO: c.CallbackKO,
	}
	if out.Method == "" {
		out.Method = DefaultUploadMethod
	}
	for k, v := range c.Headers {
		out.Headers[k] = v
	}
	if out.CallbackOK == nil {
		out.CallbackOK = DefaultCallbackOK
	}
	if out.CallbackKO == nil {
		out.CallbackKO = AlertCallbackKO(n)
	}
	return out, nil
}
