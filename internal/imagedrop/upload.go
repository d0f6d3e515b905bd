package imagedrop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// uploadRequest is the request body sent to the upload endpoint.
type uploadRequest struct {
	Image string `json:"image"`
}

// Uploader sends one data URI to the configured endpoint.
type Uploader struct {
	client  Doer
	url     string
	method  string
	headers map[string]string
}

// NewUploader creates an uploader for cfg. A nil client means
// http.DefaultClient.
func NewUploader(cfg UploadConfig, client Doer) *Uploader {
	if client == nil {
		client = http.DefaultClient
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = DefaultUploadMethod
	}
	return &Uploader{
		client:  client,
		url:     cfg.URL,
		method:  method,
		headers: cfg.Headers,
	}
}

// Upload performs a single request. A 2xx response returns the parsed JSON
// body. Any other status returns an *UploadError; transport failures and
// unparseable bodies return other errors. Nothing is retried.
func (u *Uploader) Upload(ctx context.Context, dataURI string) (any, error) {
	payload, err := json.Marshal(uploadRequest{Image: dataURI})
	if err != nil {
		return nil, fmt.Errorf("encode upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, u.method, u.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range u.headers {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s %s: %w", u.method, u.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UploadError{
			Code: resp.StatusCode,
			Type: statusText(resp),
			Body: string(body),
		}
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, &ResponseError{Status: resp.StatusCode, Body: string(body), Err: err}
	}
	return value, nil
}

// statusText returns the reason phrase of resp, e.g. "Internal Server Error".
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
