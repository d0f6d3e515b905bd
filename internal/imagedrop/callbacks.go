package imagedrop

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
)

// InsertField returns a CallbackOK that inserts the string found at a gjson
// path of the upload response, e.g. "url" or "data.files.0.url". When the
// path is missing or not a string nothing is inserted and onMissing, if
// set, receives the reason.
func InsertField(path string, onMissing func(error)) CallbackOK {
	if path == "" {
		path = "@this"
	}
	return func(response any, insert InsertFunc) {
		raw, err := json.Marshal(response)
		if err != nil {
			if onMissing != nil {
				onMissing(fmt.Errorf("encode upload response: %w", err))
			}
			return
		}

		result := gjson.GetBytes(raw, path)
		if !result.Exists() || result.Type != gjson.String || result.Str == "" {
			if onMissing != nil {
				onMissing(fmt.Errorf("upload response has no string at %q: %s", path, raw))
			}
			return
		}
		insert(result.Str)
	}
}

// logNotifier is the default Notifier.
type logNotifier struct {
	logger *slog.Logger
}

// Alert logs the message at error level.
func (n logNotifier) Alert(message string) {
	n.logger.Error(message)
}
