package imagedrop

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/imagedrop/internal/event"
)

// Decoder turns a blob into a data URI. Decode may block; it is never
// called on the scheduler.
type Decoder interface {
	Decode(ctx context.Context, blob event.Blob) (string, error)
}

// DataURIDecoder encodes blobs as data:<mime>;base64,<payload>.
type DataURIDecoder struct{}

// Decode reads the blob and base64-encodes it.
func (DataURIDecoder) Decode(ctx context.Context, blob event.Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rc, err := blob.Open()
	if err != nil {
		return "", fmt.Errorf("open blob: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return EncodeDataURI(blob.Type(), data), nil
}

// EncodeDataURI formats data as a base64 data URI. An empty mime becomes
// application/octet-stream.
func EncodeDataURI(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}

	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
