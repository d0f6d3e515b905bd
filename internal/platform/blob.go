package platform

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dshills/imagedrop/internal/event"
)

// ErrNotRegularFile is returned for directories, sockets and the like.
var ErrNotRegularFile = errors.New("not a regular file")

// FileBlob is a blob backed by a local file.
type FileBlob struct {
	path     string
	mimeType string
	size     int64
}

// NewFileBlob stats path and detects its MIME type.
func NewFileBlob(path string) (*FileBlob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return &FileBlob{
		path:     path,
		mimeType: detectMIMEType(f, filepath.Ext(path)),
		size:     info.Size(),
	}, nil
}

// Type returns the detected MIME type, or "" when unknown.
func (b *FileBlob) Type() string { return b.mimeType }

// Open opens the file for reading.
func (b *FileBlob) Open() (io.ReadCloser, error) { return os.Open(b.path) }

// Path returns the file path.
func (b *FileBlob) Path() string { return b.path }

// Size returns the file size at construction.
func (b *FileBlob) Size() int64 { return b.size }

// detectMIMEType sniffs the content first and falls back to the extension.
func detectMIMEType(r io.Reader, ext string) string {
	mtype, err := mimetype.DetectReader(r)
	if err == nil && mtype.String() != "application/octet-stream" {
		return mtype.String()
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return ""
}

// ClipboardItem is a clipboard entry wrapping a blob.
type ClipboardItem struct {
	Blob event.Blob
}

// Type returns the wrapped blob's type.
func (c ClipboardItem) Type() string {
	if c.Blob == nil {
		return ""
	}
	return c.Blob.Type()
}

// GetAsFile returns the wrapped blob.
func (c ClipboardItem) GetAsFile() (event.Blob, error) {
	if c.Blob == nil {
		return nil, errors.New("clipboard item has no file")
	}
	return c.Blob, nil
}

var (
	_ event.Blob = (*FileBlob)(nil)
	_ event.Item = ClipboardItem{}
)
