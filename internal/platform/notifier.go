package platform

import (
	"fmt"
	"io"
	"sync"

	"github.com/dshills/imagedrop/internal/imagedrop"
)

// WriterNotifier writes alerts to an io.Writer, one per line.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Alert implements imagedrop.Notifier.
func (n *WriterNotifier) Alert(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.w, "alert: %s\n", message)
}

var _ imagedrop.Notifier = (*WriterNotifier)(nil)
