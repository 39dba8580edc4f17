package output

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gitlab.com/d21d3q/gometers/internal/meter"
)

// Writer renders every snapshot it receives to w, one block per snapshot.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	opts   Options
}

func NewWriter(w io.Writer, f Format, opts Options) *Writer {
	return &Writer{w: w, format: f, opts: opts}
}

// Publish writes s. The context is unused; it makes Writer a dispatch sink.
func (w *Writer) Publish(_ context.Context, s meter.Snapshot) error {
	text, err := Render(s, w.format, w.opts)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.w, text)
	return err
}
