package alerts

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Writer prints alerts, colored when writing to a terminal.
type Writer struct {
	w           io.Writer
	color       bool
	showDetails bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithColor forces color on or off.
func WithColor(on bool) WriterOption {
	return func(w *Writer) { w.color = on }
}

// WithoutDetails prints only the first line of each alert.
func WithoutDetails() WriterOption {
	return func(w *Writer) { w.showDetails = false }
}

// NewWriter creates a Writer for w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	aw := &Writer{w: w, color: isTerminal(w), showDetails: true}
	for _, opt := range opts {
		opt(aw)
	}
	return aw
}

// Write prints the alert followed by its details.
func (w *Writer) Write(a *Alert) error {
	line := a.String()
	if w.color {
		line = a.Level.color() + line + reset
	}
	if _, err := fmt.Fprintln(w.w, line); err != nil {
		return err
	}
	if !w.showDetails {
		return nil
	}
	for _, d := range a.Details {
		if _, err := fmt.Fprintf(w.w, "   %s\n", d); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
