// Package render formats viva data for the terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Writer wraps an io.Writer with line-oriented helpers.
type Writer struct {
	out io.Writer
}

// NewWriter creates a Writer that writes to the given io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w}
}

// Stdout returns a Writer that writes to os.Stdout.
func Stdout() *Writer {
	return NewWriter(os.Stdout)
}

// Print writes s as is.
func (w *Writer) Print(s string) {
	fmt.Fprint(w.out, s)
}

// Println writes formatted text with newline.
func (w *Writer) Println(format string, args ...any) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Empty writes an empty state message.
func (w *Writer) Empty(msg string) {
	fmt.Fprintln(w.out, msg)
}

// ScoreBar draws a 0-10 score as a ten cell bar.
func ScoreBar(score float64) string {
	n := int(score + 0.5)
	n = max(0, min(10, n))
	return strings.Repeat("█", n) + strings.Repeat("░", 10-n)
}

// Percent formats a ratio as a percentage.
func Percent(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}

// Truncate shortens a string to max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
