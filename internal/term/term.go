// Package term answers the one question the status line renderer has about its
// output: how wide is the terminal it is writing to.
package term

import (
	"io"
	"os"
)

// DefaultWidth is used when the writer is not a terminal or its size is unknown.
const DefaultWidth = 80

// Width returns the column count of the terminal behind w, or DefaultWidth when w
// is not an *os.File attached to a terminal.
func Width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultWidth
	}
	cols, ok := fileWidth(f)
	if !ok || cols <= 0 {
		return DefaultWidth
	}
	return cols
}

// IsTerminal reports whether w is an *os.File whose size can be queried.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	_, ok = fileWidth(f)
	return ok
}
