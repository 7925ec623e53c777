package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fredo838/sparp/internal/term"
)

// LineRenderer rewrites a single status line in place using carriage returns.
type LineRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

// NewLineRenderer writes to w, padding each line to the terminal width so a
// shorter line fully overwrites a longer previous one.
func NewLineRenderer(w io.Writer) *LineRenderer {
	return &LineRenderer{w: w, width: term.Width(w)}
}

func (l *LineRenderer) Render(s Snapshot) {
	l.write(s, "")
}

func (l *LineRenderer) Finish(s Snapshot) {
	l.write(s, "\n")
}

func (l *LineRenderer) write(s Snapshot, end string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := Format(s)
	if pad := l.width - 1 - len(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	_, _ = fmt.Fprint(l.w, "\r"+line+end)
}
