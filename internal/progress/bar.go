package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// BarRenderer draws a progressbar/v3 bar. The bar is a spinner while the total is
// unknown, sized to the estimate when one was supplied, and resized to the exact
// total once the producer is exhausted.
type BarRenderer struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
	max int64
}

// NewBarRenderer creates a bar writing to w.
func NewBarRenderer(w io.Writer, estimate int64) *BarRenderer {
	max := int64(-1)
	if estimate > 0 {
		max = estimate
	}

	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("requests"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("req"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
	)

	return &BarRenderer{w: w, bar: bar, max: max}
}

func (b *BarRenderer) Render(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.update(s)
}

func (b *BarRenderer) Finish(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.update(s)
	_ = b.bar.Finish()
	_, _ = fmt.Fprintln(b.w)
	_, _ = fmt.Fprintln(b.w, Format(s))
}

func (b *BarRenderer) update(s Snapshot) {
	switch {
	case s.Exhausted && b.max != s.Seen:
		b.max = s.Seen
		b.bar.ChangeMax64(b.max)
	case !s.Exhausted && b.max > 0 && s.Done >= b.max:
		// the estimate was too low; fall back to a spinner until the total is known
		b.max = -1
		b.bar.ChangeMax64(b.max)
	}

	b.bar.Describe(FormatCounts(s))
	_ = b.bar.Set64(s.Done)
}
