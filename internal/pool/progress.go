package pool

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

type progress interface {
	Add()
	Finish()
}

type noProgress struct{}

func (noProgress) Add()    {}
func (noProgress) Finish() {}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p barProgress) Add()    { _ = p.bar.Add(1) }
func (p barProgress) Finish() { _ = p.bar.Finish() }

// newProgress returns a terminal progress bar for total steps, or a no-op
// when w is nil or not a terminal.
func newProgress(w io.Writer, total int) progress {
	if !isTerminal(w) {
		return noProgress{}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("takes"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
	return barProgress{bar: bar}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
