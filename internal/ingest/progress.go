package ingest

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// ProgressReporter receives one Increment per inserted row.
type ProgressReporter interface {
	Start(total int)
	Increment()
	Finish()
}

// ChunkProgress draws a bar on stderr.
type ChunkProgress struct {
	desc string
	bar  *progressbar.ProgressBar
}

// NewChunkProgress returns nil when disabled so callers can skip reporting.
func NewChunkProgress(enabled bool, desc string) ProgressReporter {
	if !enabled {
		return nil
	}
	return &ChunkProgress{desc: desc}
}

func (p *ChunkProgress) Start(total int) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(p.desc),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *ChunkProgress) Increment() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *ChunkProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

// DefaultProgressEnabled reports whether stderr is a terminal.
func DefaultProgressEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
