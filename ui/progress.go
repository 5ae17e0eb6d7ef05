// Package ui renders the terminal progress bar for chapter fetching.
package ui

import (
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type Progress struct {
	p *mpb.Progress
}

func NewProgress() *Progress {
	return &Progress{p: mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(os.Stderr),
		mpb.WithRefreshRate(120*time.Millisecond),
	)}
}

func (p *Progress) Wait() {
	p.p.Wait()
}

// ChapterBar returns a bar tracking fetched chapters out of total.
func (p *Progress) ChapterBar(name string, total int) *mpb.Bar {
	return p.p.New(int64(total),
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(name+"  "),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d chapters", decor.WCSyncWidth),
		),
	)
}
