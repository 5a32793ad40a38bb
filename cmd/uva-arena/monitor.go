package main

import (
	"github.com/cheggaaa/pb/v3"

	"github.com/amritoo/uva-arena/internal/fetch"
)

// barMonitor renders a task's progress as a terminal progress bar. It runs
// on the task's worker goroutine, so it only pokes counters into the bar.
type barMonitor struct {
	bar *pb.ProgressBar
}

func (m *barMonitor) OnProgress(t *fetch.Task) {
	if m.bar == nil {
		m.bar = pb.Start64(t.TotalBytes())
		m.bar.Set(pb.Bytes, true)
	}
	m.bar.SetTotal(t.TotalBytes())
	m.bar.SetCurrent(t.DownloadedBytes())
}

func (m *barMonitor) OnFinish(t *fetch.Task) {
	if m.bar == nil {
		return
	}
	m.bar.SetTotal(t.TotalBytes())
	m.bar.SetCurrent(t.DownloadedBytes())
	m.bar.Finish()
}
