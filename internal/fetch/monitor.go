package fetch

// Monitor observes one task. Callbacks run synchronously on the task's own
// worker goroutine in registration order; a monitor that blocks delays the
// download.
type Monitor interface {
	// OnProgress is called after counter updates, throttled to the task's
	// report interval.
	OnProgress(t *Task)

	// OnFinish is called exactly once when the task reaches Finished, after
	// the last progress report of the final attempt. It is never throttled.
	OnFinish(t *Task)
}

// MonitorFunc adapts plain functions to the Monitor interface. Either field
// may be nil.
type MonitorFunc struct {
	Progress func(*Task)
	Finish   func(*Task)
}

func (m MonitorFunc) OnProgress(t *Task) {
	if m.Progress != nil {
		m.Progress(t)
	}
}

func (m MonitorFunc) OnFinish(t *Task) {
	if m.Finish != nil {
		m.Finish(t)
	}
}
