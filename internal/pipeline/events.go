package pipeline

import "time"

// Stage identifies a pipeline phase.
type Stage string

const (
	// StageIndex decodes trees, runs the rewriter and the namer.
	StageIndex Stage = "index"
	// StageTypecheck builds CFGs and runs inference on a worker copy.
	StageTypecheck Stage = "typecheck"
	// StageMerge folds worker results back into the master state.
	StageMerge Stage = "merge"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for a file (or for the whole run when File is empty).
type Event struct {
	RunID   string
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent is called from worker
// goroutines and must be goroutine-safe.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
