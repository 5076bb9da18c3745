package progress

import "sync/atomic"

// Event is the tagged union delivered to progress sinks. Sinks may be
// called from any worker goroutine; marshalling to a UI thread is the
// sink's responsibility.
type Event interface{ progressEvent() }

// ScanProgress carries the running file count from the scanner.
type ScanProgress struct {
	FilesSeen int64
}

// StageProgress reports hashing-stage completion counters.
type StageProgress struct {
	Stage string
	Done  int64
	Total int64
}

// Warning reports a non-fatal single-path problem (permission, stat,
// read error). The affected file is omitted or demoted, never fatal.
type Warning struct {
	Path    string
	Message string
}

// Done marks the end of an operation with a displayable summary.
type Done struct {
	Summary string
}

func (ScanProgress) progressEvent()  {}
func (StageProgress) progressEvent() {}
func (Warning) progressEvent()       {}
func (Done) progressEvent()          {}

// Sink receives progress events. A nil Sink discards everything.
type Sink func(Event)

// Emit delivers an event, tolerating a nil sink.
func (s Sink) Emit(e Event) {
	if s != nil {
		s(e)
	}
}

// StopToken is a cooperative cancellation flag: one writer (the
// controller), many readers (workers). Polled, never waited on -
// already-started reads run to completion.
type StopToken struct {
	stopped atomic.Bool
}

// Stop trips the flag. Safe to call more than once.
func (t *StopToken) Stop() { t.stopped.Store(true) }

// Stopped reports whether Stop has been called. Nil tokens never stop.
func (t *StopToken) Stopped() bool {
	return t != nil && t.stopped.Load()
}
