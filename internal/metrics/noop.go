package metrics

import "time"

// NoopSink is used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) CycleStarted()                                          {}
func (n *NoopSink) CycleCompleted(time.Duration, int, int, int, int, bool) {}
func (n *NoopSink) SourceFetched(source string, records int, err error)    {}
func (n *NoopSink) SubmissionOutcome(outcome string)                       {}
func (n *NoopSink) LedgerError(op string)                                  {}
