package metrics

import "time"

// Sink records engine metrics. Implementations must not block or return errors.
type Sink interface {
	// Cycle metrics
	CycleStarted()
	CycleCompleted(duration time.Duration, considered, attempted, skipped, deferred int, aborted bool)

	// Source metrics
	SourceFetched(source string, records int, err error)

	// Submission metrics
	SubmissionOutcome(outcome string)

	// Ledger metrics
	LedgerError(op string)
}

// Ledger operation labels for LedgerError.
const (
	LedgerOpLoad   = "load"
	LedgerOpAppend = "append"
	LedgerOpTrim   = "trim"
)
