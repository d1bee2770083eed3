// Package apply submits applications to job postings.
package apply

import (
	"context"
	"log"
	"runtime/debug"

	"jobbot-engine/internal/domain"
)

type Outcome int

const (
	// Unreachable: the posting could not be worked on at all (resume missing,
	// page never loaded). Not logged; retried next cycle.
	Unreachable Outcome = iota
	// Attempted: the site was reached but submission is not confirmed.
	Attempted
	// Submitted: the form post was accepted.
	Submitted
)

func (o Outcome) String() string {
	switch o {
	case Attempted:
		return "attempted"
	case Submitted:
		return "submitted"
	default:
		return "unreachable"
	}
}

// Confirmed reports whether submission is known to have succeeded.
func (o Outcome) Confirmed() bool { return o == Submitted }

// Logged reports whether the attempt belongs in the applied ledger.
func (o Outcome) Logged() bool { return o != Unreachable }

type Submitter interface {
	Submit(ctx context.Context, job domain.JobRecord, profile domain.Profile, resumePath string) Outcome
}

type SubmitterFunc func(ctx context.Context, job domain.JobRecord, profile domain.Profile, resumePath string) Outcome

func (f SubmitterFunc) Submit(ctx context.Context, job domain.JobRecord, profile domain.Profile, resumePath string) Outcome {
	return f(ctx, job, profile, resumePath)
}

// Guard turns a panicking submission into Attempted.
func Guard(s Submitter) Submitter {
	return SubmitterFunc(func(ctx context.Context, job domain.JobRecord, profile domain.Profile, resumePath string) (out Outcome) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[apply] panic url=%s: %v\n%s", job.URL, r, debug.Stack())
				out = Attempted
			}
		}()
		return s.Submit(ctx, job, profile, resumePath)
	})
}
