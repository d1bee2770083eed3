package domain

import "time"

const (
	PlaceholderTitle   = "N/A"
	PlaceholderCompany = "Unknown"
)

// JobRecord is one candidate posting after normalization.
// Identity is the canonical posting URL and the only dedup/ledger key;
// Source is diagnostic and never part of identity.
type JobRecord struct {
	Identity string `json:"identity"`
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location,omitempty"`
	Source   string `json:"source"`
	URL      string `json:"url"` // as scraped, before canonicalization
}

// AppliedEntry is one ledger row.
type AppliedEntry struct {
	Timestamp time.Time
	Title     string
	Company   string
	Identity  string
}

// Profile is the applicant contact data submitted with every application.
type Profile struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Location    string `json:"location"`
	JobType     string `json:"job_type"`
	CoverLetter string `json:"cover_letter,omitempty"`
}

type CycleResult struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Considered int       `json:"considered"`
	Attempted  int       `json:"attempted"`
	Submitted  int       `json:"submitted"`
	Skipped    int       `json:"skipped"`
	Deferred   int       `json:"deferred"` // infrastructure failures, retried next cycle
	Aborted    bool      `json:"aborted"`
	Error      string    `json:"error,omitempty"`
}
