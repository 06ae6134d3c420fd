package persistence

import (
	"time"

	"github.com/google/uuid"
)

// Campaign is one multi-iteration run aggregated onto a single branch.
//
//nolint:govet // struct alignment optimization not critical for this type
type Campaign struct {
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ID         string     `json:"id"`
	Task       string     `json:"task"`
	BaseBranch string     `json:"base_branch"`
	Branch     string     `json:"branch"` // aggregation branch
	Status     string     `json:"status"`
	Limit      int        `json:"limit"`
	Iterations int        `json:"iterations"`
}

// Attempt is one cycle: a single campaign iteration, or a standalone run when
// CampaignID is empty.
//
//nolint:govet // struct alignment optimization not critical for this type
type Attempt struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	ID            string    `json:"id"`
	CampaignID    string    `json:"campaign_id,omitempty"`
	Branch        string    `json:"branch"`
	SessionID     string    `json:"session_id,omitempty"`
	Status        string    `json:"status"`
	Feedback      string    `json:"feedback,omitempty"`
	CommitMessage string    `json:"commit_message,omitempty"`
	Iteration     int       `json:"iteration"`
	Retries       int       `json:"retries"` // launches used by the cycle
}

// Campaign status constants.
const (
	CampaignRunning  = "running"
	CampaignComplete = "complete" // mission complete signal observed
	CampaignFinished = "finished" // iteration limit reached
	CampaignAborted  = "aborted"
)

// Attempt status constants.
const (
	AttemptMerged  = "merged"
	AttemptPassed  = "passed" // standalone run that passed
	AttemptFailed  = "failed"
	AttemptErrored = "errored"
)

// ValidAttemptStatuses returns all valid attempt statuses.
func ValidAttemptStatuses() []string {
	return []string{AttemptMerged, AttemptPassed, AttemptFailed, AttemptErrored}
}

// IsValidAttemptStatus checks if a status is valid.
func IsValidAttemptStatus(status string) bool {
	for _, s := range ValidAttemptStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// NewID generates a record id.
func NewID() string {
	return uuid.NewString()
}
