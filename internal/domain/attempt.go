package domain

import "time"

// AttemptRecord is the durable one-attempt lock for a candidate.
// Attempted only ever transitions false -> true; the upsert is idempotent.
type AttemptRecord struct {
	CandidateID CandidateID `json:"candidate_id"`
	Attempted   bool        `json:"attempted"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
