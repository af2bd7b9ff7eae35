// Package domain contains entity types without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxCandidateIDLen = 36

var (
	ErrCandidateIDEmpty   = errors.New("candidate id empty")
	ErrCandidateIDTooLong = errors.New("candidate id too long")
)

// CandidateID identifies one interviewee across sessions and reloads.
// It is issued by the external identity provider, never minted here,
// except for NewCandidateID which exists for tests and local setups.
type CandidateID string

func NewCandidateID() CandidateID {
	return CandidateID(uuid.NewString())
}

func ParseCandidateID(raw string) (CandidateID, error) {
	if raw == "" {
		return "", ErrCandidateIDEmpty
	}
	if len(raw) > MaxCandidateIDLen {
		return "", ErrCandidateIDTooLong
	}
	return CandidateID(raw), nil
}

func (id CandidateID) String() string { return string(id) }
