package ledger

import (
	"context"

	"github.com/hiregen/coordinator/internal/domain"
)

// StaticIdentity is an IdentityProvider for callers that already hold the
// candidate id. Core logic never reads ambient identity state; whoever
// constructs the controller passes one of these in.
type StaticIdentity domain.CandidateID

func (s StaticIdentity) CurrentCandidate(_ context.Context) (domain.CandidateID, error) {
	if s == "" {
		return "", ErrUnauthenticated
	}
	return domain.CandidateID(s), nil
}
