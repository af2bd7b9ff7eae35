package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hiregen/coordinator/internal/domain"
)

var ErrNoChangeFeed = errors.New("store does not support change feeds")

// HTTPStore is an AttemptStore backed by the coordinator's attempts REST
// API, for controllers running outside the relay process.
type HTTPStore struct {
	base   string
	client *http.Client
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPStore) attemptURL(id domain.CandidateID) string {
	return s.base + "/api/attempts/" + url.PathEscape(id.String())
}

func (s *HTTPStore) GetAttempt(ctx context.Context, id domain.CandidateID) (domain.AttemptRecord, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.attemptURL(id), nil)
	if err != nil {
		return domain.AttemptRecord{}, false, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.AttemptRecord{}, false, fmt.Errorf("get attempt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.AttemptRecord{}, false, fmt.Errorf("get attempt: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Attempted bool `json:"attempted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.AttemptRecord{}, false, fmt.Errorf("get attempt: %w", err)
	}
	rec := domain.AttemptRecord{CandidateID: id, Attempted: body.Attempted}
	return rec, body.Attempted, nil
}

func (s *HTTPStore) UpsertAttempt(ctx context.Context, rec domain.AttemptRecord) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.attemptURL(rec.CandidateID), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upsert attempt: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// SubscribeAttempts is unsupported over plain HTTP; the ledger client
// degrades to polling-free operation.
func (s *HTTPStore) SubscribeAttempts(_ context.Context) (<-chan domain.AttemptRecord, func(), error) {
	return nil, nil, ErrNoChangeFeed
}
