// Package sqlite provides the durable attempt store. One row per
// candidate; the attempted flag only ever moves false -> true, so
// last-writer-wins upserts are safe.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hiregen/coordinator/internal/domain"
)

type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex

	subMu   sync.Mutex
	subs    map[int]chan domain.AttemptRecord
	nextSub int
}

// Open opens or creates the attempts database in the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(dir, "attempts.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS interview_attempts (
			candidate_id TEXT PRIMARY KEY,
			attempted    INTEGER NOT NULL DEFAULT 0,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create attempts table: %w", err)
	}

	return &Store{
		db:   db,
		path: dbPath,
		subs: make(map[int]chan domain.AttemptRecord),
	}, nil
}

// GetAttempt returns the record for id, with ok=false when absent.
func (s *Store) GetAttempt(ctx context.Context, id domain.CandidateID) (domain.AttemptRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		attempted int
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT attempted, updated_at FROM interview_attempts WHERE candidate_id = ?`,
		string(id),
	).Scan(&attempted, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.AttemptRecord{}, false, nil
	}
	if err != nil {
		return domain.AttemptRecord{}, false, fmt.Errorf("get attempt: %w", err)
	}
	return domain.AttemptRecord{
		CandidateID: id,
		Attempted:   attempted != 0,
		UpdatedAt:   updatedAt,
	}, true, nil
}

// UpsertAttempt stores rec idempotently. Calling it twice with the same
// candidate leaves the durable state identical to calling it once.
func (s *Store) UpsertAttempt(ctx context.Context, rec domain.AttemptRecord) error {
	attempted := 0
	if rec.Attempted {
		attempted = 1
	}
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interview_attempts (candidate_id, attempted, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(candidate_id) DO UPDATE SET
			attempted  = excluded.attempted,
			updated_at = CURRENT_TIMESTAMP`,
		string(rec.CandidateID), attempted,
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}

	s.notify(rec)
	return nil
}

// SubscribeAttempts yields change events until cancel is called. Slow
// subscribers miss events rather than block writers.
func (s *Store) SubscribeAttempts(ctx context.Context) (<-chan domain.AttemptRecord, func(), error) {
	ch := make(chan domain.AttemptRecord, 16)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

func (s *Store) notify(rec domain.AttemptRecord) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}
