package session

import (
	"sync"
	"time"

	"github.com/hiregen/coordinator/internal/domain"
)

// Transcript is the append-only chat log of one session. It is never
// truncated while the session is mounted.
type Transcript struct {
	mu      sync.RWMutex
	entries []domain.TranscriptEntry
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Append(who domain.Speaker, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, domain.TranscriptEntry{
		Who:  who,
		Text: text,
		Time: time.Now(),
	})
}

// Entries returns a copy of the log in order.
func (t *Transcript) Entries() []domain.TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
