package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hiregen/coordinator/internal/domain"
)

func TestTranscriptAppendOrder(t *testing.T) {
	tr := NewTranscript()
	tr.Append(domain.SpeakerSystem, "Camera and microphone enabled")
	tr.Append(domain.SpeakerInterviewer, DefaultGreeting)
	tr.Append(domain.SpeakerCandidate, "Hi, I'm Sam")

	entries := tr.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Who != domain.SpeakerSystem || entries[2].Who != domain.SpeakerCandidate {
		t.Fatalf("entries out of order: %+v", entries)
	}
}

func TestTranscriptEntriesIsACopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(domain.SpeakerSystem, "original")

	entries := tr.Entries()
	entries[0].Text = "mutated"

	if tr.Entries()[0].Text != "original" {
		t.Fatal("callers must not be able to mutate the log through Entries")
	}
}

func TestTranscriptConcurrentAppend(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tr.Append(domain.SpeakerCandidate, fmt.Sprintf("line %d-%d", i, j))
				tr.Entries()
			}
		}(i)
	}
	wg.Wait()

	if tr.Len() != 200 {
		t.Fatalf("expected 200 entries, got %d", tr.Len())
	}
}
