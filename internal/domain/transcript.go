package domain

import "time"

// Speaker tags who produced a transcript entry.
type Speaker string

const (
	SpeakerSystem      Speaker = "system"
	SpeakerCandidate   Speaker = "candidate"
	SpeakerInterviewer Speaker = "interviewer"
)

// TranscriptEntry is one line of the session chat log.
type TranscriptEntry struct {
	Who  Speaker   `json:"who"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}
