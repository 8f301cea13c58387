package intake

import (
	"time"

	"github.com/MikeSquared-Agency/canvass/internal/records"
)

// Stage is the position of a conversation in the intake sequence.
type Stage string

const (
	StageAwaitingDocument   Stage = "awaiting_document"
	StageExtracting         Stage = "extracting"
	StageAwaitingFamilyName Stage = "awaiting_family_name"
	StageAwaitingPhone      Stage = "awaiting_phone"
	StageAwaitingLocation   Stage = "awaiting_location"
	StageAwaitingStance     Stage = "awaiting_stance"
	StageCommitting         Stage = "committing"
	StageIdle               Stage = "idle"
)

// EventKind classifies an inbound message.
type EventKind string

const (
	KindImage    EventKind = "image"
	KindText     EventKind = "text"
	KindLocation EventKind = "location"
)

// Event is one inbound message for a thread.
type Event struct {
	ThreadID  string
	SenderID  string
	Kind      EventKind
	ImageRef  string
	Text      string
	Latitude  float64
	Longitude float64
}

// Partial holds the record fields collected so far.
type Partial struct {
	CollectorID   string         `json:"collector_id"`
	ExtractedText string         `json:"extracted_text"`
	DocumentLink  string         `json:"document_link"`
	FamilyName    string         `json:"family_name"`
	PhoneNumber   string         `json:"phone_number"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	Stance        records.Stance `json:"stance,omitempty"`
}

// State is the stored conversation for one thread. Extracting and
// Committing are transient and never stored; Idle is represented by the
// absence of a stored state.
type State struct {
	ThreadID    string    `json:"thread_id"`
	Stage       Stage     `json:"stage"`
	Partial     Partial   `json:"partial"`
	LastUpdated time.Time `json:"last_updated"`
}

// resumable maps a stored stage to the stage the machine acts on. A state
// saved mid-transition by an older process falls back to the stage that
// precedes the transition.
func (s State) resumable() Stage {
	switch s.Stage {
	case StageExtracting, "":
		return StageAwaitingDocument
	case StageCommitting:
		return StageAwaitingStance
	}
	return s.Stage
}

// Outcome is what one event produced.
type Outcome struct {
	Reply     string
	Stage     Stage
	Committed *records.VoterRecord
}
