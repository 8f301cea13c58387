package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/canvass/internal/records"
)

// ErrCapability marks a failure of an external capability (image fetch,
// extraction, upload). The conversation is left as it was.
var ErrCapability = errors.New("external capability failed")

// ImageSource downloads the bytes behind an inbound image reference.
type ImageSource interface {
	FetchImage(ctx context.Context, ref string) ([]byte, error)
}

// Extractor turns a document image into text.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Uploader stores a document image and returns a retrieval link.
type Uploader interface {
	Upload(ctx context.Context, name string, image []byte) (string, error)
}

// RecordAppender commits a finished record.
type RecordAppender interface {
	Append(ctx context.Context, r records.VoterRecord) (int, error)
}

// Machine sequences intake conversations. Events for the same thread are
// handled one at a time; different threads proceed in parallel.
type Machine struct {
	states    StateStore
	images    ImageSource
	extractor Extractor
	uploader  Uploader
	records   RecordAppender
	locks     *threadLocks
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func NewMachine(states StateStore, images ImageSource, ext Extractor, up Uploader, recs RecordAppender, logger *slog.Logger, opts ...Option) *Machine {
	m := &Machine{
		states:    states,
		images:    images,
		extractor: ext,
		uploader:  up,
		records:   recs,
		locks:     newThreadLocks(),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle applies one event to its thread's conversation and returns the
// reply to send. The reply is set even when an error is returned; the error
// is for logging.
func (m *Machine) Handle(ctx context.Context, ev Event) (Outcome, error) {
	unlock := m.locks.Lock(ev.ThreadID)
	defer unlock()

	st, found, err := m.states.Get(ctx, ev.ThreadID)
	if err != nil {
		return Outcome{Reply: replyStateError}, fmt.Errorf("load conversation: %w", err)
	}
	if !found {
		st = State{ThreadID: ev.ThreadID, Stage: StageAwaitingDocument}
	}
	st.Stage = st.resumable()

	if ev.Kind == KindText {
		switch {
		case isCommand(ev.Text, "cancel"):
			if err := m.states.Delete(ctx, ev.ThreadID); err != nil {
				return Outcome{Reply: replyStateError, Stage: st.Stage}, fmt.Errorf("cancel conversation: %w", err)
			}
			m.logger.Info("conversation cancelled", "thread_id", ev.ThreadID, "stage", st.Stage)
			return Outcome{Reply: replyCancelled, Stage: StageIdle}, nil
		case isCommand(ev.Text, "start"):
			return Outcome{Reply: promptFor(st.Stage), Stage: st.Stage}, nil
		}
	}

	next, out, stepErr := m.step(ctx, st, ev)

	switch {
	case out.Stage == StageIdle:
		if err := m.states.Delete(ctx, ev.ThreadID); err != nil {
			m.logger.Error("discard committed conversation", "thread_id", ev.ThreadID, "error", err)
		}
	case next != nil:
		next.LastUpdated = m.now()
		if err := m.states.Put(ctx, *next); err != nil {
			return Outcome{Reply: replyStateError, Stage: st.Stage}, fmt.Errorf("save conversation: %w", err)
		}
	case !found:
		// First event of a new thread starts the conversation even when it
		// only earns a re-prompt.
		st.LastUpdated = m.now()
		if err := m.states.Put(ctx, st); err != nil {
			return Outcome{Reply: replyStateError, Stage: st.Stage}, fmt.Errorf("save conversation: %w", err)
		}
	}
	return out, stepErr
}

// step computes the transition for one event. It returns the new state to
// store, or nil when the stored state must stay untouched.
func (m *Machine) step(ctx context.Context, st State, ev Event) (*State, Outcome, error) {
	stay := Outcome{Reply: promptFor(st.Stage), Stage: st.Stage}

	switch st.Stage {
	case StageAwaitingDocument:
		if ev.Kind != KindImage {
			return nil, stay, nil
		}
		return m.captureDocument(ctx, st, ev)

	case StageAwaitingFamilyName:
		if ev.Kind != KindText {
			return nil, stay, nil
		}
		name := strings.TrimSpace(ev.Text)
		if name == "" {
			return nil, Outcome{Reply: replyFamilyNameEmpty, Stage: st.Stage}, nil
		}
		st.Partial.FamilyName = name
		return advance(st, StageAwaitingPhone)

	case StageAwaitingPhone:
		if ev.Kind != KindText {
			return nil, stay, nil
		}
		check := ValidatePhone(ev.Text)
		if !check.Valid {
			return nil, Outcome{Reply: replyPhoneInvalid(check.Reason), Stage: st.Stage}, nil
		}
		st.Partial.PhoneNumber = check.Normalized
		return advance(st, StageAwaitingLocation)

	case StageAwaitingLocation:
		if ev.Kind != KindLocation {
			return nil, stay, nil
		}
		lat, lon := ev.Latitude, ev.Longitude
		st.Partial.Latitude, st.Partial.Longitude = &lat, &lon
		return advance(st, StageAwaitingStance)

	case StageAwaitingStance:
		if ev.Kind != KindText {
			return nil, stay, nil
		}
		stance, ok := records.ParseStance(ev.Text)
		if !ok {
			return nil, stay, nil
		}
		st.Partial.Stance = stance
		st.Stage = StageCommitting
		return m.commit(ctx, st, ev)
	}

	return nil, stay, fmt.Errorf("unexpected stage %q", st.Stage)
}

func advance(st State, to Stage) (*State, Outcome, error) {
	st.Stage = to
	return &st, Outcome{Reply: promptFor(to), Stage: to}, nil
}

func (m *Machine) captureDocument(ctx context.Context, st State, ev Event) (*State, Outcome, error) {
	failed := Outcome{Reply: replyCapabilityError, Stage: StageAwaitingDocument}
	m.logger.Debug("extracting document", "thread_id", ev.ThreadID, "stage", StageExtracting)

	image, err := m.images.FetchImage(ctx, ev.ImageRef)
	if err != nil {
		return nil, failed, fmt.Errorf("%w: fetch image: %v", ErrCapability, err)
	}
	text, err := m.extractor.ExtractText(ctx, image)
	if err != nil {
		return nil, failed, fmt.Errorf("%w: extract text: %v", ErrCapability, err)
	}
	link, err := m.uploader.Upload(ctx, objectName(ExtractNationalID(text), m.now()), image)
	if err != nil {
		return nil, failed, fmt.Errorf("%w: upload image: %v", ErrCapability, err)
	}

	st.Partial = Partial{
		CollectorID:   ev.SenderID,
		ExtractedText: text,
		DocumentLink:  link,
	}
	m.logger.Info("document captured", "thread_id", ev.ThreadID, "sender_id", ev.SenderID, "text_len", len(text))
	return advance(st, StageAwaitingFamilyName)
}

// commit appends the finished record. On failure nothing is stored and the
// conversation stays at the stance question.
func (m *Machine) commit(ctx context.Context, st State, ev Event) (*State, Outcome, error) {
	p := st.Partial
	collector := p.CollectorID
	if collector == "" {
		collector = ev.SenderID
	}
	rec := records.VoterRecord{
		CapturedAt:    m.now().UTC(),
		NationalID:    ExtractNationalID(p.ExtractedText),
		FamilyName:    p.FamilyName,
		PhoneNumber:   p.PhoneNumber,
		Stance:        p.Stance,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		DocumentLink:  p.DocumentLink,
		ExtractedText: p.ExtractedText,
		CollectorID:   collector,
	}

	seq, err := m.records.Append(ctx, rec)
	if err != nil {
		return nil, Outcome{Reply: replyCommitError, Stage: StageAwaitingStance}, fmt.Errorf("commit record: %w", err)
	}
	rec.SequenceNumber = seq
	m.logger.Info("record committed", "thread_id", ev.ThreadID, "collector_id", collector, "sequence", seq)
	return nil, Outcome{Reply: replyCommitted(seq, rec.FamilyName), Stage: StageIdle, Committed: &rec}, nil
}

// objectName names an uploaded card image after the national ID when one
// was read, and after a random ID otherwise.
func objectName(nationalID string, now time.Time) string {
	if nationalID != "" {
		return fmt.Sprintf("%s_%d.jpg", nationalID, now.UnixMilli())
	}
	return fmt.Sprintf("card_%s.jpg", uuid.NewString())
}
