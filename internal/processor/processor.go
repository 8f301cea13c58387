package processor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/canvass/internal/hermes"
	"github.com/MikeSquared-Agency/canvass/internal/intake"
	"github.com/MikeSquared-Agency/canvass/internal/telegram"
)

// Admitter decides whether a sender may use the intake channel.
type Admitter interface {
	Admit(ctx context.Context, senderID, threadID string) bool
}

// Conversations applies one event to its thread's conversation.
type Conversations interface {
	Handle(ctx context.Context, ev intake.Event) (intake.Outcome, error)
}

// Replier sends a text reply to a chat.
type Replier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Publisher emits domain events. It may be nil when NATS is not configured.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor runs the intake pipeline for one inbound update: gate, state
// machine, reply, commit event.
type Processor struct {
	gate      Admitter
	machine   Conversations
	replier   Replier
	publisher Publisher
	logger    *slog.Logger
}

func New(g Admitter, m Conversations, r Replier, pub Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		gate:      g,
		machine:   m,
		replier:   r,
		publisher: pub,
		logger:    logger,
	}
}

// HandleUpdate is the NATS handler for canvass.telegram.update.
func (p *Processor) HandleUpdate(subject string, data []byte) {
	u, err := telegram.ParseUpdate(data)
	if err != nil {
		p.logger.Error("failed to parse update", "subject", subject, "error", err)
		return
	}
	p.Process(context.Background(), u)
}

// Process handles one update. Failures are logged and, when the sender is
// admitted, reported back to the chat; nothing is returned to the caller.
func (p *Processor) Process(ctx context.Context, u telegram.Update) {
	ev, ok := u.Event()
	if !ok {
		p.logger.Debug("ignoring update", "update_id", u.UpdateID)
		return
	}
	if !p.gate.Admit(ctx, ev.SenderID, ev.ThreadID) {
		return
	}

	out, err := p.machine.Handle(ctx, ev)
	switch {
	case errors.Is(err, intake.ErrCapability):
		p.logger.Warn("capability failed", "thread_id", ev.ThreadID, "sender_id", ev.SenderID, "error", err)
	case err != nil:
		p.logger.Error("conversation step failed", "thread_id", ev.ThreadID, "sender_id", ev.SenderID, "error", err)
	}

	if out.Reply != "" {
		p.reply(ctx, ev.ThreadID, out.Reply)
	}

	if out.Committed != nil {
		p.publishCommitted(ev, out)
	}
}

// reply answers on the chat the thread belongs to.
func (p *Processor) reply(ctx context.Context, threadID, text string) {
	chatID, ok := telegram.ChatIDFromThread(threadID)
	if !ok {
		p.logger.Error("cannot reply to thread", "thread_id", threadID)
		return
	}
	if err := p.replier.SendMessage(ctx, chatID, text); err != nil {
		p.logger.Error("failed to send reply", "thread_id", threadID, "error", err)
	}
}

func (p *Processor) publishCommitted(ev intake.Event, out intake.Outcome) {
	if p.publisher == nil {
		return
	}
	rec := out.Committed
	evt := hermes.VoterCommitted{
		EventID:        uuid.NewString(),
		SequenceNumber: rec.SequenceNumber,
		CollectorID:    rec.CollectorID,
		ThreadID:       ev.ThreadID,
		Stance:         string(rec.Stance),
		HasNationalID:  rec.NationalID != "",
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		CapturedAt:     rec.CapturedAt.UTC().Format(time.RFC3339),
	}
	if err := p.publisher.Publish(hermes.SubjectVoterCommitted, evt); err != nil {
		p.logger.Error("failed to publish voter committed", "sequence", rec.SequenceNumber, "error", err)
	}
}
