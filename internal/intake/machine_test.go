package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/canvass/internal/records"
)

type fakeImages struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeImages) FetchImage(_ context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("jpeg:" + ref), nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ []byte) (string, error) {
	return f.text, f.err
}

type fakeUploader struct {
	mu    sync.Mutex
	err   error
	names []string
}

func (f *fakeUploader) Upload(_ context.Context, name string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	return "https://drive.example/" + name, nil
}

type fakeRecords struct {
	mu   sync.Mutex
	err  error
	recs []records.VoterRecord
}

func (f *fakeRecords) Append(_ context.Context, r records.VoterRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.recs = append(f.recs, r)
	return len(f.recs), nil
}

type harness struct {
	machine  *Machine
	states   *MemoryStates
	images   *fakeImages
	extract  *fakeExtractor
	uploader *fakeUploader
	records  *fakeRecords
	now      time.Time
}

func newHarness() *harness {
	h := &harness{
		images:   &fakeImages{},
		extract:  &fakeExtractor{text: "ARAB REPUBLIC\nID 29801011234567\nCairo"},
		uploader: &fakeUploader{},
		records:  &fakeRecords{},
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	h.states = NewMemoryStates(DefaultTTL, clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.machine = NewMachine(h.states, h.images, h.extract, h.uploader, h.records, logger, WithClock(clock))
	return h
}

func (h *harness) send(t *testing.T, ev Event) Outcome {
	t.Helper()
	if ev.ThreadID == "" {
		ev.ThreadID = "chat-1"
	}
	if ev.SenderID == "" {
		ev.SenderID = "777"
	}
	out, err := h.machine.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("handle %s event: %v", ev.Kind, err)
	}
	return out
}

func imageEvent() Event { return Event{Kind: KindImage, ImageRef: "file-1"} }

func textEvent(s string) Event { return Event{Kind: KindText, Text: s} }

func locationEvent(lat, lon float64) Event {
	return Event{Kind: KindLocation, Latitude: lat, Longitude: lon}
}

func (h *harness) stored(t *testing.T, threadID string) (State, bool) {
	t.Helper()
	st, ok, err := h.states.Get(context.Background(), threadID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	return st, ok
}

func TestHandle_FullConversationCommitsOnce(t *testing.T) {
	h := newHarness()

	steps := []struct {
		ev   Event
		want Stage
	}{
		{imageEvent(), StageAwaitingFamilyName},
		{textEvent("  Hassan "), StageAwaitingPhone},
		{textEvent("01012345678"), StageAwaitingLocation},
		{locationEvent(30.0444, 31.2357), StageAwaitingStance},
		{textEvent("supportive"), StageIdle},
	}
	var last Outcome
	for i, s := range steps {
		last = h.send(t, s.ev)
		if last.Stage != s.want {
			t.Fatalf("step %d: expected stage %s, got %s", i, s.want, last.Stage)
		}
	}

	if len(h.records.recs) != 1 {
		t.Fatalf("expected 1 committed record, got %d", len(h.records.recs))
	}
	rec := h.records.recs[0]
	if rec.FamilyName != "Hassan" {
		t.Errorf("expected family name Hassan, got %q", rec.FamilyName)
	}
	if rec.PhoneNumber != "01012345678" {
		t.Errorf("expected phone 01012345678, got %q", rec.PhoneNumber)
	}
	if rec.Stance != records.StanceSupportive {
		t.Errorf("expected stance supportive, got %q", rec.Stance)
	}
	if rec.Latitude == nil || *rec.Latitude != 30.0444 || rec.Longitude == nil || *rec.Longitude != 31.2357 {
		t.Errorf("expected location 30.0444,31.2357, got %v,%v", rec.Latitude, rec.Longitude)
	}
	if rec.NationalID != "29801011234567" {
		t.Errorf("expected national id 29801011234567, got %q", rec.NationalID)
	}
	if rec.CollectorID != "777" {
		t.Errorf("expected collector 777, got %q", rec.CollectorID)
	}
	if !strings.HasPrefix(rec.DocumentLink, "https://drive.example/29801011234567_") {
		t.Errorf("unexpected document link %q", rec.DocumentLink)
	}
	if !rec.CapturedAt.Equal(h.now) {
		t.Errorf("expected captured at %v, got %v", h.now, rec.CapturedAt)
	}

	if last.Committed == nil || last.Committed.SequenceNumber != 1 {
		t.Errorf("expected committed record with sequence 1, got %+v", last.Committed)
	}
	if !strings.Contains(last.Reply, "#1") {
		t.Errorf("expected reply to mention the sequence number, got %q", last.Reply)
	}
	if _, ok := h.stored(t, "chat-1"); ok {
		t.Error("expected conversation to be discarded after commit")
	}

	// The next image starts a fresh conversation.
	out := h.send(t, imageEvent())
	if out.Stage != StageAwaitingFamilyName {
		t.Errorf("expected new conversation at %s, got %s", StageAwaitingFamilyName, out.Stage)
	}
}

func TestHandle_CommitsArabicStanceLabel(t *testing.T) {
	h := newHarness()
	h.send(t, imageEvent())
	h.send(t, textEvent("حسن"))
	h.send(t, textEvent("٠١٠١٢٣٤٥٦٧٨"))
	h.send(t, locationEvent(30.0444, 31.2357))

	out := h.send(t, textEvent(" محايد "))
	if out.Stage != StageIdle || out.Committed == nil {
		t.Fatalf("expected commit, got %s %+v", out.Stage, out.Committed)
	}
	if len(h.records.recs) != 1 {
		t.Fatalf("expected 1 committed record, got %d", len(h.records.recs))
	}
	if got := h.records.recs[0].Stance; got != records.StanceNeutral {
		t.Errorf("expected stance %q, got %q", records.StanceNeutral, got)
	}
	if got := h.records.recs[0].PhoneNumber; got != "01012345678" {
		t.Errorf("expected phone 01012345678, got %q", got)
	}
}

func TestHandle_ImageWhileAwaitingPhoneChangesNothing(t *testing.T) {
	h := newHarness()
	h.send(t, imageEvent())
	h.send(t, textEvent("Hassan"))

	before, _ := h.stored(t, "chat-1")
	h.now = h.now.Add(time.Minute)
	fetches := h.images.calls

	out := h.send(t, imageEvent())
	if out.Stage != StageAwaitingPhone {
		t.Errorf("expected stage %s, got %s", StageAwaitingPhone, out.Stage)
	}
	if out.Reply != promptPhone {
		t.Errorf("expected phone prompt, got %q", out.Reply)
	}
	if h.images.calls != fetches {
		t.Error("expected no image fetch outside the document stage")
	}
	after, _ := h.stored(t, "chat-1")
	if after != before {
		t.Errorf("expected state unchanged, got %+v want %+v", after, before)
	}
}

func TestHandle_RepromptsOnWrongInput(t *testing.T) {
	h := newHarness()

	out := h.send(t, textEvent("hello"))
	if out.Stage != StageAwaitingDocument || out.Reply != promptDocument {
		t.Errorf("expected document prompt, got %s %q", out.Stage, out.Reply)
	}
	if _, ok := h.stored(t, "chat-1"); !ok {
		t.Error("expected first event to start a conversation")
	}

	h.send(t, imageEvent())
	out = h.send(t, textEvent("   "))
	if out.Stage != StageAwaitingFamilyName || out.Reply != replyFamilyNameEmpty {
		t.Errorf("expected empty-name reprompt, got %s %q", out.Stage, out.Reply)
	}

	h.send(t, textEvent("Hassan"))
	out = h.send(t, textEvent("0101234567"))
	if out.Stage != StageAwaitingPhone {
		t.Errorf("expected to remain at %s, got %s", StageAwaitingPhone, out.Stage)
	}
	if !strings.Contains(out.Reply, "11 digits") {
		t.Errorf("expected length reason in reply, got %q", out.Reply)
	}

	h.send(t, textEvent("010-1234-5678"))
	out = h.send(t, textEvent("Cairo, Nasr City"))
	if out.Stage != StageAwaitingLocation || out.Reply != promptLocation {
		t.Errorf("expected location reprompt, got %s %q", out.Stage, out.Reply)
	}

	h.send(t, locationEvent(1, 2))
	out = h.send(t, textEvent("maybe"))
	if out.Stage != StageAwaitingStance || out.Reply != promptStance {
		t.Errorf("expected stance reprompt, got %s %q", out.Stage, out.Reply)
	}

	out = h.send(t, textEvent("NEUTRAL"))
	if out.Stage != StageIdle {
		t.Errorf("expected commit, got %s", out.Stage)
	}
	if got := h.records.recs[0].PhoneNumber; got != "01012345678" {
		t.Errorf("expected normalized phone, got %q", got)
	}
}

func TestHandle_CapabilityFailureKeepsState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"fetch", func(h *harness) { h.images.err = errors.New("telegram down") }},
		{"extract", func(h *harness) { h.extract.err = errors.New("vision quota") }},
		{"upload", func(h *harness) { h.uploader.err = errors.New("drive 503") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.send(t, textEvent("hi"))
			before, _ := h.stored(t, "chat-1")

			tt.setup(h)
			out, err := h.machine.Handle(context.Background(), Event{ThreadID: "chat-1", SenderID: "777", Kind: KindImage, ImageRef: "f"})
			if !errors.Is(err, ErrCapability) {
				t.Fatalf("expected ErrCapability, got %v", err)
			}
			if out.Reply != replyCapabilityError {
				t.Errorf("expected capability reply, got %q", out.Reply)
			}
			if out.Stage != StageAwaitingDocument {
				t.Errorf("expected stage %s, got %s", StageAwaitingDocument, out.Stage)
			}
			after, _ := h.stored(t, "chat-1")
			if after != before {
				t.Errorf("expected state unchanged, got %+v", after)
			}
			if len(h.records.recs) != 0 {
				t.Error("expected no record on capability failure")
			}
		})
	}
}

func TestHandle_CommitFailureKeepsCollectedFields(t *testing.T) {
	h := newHarness()
	h.send(t, imageEvent())
	h.send(t, textEvent("Hassan"))
	h.send(t, textEvent("01012345678"))
	h.send(t, locationEvent(30, 31))

	h.records.err = errors.New("substrate unavailable")
	out, err := h.machine.Handle(context.Background(), Event{ThreadID: "chat-1", SenderID: "777", Kind: KindText, Text: "opposed"})
	if err == nil {
		t.Fatal("expected commit error")
	}
	if out.Stage != StageAwaitingStance || out.Reply != replyCommitError {
		t.Errorf("expected commit error reply at stance, got %s %q", out.Stage, out.Reply)
	}
	st, ok := h.stored(t, "chat-1")
	if !ok || st.Stage != StageAwaitingStance || st.Partial.FamilyName != "Hassan" {
		t.Fatalf("expected collected fields kept, got %+v", st)
	}

	h.records.err = nil
	out = h.send(t, textEvent("opposed"))
	if out.Stage != StageIdle || len(h.records.recs) != 1 {
		t.Errorf("expected retry to commit once, got %s with %d records", out.Stage, len(h.records.recs))
	}
}

func TestHandle_MissingNationalIDUsesRandomObjectName(t *testing.T) {
	h := newHarness()
	h.extract.text = "blurry card 1234"
	h.send(t, imageEvent())
	if len(h.uploader.names) != 1 || !strings.HasPrefix(h.uploader.names[0], "card_") {
		t.Errorf("expected card_ object name, got %v", h.uploader.names)
	}
}

func TestHandle_CancelAndStart(t *testing.T) {
	h := newHarness()
	h.send(t, imageEvent())
	h.send(t, textEvent("Hassan"))

	out := h.send(t, textEvent("/start"))
	if out.Stage != StageAwaitingPhone || out.Reply != promptPhone {
		t.Errorf("expected /start to repeat the phone prompt, got %s %q", out.Stage, out.Reply)
	}

	out = h.send(t, textEvent("/cancel@canvass_bot"))
	if out.Reply != replyCancelled || out.Stage != StageIdle {
		t.Errorf("expected cancel reply, got %s %q", out.Stage, out.Reply)
	}
	if _, ok := h.stored(t, "chat-1"); ok {
		t.Error("expected conversation discarded after /cancel")
	}
}

func TestHandle_IdleConversationExpires(t *testing.T) {
	h := newHarness()
	h.send(t, imageEvent())
	h.send(t, textEvent("Hassan"))

	h.now = h.now.Add(DefaultTTL + time.Second)
	out := h.send(t, textEvent("01012345678"))
	if out.Stage != StageAwaitingDocument {
		t.Errorf("expected expired conversation to restart at %s, got %s", StageAwaitingDocument, out.Stage)
	}
}

func TestHandle_ResumesTransientStages(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.states.Put(ctx, State{ThreadID: "chat-1", Stage: StageCommitting, LastUpdated: h.now,
		Partial: Partial{FamilyName: "Hassan", PhoneNumber: "01012345678"}})

	out := h.send(t, textEvent("neutral"))
	if out.Stage != StageIdle {
		t.Errorf("expected committing state to resume at stance, got %s", out.Stage)
	}
}

func TestHandle_SerializesEventsPerThread(t *testing.T) {
	h := newHarness()
	const threads = 20

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ctx := context.Background()
			for _, ev := range []Event{imageEvent(), textEvent("Hassan"), textEvent("01012345678"), locationEvent(1, 2), textEvent("supportive")} {
				ev.ThreadID, ev.SenderID = id, id
				if _, err := h.machine.Handle(ctx, ev); err != nil {
					t.Errorf("thread %s: %v", id, err)
				}
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	if len(h.records.recs) != threads {
		t.Errorf("expected %d records, got %d", threads, len(h.records.recs))
	}
	if n := h.machine.locks.size(); n != 0 {
		t.Errorf("expected lock table drained, got %d entries", n)
	}
}
