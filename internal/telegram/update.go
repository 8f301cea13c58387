package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/canvass/internal/intake"
)

// Update is the subset of a Bot API update the intake pipeline reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from,omitempty"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Document  *Document   `json:"document,omitempty"`
	Location  *Location   `json:"location,omitempty"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

// Document is a file sent without compression. Collectors often send card
// photos this way to keep them sharp.
type Document struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ParseUpdate decodes a raw update from the webhook or the message bus.
func ParseUpdate(data []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return Update{}, fmt.Errorf("parse telegram update: %w", err)
	}
	return u, nil
}

// ThreadID is the conversation key for a chat.
func ThreadID(chatID int64) string {
	return "telegram/" + strconv.FormatInt(chatID, 10)
}

// ChatIDFromThread reverses ThreadID.
func ChatIDFromThread(threadID string) (int64, bool) {
	raw, ok := strings.CutPrefix(threadID, "telegram/")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

// Event classifies the update's message. It reports false for updates the
// intake pipeline does not act on: edits, stickers, voice notes, messages
// without a sender.
func (u Update) Event() (intake.Event, bool) {
	m := u.Message
	if m == nil || m.From == nil {
		return intake.Event{}, false
	}
	ev := intake.Event{
		ThreadID: ThreadID(m.Chat.ID),
		SenderID: strconv.FormatInt(m.From.ID, 10),
	}

	switch {
	case len(m.Photo) > 0:
		ev.Kind = intake.KindImage
		ev.ImageRef = largestPhoto(m.Photo).FileID
	case m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/"):
		ev.Kind = intake.KindImage
		ev.ImageRef = m.Document.FileID
	case m.Location != nil:
		ev.Kind = intake.KindLocation
		ev.Latitude = m.Location.Latitude
		ev.Longitude = m.Location.Longitude
	case m.Text != "":
		ev.Kind = intake.KindText
		ev.Text = m.Text
	default:
		return intake.Event{}, false
	}
	return ev, true
}

// largestPhoto picks the highest resolution variant. Telegram lists sizes
// smallest first but the order is not documented as stable.
func largestPhoto(sizes []PhotoSize) PhotoSize {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}
