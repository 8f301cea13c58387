package gate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/canvass/internal/allowlist"
)

// Directory is the read side of the allow-list.
type Directory interface {
	Load(ctx context.Context) (*allowlist.Directory, error)
}

// Gate admits inbound senders that are on the allow-list. The list is read
// on every call because it can change between messages.
type Gate struct {
	dir    Directory
	logger *slog.Logger
}

func New(dir Directory, logger *slog.Logger) *Gate {
	return &Gate{dir: dir, logger: logger}
}

// IsAuthorized reports whether senderID may use the intake channel. A read
// failure denies the sender and is returned so the caller can log it.
func (g *Gate) IsAuthorized(ctx context.Context, senderID string) (bool, error) {
	_, ok, err := g.lookup(ctx, senderID)
	return ok, err
}

func (g *Gate) lookup(ctx context.Context, senderID string) (allowlist.Collector, bool, error) {
	id := strings.TrimSpace(senderID)
	if id == "" {
		return allowlist.Collector{}, false, nil
	}
	d, err := g.dir.Load(ctx)
	if err != nil {
		return allowlist.Collector{}, false, err
	}
	c, ok := d.Get(id)
	return c, ok, nil
}

// Admit wraps IsAuthorized with the audit log. Rejected senders get no
// reply; only this log line records them.
func (g *Gate) Admit(ctx context.Context, senderID, threadID string) bool {
	c, ok, err := g.lookup(ctx, senderID)
	if err != nil {
		g.logger.Error("authorization check failed", "sender_id", senderID, "thread_id", threadID, "error", err)
		return false
	}
	if !ok {
		g.logger.Warn("unauthorized sender dropped", "sender_id", senderID, "thread_id", threadID)
		return false
	}
	g.logger.Debug("sender admitted", "sender_id", c.ID, "collector", c.DisplayName, "thread_id", threadID)
	return true
}
