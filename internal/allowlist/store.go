package allowlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/canvass/internal/store"
)

var (
	ErrMissingID     = errors.New("collector id is required")
	ErrAlreadyExists = errors.New("collector id already exists")
	ErrNotFound      = errors.New("collector id not found")
)

// Store keeps the collector allow-list in a substrate range.
//
// Add and Remove are read-modify-write sequences over a substrate with no
// transactions. Two concurrent mutations can lose one update; Remove in
// particular clears and rewrites the whole range, so the last writer wins.
// Updates are human-paced and rare, and this is accepted.
type Store struct {
	sub    store.Substrate
	rng    string
	logger *slog.Logger
}

func NewStore(sub store.Substrate, logger *slog.Logger) *Store {
	return &Store{sub: sub, rng: store.RangeCollectors, logger: logger}
}

// Load reads the current directory from the substrate.
func (s *Store) Load(ctx context.Context) (*Directory, error) {
	rows, err := s.sub.Get(ctx, s.rng)
	if err != nil {
		return nil, fmt.Errorf("read collectors: %w", err)
	}
	return FromRows(rows), nil
}

func (s *Store) List(ctx context.Context) ([]Collector, error) {
	d, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return d.List(), nil
}

func (s *Store) Add(ctx context.Context, collectorID, displayName string) error {
	id := strings.TrimSpace(collectorID)
	if id == "" {
		return ErrMissingID
	}
	d, err := s.Load(ctx)
	if err != nil {
		return err
	}
	c := Collector{ID: id, DisplayName: strings.TrimSpace(displayName)}
	if !d.Add(c) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	if _, err := s.sub.Append(ctx, s.rng, [][]string{{c.ID, c.DisplayName}}); err != nil {
		return fmt.Errorf("append collector: %w", err)
	}
	s.logger.Info("collector added", "collector_id", id)
	return nil
}

// Remove deletes a collector by clearing the range and rewriting the
// survivors in their original order. If the rewrite fails after the clear,
// the previous rows are written back on a best-effort basis.
func (s *Store) Remove(ctx context.Context, collectorID string) error {
	id := strings.TrimSpace(collectorID)
	if id == "" {
		return fmt.Errorf("%w: %q", ErrNotFound, collectorID)
	}
	rows, err := s.sub.Get(ctx, s.rng)
	if err != nil {
		return fmt.Errorf("read collectors: %w", err)
	}
	d := FromRows(rows)
	if !d.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := s.sub.Clear(ctx, s.rng); err != nil {
		return fmt.Errorf("clear collectors: %w", err)
	}
	if d.Len() == 0 {
		s.logger.Info("collector removed", "collector_id", id, "remaining", 0)
		return nil
	}
	if err := s.sub.Update(ctx, s.rng, d.Rows()); err != nil {
		s.logger.Error("rewrite collectors failed, restoring previous rows", "error", err)
		if restoreErr := s.sub.Update(ctx, s.rng, rows); restoreErr != nil {
			s.logger.Error("restore collectors failed", "error", restoreErr)
		}
		return fmt.Errorf("rewrite collectors: %w", err)
	}
	s.logger.Info("collector removed", "collector_id", id, "remaining", d.Len())
	return nil
}
