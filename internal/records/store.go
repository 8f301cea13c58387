package records

import (
	"context"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/canvass/internal/store"
)

// Store appends committed records to the voters range and reads them back.
type Store struct {
	sub store.Substrate
	rng string
	now func() time.Time
}

func NewStore(sub store.Substrate) *Store {
	return &Store{sub: sub, rng: store.RangeVoters, now: time.Now}
}

// Append writes one record as a single row and returns its sequence number.
// A zero CapturedAt is stamped with the current time.
func (s *Store) Append(ctx context.Context, r VoterRecord) (int, error) {
	if r.CapturedAt.IsZero() {
		r.CapturedAt = s.now()
	}
	seq, err := s.sub.Append(ctx, s.rng, [][]string{r.row()})
	if err != nil {
		return 0, fmt.Errorf("append voter record: %w", err)
	}
	return seq, nil
}

// ListAll returns every record in append order.
func (s *Store) ListAll(ctx context.Context) ([]VoterRecord, error) {
	rows, err := s.sub.Get(ctx, s.rng)
	if err != nil {
		return nil, fmt.Errorf("read voter records: %w", err)
	}
	out := make([]VoterRecord, 0, len(rows))
	for i, cells := range rows {
		out = append(out, fromRow(i+1, cells))
	}
	return out, nil
}
