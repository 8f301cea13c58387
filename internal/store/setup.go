package store

import (
	"context"
	"fmt"
)

const (
	RangeCollectors = "collectors"
	RangeVoters     = "voters"
)

// RangeSpec names a range and labels its columns.
type RangeSpec struct {
	Name    string
	Columns []string
}

// Layout is the set of ranges the service reads and writes.
var Layout = []RangeSpec{
	{Name: RangeCollectors, Columns: []string{"collector_id", "display_name"}},
	{Name: RangeVoters, Columns: []string{
		"captured_at", "national_id", "family_name", "phone_number", "stance",
		"latitude", "longitude", "document_link", "extracted_text", "collector_id",
	}},
}

// RangeRegistrar is implemented by substrates that keep a catalogue of ranges.
type RangeRegistrar interface {
	EnsureRange(ctx context.Context, name string, columns []string) (bool, error)
}

// SetupResult reports which ranges were created and which already existed.
type SetupResult struct {
	Created  []string `json:"created"`
	Existing []string `json:"existing"`
}

// Setup registers every range in ranges. It stops at the first failure and
// returns what was done so far along with the error.
func Setup(ctx context.Context, reg RangeRegistrar, ranges []RangeSpec) (SetupResult, error) {
	res := SetupResult{Created: []string{}, Existing: []string{}}
	for _, rs := range ranges {
		created, err := reg.EnsureRange(ctx, rs.Name, rs.Columns)
		if err != nil {
			return res, fmt.Errorf("setup %s: %w", rs.Name, err)
		}
		if created {
			res.Created = append(res.Created, rs.Name)
		} else {
			res.Existing = append(res.Existing, rs.Name)
		}
	}
	return res, nil
}
