package records

import (
	"context"

	"github.com/MikeSquared-Agency/canvass/internal/allowlist"
)

type CollectorCount struct {
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
}

type Stats struct {
	TotalCollectors int                       `json:"totalCollectors"`
	TotalRecords    int                       `json:"totalRecords"`
	StanceCounts    map[Stance]int            `json:"stanceCounts"`
	PerCollector    map[string]CollectorCount `json:"perCollector"`
}

// Aggregate joins records against the collector list. Every collector
// appears in PerCollector even with no records. Records from unknown
// collectors and records with unrecognized stances count only toward
// TotalRecords.
func Aggregate(recs []VoterRecord, collectors []allowlist.Collector) Stats {
	st := Stats{
		TotalCollectors: len(collectors),
		TotalRecords:    len(recs),
		StanceCounts:    make(map[Stance]int, len(Stances)),
		PerCollector:    make(map[string]CollectorCount, len(collectors)),
	}
	for _, s := range Stances {
		st.StanceCounts[s] = 0
	}
	for _, c := range collectors {
		st.PerCollector[c.ID] = CollectorCount{DisplayName: c.DisplayName}
	}

	for _, r := range recs {
		if r.Stance.Valid() {
			st.StanceCounts[r.Stance]++
		}
		if cc, ok := st.PerCollector[r.CollectorID]; ok {
			cc.Count++
			st.PerCollector[r.CollectorID] = cc
		}
	}
	return st
}

type recordLister interface {
	ListAll(ctx context.Context) ([]VoterRecord, error)
}

type collectorLister interface {
	List(ctx context.Context) ([]allowlist.Collector, error)
}

// Aggregator computes Stats from the live stores.
type Aggregator struct {
	records    recordLister
	collectors collectorLister
}

func NewAggregator(recs recordLister, collectors collectorLister) *Aggregator {
	return &Aggregator{records: recs, collectors: collectors}
}

func (a *Aggregator) Compute(ctx context.Context) (Stats, error) {
	collectors, err := a.collectors.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	recs, err := a.records.ListAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Aggregate(recs, collectors), nil
}
