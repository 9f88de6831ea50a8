package scope

import (
	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// VisibleProspects returns the prospects sc may read, newest first.
func VisibleProspects(store *partition.Store, sc Scope, f schema.ProspectFilter) ([]schema.Prospect, error) {
	snap, err := LoadProspects(store, sc)
	if err != nil {
		return nil, err
	}
	return filter(snap.Records(), f.Match), nil
}

// VisibleActivities returns the activities sc may read, newest first.
func VisibleActivities(store *partition.Store, sc Scope, f schema.ActivityFilter) ([]schema.Activity, error) {
	snap, err := LoadActivities(store, sc)
	if err != nil {
		return nil, err
	}
	return filter(snap.Records(), f.Match), nil
}

// VisibleOpportunities returns the opportunities sc may read, newest first.
func VisibleOpportunities(store *partition.Store, sc Scope, f schema.OpportunityFilter) ([]schema.Opportunity, error) {
	snap, err := LoadOpportunities(store, sc)
	if err != nil {
		return nil, err
	}
	return filter(snap.Records(), f.Match), nil
}

func filter[T schema.Record](recs []T, keep func(T) bool) []T {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	SortNewestFirst(out)
	return out
}
