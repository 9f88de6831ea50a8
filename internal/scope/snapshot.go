package scope

import (
	"sort"

	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Snapshot holds the loaded partitions of one kind for a scope.
type Snapshot[T schema.Record] struct {
	Kind   engine.Kind
	Owners []string
	Parts  map[string][]T
}

// Loaded reports whether owner's partition is part of the snapshot, even if empty.
func (s *Snapshot[T]) Loaded(owner string) bool {
	_, ok := s.Parts[owner]
	return ok
}

// Records concatenates the partitions in owner order.
func (s *Snapshot[T]) Records() []T {
	var n int
	for _, p := range s.Parts {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, o := range s.Owners {
		out = append(out, s.Parts[o]...)
	}
	return out
}

// Load reads every partition of kind in sc. fix normalizes each record read
// from owner's partition.
func Load[T schema.Record](store *partition.Store, kind engine.Kind, sc Scope, fix func(owner string, rec *T)) (*Snapshot[T], error) {
	snap := &Snapshot[T]{
		Kind:   kind,
		Owners: append([]string(nil), sc.Owners...),
		Parts:  make(map[string][]T, len(sc.Owners)),
	}
	for _, owner := range sc.Owners {
		recs, err := partition.Load[T](store, kind, owner)
		if err != nil {
			return nil, err
		}
		if fix != nil {
			for i := range recs {
				fix(owner, &recs[i])
			}
		}
		snap.Parts[owner] = recs
	}
	return snap, nil
}

// LoadProspects reads the prospect partitions of sc. Records without an
// owner are attributed to their partition; unknown stages read as the default stage.
func LoadProspects(store *partition.Store, sc Scope) (*Snapshot[schema.Prospect], error) {
	return Load(store, partition.KindProspects, sc, func(owner string, p *schema.Prospect) {
		if p.OwnerID == "" {
			p.OwnerID = owner
		}
		if !p.PipelineStage.Valid() {
			p.PipelineStage = schema.DefaultStage
		}
	})
}

func LoadActivities(store *partition.Store, sc Scope) (*Snapshot[schema.Activity], error) {
	return Load(store, partition.KindActivities, sc, func(owner string, a *schema.Activity) {
		if a.OwnerID == "" {
			a.OwnerID = owner
		}
		// completedDate is only meaningful on completed activities
		if !a.Completed {
			a.CompletedDate = nil
		}
	})
}

func LoadOpportunities(store *partition.Store, sc Scope) (*Snapshot[schema.Opportunity], error) {
	return Load(store, partition.KindOpportunities, sc, func(owner string, o *schema.Opportunity) {
		if o.OwnerID == "" {
			o.OwnerID = owner
		}
	})
}

// SortNewestFirst orders records by creation time, newest first, then by id.
func SortNewestFirst[T schema.Record](recs []T) {
	sort.SliceStable(recs, func(i, j int) bool {
		ci, cj := recs[i].RecordCreatedAt(), recs[j].RecordCreatedAt()
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return recs[i].RecordID() < recs[j].RecordID()
	})
}
