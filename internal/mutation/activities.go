package mutation

import (
	"github.com/celerix-dev/celerix-crm/internal/metrics"
	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// CreateOrUpdateActivity follows the same create-versus-update rule as
// prospects. The referenced prospect must be visible to the actor.
func (c *Coordinator) CreateOrUpdateActivity(sc scope.Scope, in schema.ActivityInput) (a schema.Activity, err error) {
	defer func() { metrics.ObserveMutation("activity.upsert", err) }()

	in.Normalize()
	if err := schema.Validate(in); err != nil {
		return schema.Activity{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prospects, err := scope.LoadProspects(c.store, sc)
	if err != nil {
		return schema.Activity{}, err
	}
	if newWorking(prospects).find(in.ProspectID) < 0 {
		return schema.Activity{}, notFound("prospect", in.ProspectID)
	}

	snap, err := scope.LoadActivities(c.store, sc)
	if err != nil {
		return schema.Activity{}, err
	}
	w := newWorking(snap)

	i := -1
	if in.ID != "" {
		i = w.find(in.ID)
	}
	if i >= 0 {
		a = w.recs[i].rec
		if err := authorize(sc, a.OwnerID); err != nil {
			return schema.Activity{}, err
		}
		a.ProspectID = in.ProspectID
		if in.Type != "" {
			a.Type = in.Type
		}
		a.Title = in.Title
		a.Description = in.Description
		a.ScheduledDate = in.ScheduledDate
		w.recs[i].rec = a
	} else {
		id, err := claimID[schema.Activity](c, sc, partition.KindActivities, in.ID)
		if err != nil {
			return schema.Activity{}, err
		}
		a = schema.Activity{
			ID:            id,
			OwnerID:       sc.ActorID(),
			CompanyID:     sc.Identity.CompanyID,
			ProspectID:    in.ProspectID,
			Type:          in.Type,
			Title:         in.Title,
			Description:   in.Description,
			ScheduledDate: in.ScheduledDate,
			CreatedAt:     c.timestamp(),
		}
		if a.Type == "" {
			a.Type = schema.DefaultActivityType
		}
		w.recs = append(w.recs, located[schema.Activity]{src: sc.ActorID(), rec: a})
	}

	if err := c.commit("activity.upsert", sc, w); err != nil {
		return schema.Activity{}, err
	}
	return a, nil
}

// DeleteActivity removes a visible activity.
func (c *Coordinator) DeleteActivity(sc scope.Scope, id string) (err error) {
	defer func() { metrics.ObserveMutation("activity.delete", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := scope.LoadActivities(c.store, sc)
	if err != nil {
		return err
	}
	w := newWorking(snap)
	i := w.find(id)
	if i < 0 {
		return notFound("activity", id)
	}
	if err := authorize(sc, w.recs[i].rec.OwnerID); err != nil {
		return err
	}
	w.remove(i)
	return c.commit("activity.delete", sc, w)
}

// ToggleActivityComplete sets the completion flag; completedDate is set or
// cleared with it.
func (c *Coordinator) ToggleActivityComplete(sc scope.Scope, id string, completed bool) (a schema.Activity, err error) {
	defer func() { metrics.ObserveMutation("activity.complete", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := scope.LoadActivities(c.store, sc)
	if err != nil {
		return schema.Activity{}, err
	}
	w := newWorking(snap)
	i := w.find(id)
	if i < 0 {
		return schema.Activity{}, notFound("activity", id)
	}
	a = w.recs[i].rec
	if err := authorize(sc, a.OwnerID); err != nil {
		return schema.Activity{}, err
	}
	a.SetCompleted(completed, c.timestamp())
	w.recs[i].rec = a

	if err := c.commit("activity.complete", sc, w); err != nil {
		return schema.Activity{}, err
	}
	return a, nil
}
