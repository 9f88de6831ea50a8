package mutation

import (
	"github.com/celerix-dev/celerix-crm/internal/metrics"
	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// CreateOrUpdateProspect updates the visible prospect whose id matches in.ID,
// keeping its owner and creation time. Otherwise it creates a prospect owned
// by the actor, reusing in.ID when one was given and no other record holds it.
func (c *Coordinator) CreateOrUpdateProspect(sc scope.Scope, in schema.ProspectInput) (p schema.Prospect, err error) {
	defer func() { metrics.ObserveMutation("prospect.upsert", err) }()

	in.Normalize()
	if err := schema.Validate(in); err != nil {
		return schema.Prospect{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := scope.LoadProspects(c.store, sc)
	if err != nil {
		return schema.Prospect{}, err
	}
	w := newWorking(snap)

	i := -1
	if in.ID != "" {
		i = w.find(in.ID)
	}
	if i >= 0 {
		p = w.recs[i].rec
		if err := authorize(sc, p.OwnerID); err != nil {
			return schema.Prospect{}, err
		}
		p.Name = in.Name
		p.Email = in.Email
		p.Phone = in.Phone
		p.Company = in.Company
		p.AUMValue = in.AUMValue
		if in.Priority != "" {
			p.Priority = in.Priority
		}
		if in.PipelineStage != "" {
			p.PipelineStage = in.PipelineStage
		}
		w.recs[i].rec = p
	} else {
		id, err := claimID[schema.Prospect](c, sc, partition.KindProspects, in.ID)
		if err != nil {
			return schema.Prospect{}, err
		}
		p = schema.Prospect{
			ID:            id,
			OwnerID:       sc.ActorID(),
			CompanyID:     sc.Identity.CompanyID,
			Name:          in.Name,
			Email:         in.Email,
			Phone:         in.Phone,
			Company:       in.Company,
			AUMValue:      in.AUMValue,
			Priority:      in.Priority,
			PipelineStage: in.PipelineStage,
			CreatedAt:     c.timestamp(),
		}
		if p.Priority == "" {
			p.Priority = schema.PriorityMedia
		}
		if p.PipelineStage == "" {
			p.PipelineStage = schema.DefaultStage
		}
		w.recs = append(w.recs, located[schema.Prospect]{src: sc.ActorID(), rec: p})
	}

	if err := c.commit("prospect.upsert", sc, w); err != nil {
		return schema.Prospect{}, err
	}
	return p, nil
}

// DeleteProspect removes a visible prospect. Its activities are kept.
func (c *Coordinator) DeleteProspect(sc scope.Scope, id string) (err error) {
	defer func() { metrics.ObserveMutation("prospect.delete", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := scope.LoadProspects(c.store, sc)
	if err != nil {
		return err
	}
	w := newWorking(snap)
	i := w.find(id)
	if i < 0 {
		return notFound("prospect", id)
	}
	if err := authorize(sc, w.recs[i].rec.OwnerID); err != nil {
		return err
	}
	w.remove(i)

	if err := c.commit("prospect.delete", sc, w); err != nil {
		return err
	}
	return nil
}

// MovePipelineStage sets the stage of a visible prospect. Any stage may follow any other.
func (c *Coordinator) MovePipelineStage(sc scope.Scope, id string, stage schema.Stage) (p schema.Prospect, err error) {
	defer func() { metrics.ObserveMutation("prospect.stage", err) }()

	if !stage.Valid() {
		return schema.Prospect{}, &schema.ValidationError{Field: "pipelineStage", Reason: "is not a pipeline stage"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := scope.LoadProspects(c.store, sc)
	if err != nil {
		return schema.Prospect{}, err
	}
	w := newWorking(snap)
	i := w.find(id)
	if i < 0 {
		return schema.Prospect{}, notFound("prospect", id)
	}
	p = w.recs[i].rec
	if err := authorize(sc, p.OwnerID); err != nil {
		return schema.Prospect{}, err
	}
	p.PipelineStage = stage
	w.recs[i].rec = p

	if err := c.commit("prospect.stage", sc, w); err != nil {
		return schema.Prospect{}, err
	}
	return p, nil
}
