package mutation

import (
	"github.com/celerix-dev/celerix-crm/internal/metrics"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// CreateOpportunity appends an opportunity to the actor's own partition.
func (c *Coordinator) CreateOpportunity(sc scope.Scope, in schema.OpportunityInput) (o schema.Opportunity, err error) {
	defer func() { metrics.ObserveMutation("opportunity.create", err) }()

	in.Normalize()
	if err := schema.Validate(in); err != nil {
		return schema.Opportunity{}, err
	}
	id, err := c.newID()
	if err != nil {
		return schema.Opportunity{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// only the actor's partition is read and written
	own := sc
	own.Owners = []string{sc.ActorID()}
	snap, err := scope.LoadOpportunities(c.store, own)
	if err != nil {
		return schema.Opportunity{}, err
	}
	w := newWorking(snap)

	o = schema.Opportunity{
		ID:          id,
		OwnerID:     sc.ActorID(),
		CompanyID:   sc.Identity.CompanyID,
		FunnelType:  in.FunnelType,
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		Company:     in.Company,
		Value:       in.Value,
		Description: in.Description,
		Stage:       in.Stage,
		CreatedAt:   c.timestamp(),
	}
	if o.Stage == "" {
		o.Stage = schema.DefaultOpportunityStage
	}
	w.recs = append(w.recs, located[schema.Opportunity]{src: sc.ActorID(), rec: o})

	if err := c.commit("opportunity.create", sc, w); err != nil {
		return schema.Opportunity{}, err
	}
	return o, nil
}
