package sdk

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/app"
	"github.com/celerix-dev/celerix-crm/internal/config"
	"github.com/celerix-dev/celerix-crm/internal/identity"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// EnvAPIAddr points New at a running crmd.
const EnvAPIAddr = "CRM_API_ADDR"

// New opens the CRM for p based on the environment.
// It returns the Interface, so the caller doesn't care if it's local or remote.
func New(ctx context.Context, envFile string, p schema.Principal, log *zap.SugaredLogger) (CRM, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if addr := os.Getenv(EnvAPIAddr); addr != "" {
		client, err := Connect(addr, p, WithLogger(log))
		if err == nil {
			return client, nil
		}
		log.Warnw("crmd unreachable, falling back to embedded mode", "addr", addr, "error", err)
	}

	// Embedded mode runs the same core crmd runs, inside the caller's process.
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return NewEmbedded(a, p), nil
}

// Embedded serves the CRM from an in-process core.
type Embedded struct {
	app     *app.App
	session *identity.Session
}

// NewEmbedded binds a to principal p. Closing it closes a.
func NewEmbedded(a *app.App, p schema.Principal) *Embedded {
	return &Embedded{
		app:     a,
		session: identity.NewSession(identity.NewStaticProvider(p), a.Identities),
	}
}

func (e *Embedded) current() (schema.Identity, scope.Scope, error) {
	id, err := e.session.Current()
	if err != nil {
		return schema.Identity{}, scope.Scope{}, err
	}
	sc, err := e.app.Scopes.Resolve(id)
	return id, sc, err
}

func (e *Embedded) Me() (schema.Identity, error) {
	id, _, err := e.current()
	return id, err
}

func (e *Embedded) Company() (schema.Company, error) {
	id, _, err := e.current()
	if err != nil {
		return schema.Company{}, err
	}
	if id.CompanyID == "" {
		return schema.Company{}, schema.ErrNotFound
	}
	return e.app.Companies.Get(id.CompanyID)
}

func (e *Embedded) ListProspects(f schema.ProspectFilter) ([]schema.Prospect, error) {
	_, sc, err := e.current()
	if err != nil {
		return nil, err
	}
	return scope.VisibleProspects(e.app.Store, sc, f)
}

func (e *Embedded) SaveProspect(in schema.ProspectInput) (schema.Prospect, error) {
	_, sc, err := e.current()
	if err != nil {
		return schema.Prospect{}, err
	}
	return e.app.Coordinator.CreateOrUpdateProspect(sc, in)
}

func (e *Embedded) DeleteProspect(id string) error {
	_, sc, err := e.current()
	if err != nil {
		return err
	}
	return e.app.Coordinator.DeleteProspect(sc, id)
}

func (e *Embedded) MoveStage(id string, stage schema.Stage) (schema.Prospect, error) {
	_, sc, err := e.current()
	if err != nil {
		return schema.Prospect{}, err
	}
	return e.app.Coordinator.MovePipelineStage(sc, id, stage)
}

func (e *Embedded) ListActivities(f schema.ActivityFilter) ([]schema.Activity, error) {
	_, sc, err := e.current()
	if err != nil {
		return nil, err
	}
	return scope.VisibleActivities(e.app.Store, sc, f)
}

func (e *Embedded) SaveActivity(in schema.ActivityInput) (schema.Activity, error) {
	_, sc, err := e.current()
	if err != nil {
		return schema.Activity{}, err
	}
	return e.app.Coordinator.CreateOrUpdateActivity(sc, in)
}

func (e *Embedded) DeleteActivity(id string) error {
	_, sc, err := e.current()
	if err != nil {
		return err
	}
	return e.app.Coordinator.DeleteActivity(sc, id)
}

func (e *Embedded) CompleteActivity(id string, completed bool) (schema.Activity, error) {
	_, sc, err := e.current()
	if err != nil {
		return schema.Activity{}, err
	}
	return e.app.Coordinator.ToggleActivityComplete(sc, id, completed)
}

func (e *Embedded) ListOpportunities(f schema.OpportunityFilter) ([]schema.Opportunity, error) {
	_, sc, err := e.current()
	if err != nil {
		return nil, err
	}
	return scope.VisibleOpportunities(e.app.Store, sc, f)
}

func (e *Embedded) CreateOpportunity(in schema.OpportunityInput) (schema.Opportunity, error) {
	_, sc, err := e.current()
	if err != nil {
		return schema.Opportunity{}, err
	}
	return e.app.Coordinator.CreateOpportunity(sc, in)
}

func (e *Embedded) TeamStats() ([]schema.TeamMemberStat, error) {
	id, _, err := e.current()
	if err != nil {
		return nil, err
	}
	return e.app.Stats.TeamStats(id)
}

func (e *Embedded) Ranking() (schema.Ranking, error) {
	id, _, err := e.current()
	if err != nil {
		return schema.Ranking{}, err
	}
	return e.app.Stats.Ranking(id)
}

func (e *Embedded) Close() error {
	return e.app.Close()
}

var _ CRM = (*Embedded)(nil)
