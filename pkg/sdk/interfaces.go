package sdk

import "github.com/celerix-dev/celerix-crm/pkg/schema"

// --- Functional Interfaces (Interface Segregation) ---

// Profile exposes the acting identity.
type Profile interface {
	Me() (schema.Identity, error)
	Company() (schema.Company, error)
}

// ProspectService reads and edits prospects in the caller's scope.
type ProspectService interface {
	ListProspects(f schema.ProspectFilter) ([]schema.Prospect, error)
	SaveProspect(in schema.ProspectInput) (schema.Prospect, error)
	DeleteProspect(id string) error
	MoveStage(id string, stage schema.Stage) (schema.Prospect, error)
}

// ActivityService reads and edits activities in the caller's scope.
type ActivityService interface {
	ListActivities(f schema.ActivityFilter) ([]schema.Activity, error)
	SaveActivity(in schema.ActivityInput) (schema.Activity, error)
	DeleteActivity(id string) error
	CompleteActivity(id string, completed bool) (schema.Activity, error)
}

// OpportunityService captures and lists funnel leads.
type OpportunityService interface {
	ListOpportunities(f schema.OpportunityFilter) ([]schema.Opportunity, error)
	CreateOpportunity(in schema.OpportunityInput) (schema.Opportunity, error)
}

// Leaderboard serves the derived team views.
type Leaderboard interface {
	TeamStats() ([]schema.TeamMemberStat, error)
	Ranking() (schema.Ranking, error)
}

// --- Composite Interfaces ---

// CRM is everything a UI needs, bound to one signed-in principal.
// Errors wrap the schema sentinels whether the CRM is embedded or remote.
type CRM interface {
	Profile
	ProspectService
	ActivityService
	OpportunityService
	Leaderboard

	Close() error
}
