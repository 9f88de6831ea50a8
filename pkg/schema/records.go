package schema

import "time"

// Priority ranks a prospect for follow-up.
type Priority string

const (
	PriorityAlta  Priority = "alta"
	PriorityMedia Priority = "media"
	PriorityBaixa Priority = "baixa"
)

// FunnelType names the opportunity funnel, independent of the prospect pipeline.
type FunnelType string

const (
	FunnelConsorcio FunnelType = "consorcio"
	FunnelSeguros   FunnelType = "seguros"
	FunnelCambio    FunnelType = "cambio"
	FunnelEventos   FunnelType = "eventos"
)

// DefaultOpportunityStage is the stage of a freshly captured opportunity.
const DefaultOpportunityStage = "novo"

// DefaultActivityType is used when an activity is submitted without a type.
const DefaultActivityType = "tarefa"

// Prospect is a potential client tracked through the pipeline.
// OwnerID never changes after creation.
type Prospect struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	CompanyID     string    `json:"companyId,omitempty"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Company       string    `json:"company,omitempty"`
	AUMValue      *float64  `json:"aumValue,omitempty"`
	Priority      Priority  `json:"priority"`
	PipelineStage Stage     `json:"pipelineStage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Activity is a task or interaction attached to a prospect.
// CompletedDate is set exactly when Completed is true.
type Activity struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"ownerId"`
	CompanyID     string     `json:"companyId,omitempty"`
	ProspectID    string     `json:"prospectId"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Completed     bool       `json:"completed"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// SetCompleted flips the completion flag and keeps CompletedDate in step with it.
func (a *Activity) SetCompleted(completed bool, at time.Time) {
	a.Completed = completed
	if completed {
		t := at
		a.CompletedDate = &t
		return
	}
	a.CompletedDate = nil
}

// Opportunity is a funnel lead. Opportunities are append-only.
type Opportunity struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	CompanyID   string     `json:"companyId,omitempty"`
	FunnelType  FunnelType `json:"funnelType"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Company     string     `json:"company,omitempty"`
	Value       *float64   `json:"value,omitempty"`
	Description string     `json:"description,omitempty"`
	Stage       string     `json:"stage"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TeamMemberStat is derived per assessor and never persisted.
type TeamMemberStat struct {
	MemberID      string `json:"memberId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	ProspectCount int    `json:"prospectCount"`
	Conversions   int    `json:"conversions"`
	Score         int    `json:"score"`
}

// Score weights prospects and conversions.
func Score(prospectCount, conversions int) int {
	return prospectCount*10 + conversions*50
}

// Ranking is the leaderboard view for one identity.
type Ranking struct {
	Top3       []TeamMemberStat `json:"top3"`
	Position   int              `json:"position"`
	TotalCount int              `json:"totalCount"`
}

// Record is implemented by the owner-partitioned entities.
type Record interface {
	RecordID() string
	RecordOwner() string
	RecordCreatedAt() time.Time
}

func (p Prospect) RecordID() string           { return p.ID }
func (p Prospect) RecordOwner() string        { return p.OwnerID }
func (p Prospect) RecordCreatedAt() time.Time { return p.CreatedAt }

func (a Activity) RecordID() string           { return a.ID }
func (a Activity) RecordOwner() string        { return a.OwnerID }
func (a Activity) RecordCreatedAt() time.Time { return a.CreatedAt }

func (o Opportunity) RecordID() string           { return o.ID }
func (o Opportunity) RecordOwner() string        { return o.OwnerID }
func (o Opportunity) RecordCreatedAt() time.Time { return o.CreatedAt }
