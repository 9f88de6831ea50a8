package schema

import "strings"

// ProspectFilter narrows prospect listings. Zero fields match everything.
type ProspectFilter struct {
	Stage    Stage
	Priority Priority
	OwnerID  string
	// Query matches name, e-mail or company, case-insensitively.
	Query string
}

func (f ProspectFilter) Match(p Prospect) bool {
	if f.Stage != "" && p.PipelineStage != f.Stage {
		return false
	}
	if f.Priority != "" && p.Priority != f.Priority {
		return false
	}
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Email), q) ||
			strings.Contains(strings.ToLower(p.Company), q)
	}
	return true
}

type ActivityFilter struct {
	ProspectID string
	OwnerID    string
	Completed  *bool
}

func (f ActivityFilter) Match(a Activity) bool {
	if f.ProspectID != "" && a.ProspectID != f.ProspectID {
		return false
	}
	if f.OwnerID != "" && a.OwnerID != f.OwnerID {
		return false
	}
	if f.Completed != nil && a.Completed != *f.Completed {
		return false
	}
	return true
}

type OpportunityFilter struct {
	FunnelType FunnelType
	OwnerID    string
}

func (f OpportunityFilter) Match(o Opportunity) bool {
	if f.FunnelType != "" && o.FunnelType != f.FunnelType {
		return false
	}
	if f.OwnerID != "" && o.OwnerID != f.OwnerID {
		return false
	}
	return true
}
