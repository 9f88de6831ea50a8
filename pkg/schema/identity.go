// Package schema defines the records shared by every layer of the CRM core.
// Field names follow the persisted JSON layout, so partitions written by earlier
// versions of the product load without translation.
package schema

import "time"

// Role is the position an identity holds inside its company.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAssessor Role = "assessor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAssessor
}

// AccountType describes how an identity subscribed to the product.
type AccountType string

const (
	AccountIndividual AccountType = "individual"
	AccountEscritorio AccountType = "escritorio"
	AccountWhiteLabel AccountType = "white_label"
)

// Valid reports whether a is a known account type.
func (a AccountType) Valid() bool {
	switch a {
	case AccountIndividual, AccountEscritorio, AccountWhiteLabel:
		return true
	}
	return false
}

// Principal is what the external identity provider hands over after a
// successful sign-in. The core never validates credentials itself.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	NameHint string `json:"nameHint,omitempty"`
}

// Identity is the local profile of an authenticated principal.
// It is stored under "profile:<id>" and mirrored in "profile-index".
type Identity struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	CompanyID   string      `json:"companyId,omitempty"`
	AccountType AccountType `json:"accountType"`
	Role        Role        `json:"role"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// IsCompanyAdmin reports whether the identity administers a company.
// An admin without a company behaves like an assessor.
func (i Identity) IsCompanyAdmin() bool {
	return i.Role == RoleAdmin && i.CompanyID != ""
}

// Company groups identities under one office or white-label brand.
type Company struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	LogoURL        string    `json:"logoUrl,omitempty"`
	PrimaryColor   string    `json:"primaryColor"`
	SecondaryColor string    `json:"secondaryColor"`
	CustomDomain   string    `json:"customDomain,omitempty"`
	PlanType       string    `json:"planType"`
	WhiteLabel     bool      `json:"whiteLabel"`
	CreatedAt      time.Time `json:"createdAt"`
}
