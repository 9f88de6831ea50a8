// Package scope decides which partitions an identity may read and write.
package scope

import (
	"slices"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Scope is computed once per request and passed to every read and write.
type Scope struct {
	Identity schema.Identity
	// Admin is set for an admin with a company. It grants the partitions of
	// the company's assessors.
	Admin     bool
	CompanyID string
	// Owners lists the partitions in scope: the identity first, then the
	// company's assessors in index order. No id appears twice.
	Owners []string
}

// ActorID is the id of the acting identity.
func (s Scope) ActorID() string {
	return s.Identity.ID
}

// Covers reports whether ownerID's partition is in scope.
func (s Scope) Covers(ownerID string) bool {
	return slices.Contains(s.Owners, ownerID)
}

// Directory lists company members. *identity.Resolver implements it.
type Directory interface {
	Members(companyID string) ([]schema.Identity, error)
}

// Resolver turns identities into scopes.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the scope of id. Assessors, and admins without a company,
// see only their own partition.
func (r *Resolver) Resolve(id schema.Identity) (Scope, error) {
	sc := Scope{Identity: id, CompanyID: id.CompanyID, Owners: []string{id.ID}}
	if !id.IsCompanyAdmin() {
		return sc, nil
	}
	sc.Admin = true

	members, err := r.dir.Members(id.CompanyID)
	if err != nil {
		return Scope{}, err
	}
	for _, m := range members {
		if m.Role != schema.RoleAssessor || sc.Covers(m.ID) {
			continue
		}
		sc.Owners = append(sc.Owners, m.ID)
	}
	return sc, nil
}
