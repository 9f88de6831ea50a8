// Package identity maps principals signed in by the external identity
// provider to local profiles and keeps the global profile index.
package identity

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Resolver creates profiles on first sight and answers index lookups.
type Resolver struct {
	store *partition.Store
	log   *zap.SugaredLogger
	now   func() time.Time

	// serializes read-modify-write of the profile index
	mu sync.Mutex
}

// NewResolver returns a resolver over store.
func NewResolver(store *partition.Store, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{store: store, log: log.Named("identity"), now: time.Now}
}

// WithClock replaces the clock used for createdAt.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the profile of p, creating and indexing a default one the
// first time p is seen. Resolving an existing id returns the stored profile.
func (r *Resolver) Resolve(p schema.Principal) (schema.Identity, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return schema.Identity{}, fmt.Errorf("%w: principal has no id", schema.ErrUnauthenticated)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok, err := partition.Get[schema.Identity](r.store, partition.KindProfile, p.ID)
	if err != nil {
		return schema.Identity{}, err
	}

	index, err := r.loadIndex()
	if err != nil {
		return schema.Identity{}, err
	}

	if ok {
		if indexed(index, existing.ID) {
			return existing, nil
		}
		r.log.Infow("profile missing from index, re-adding", "id", existing.ID)
		if err := partition.Save(r.store, partition.KindProfileIndex, "", upsert(index, existing)); err != nil {
			return schema.Identity{}, err
		}
		return existing, nil
	}

	id := schema.Identity{
		ID:          p.ID,
		Email:       strings.TrimSpace(p.Email),
		Name:        DisplayName(p),
		AccountType: schema.AccountIndividual,
		Role:        schema.RoleAssessor,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.commit(id, upsert(index, id)); err != nil {
		return schema.Identity{}, err
	}
	r.log.Infow("profile created", "id", id.ID, "email", id.Email)
	return id, nil
}

// Assign sets company, role and account type of an existing profile. The
// profile and its index entry are rewritten together.
func (r *Resolver) Assign(id, companyID string, role schema.Role, account schema.AccountType) (schema.Identity, error) {
	if !role.Valid() {
		return schema.Identity{}, &schema.ValidationError{Field: "role", Reason: "must be admin or assessor"}
	}
	if account == "" {
		account = schema.AccountIndividual
		if companyID != "" {
			account = schema.AccountEscritorio
		}
	}
	if !account.Valid() {
		return schema.Identity{}, &schema.ValidationError{Field: "accountType", Reason: "is not a known account type"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok, err := partition.Get[schema.Identity](r.store, partition.KindProfile, id)
	if err != nil {
		return schema.Identity{}, err
	}
	if !ok {
		return schema.Identity{}, fmt.Errorf("%w: profile %s", schema.ErrNotFound, id)
	}
	index, err := r.loadIndex()
	if err != nil {
		return schema.Identity{}, err
	}

	profile.CompanyID = strings.TrimSpace(companyID)
	profile.Role = role
	profile.AccountType = account
	if err := r.commit(profile, upsert(index, profile)); err != nil {
		return schema.Identity{}, err
	}
	r.log.Infow("profile assigned", "id", id, "company", profile.CompanyID, "role", role)
	return profile, nil
}

// Lookup reads one profile.
func (r *Resolver) Lookup(id string) (schema.Identity, bool, error) {
	return partition.Get[schema.Identity](r.store, partition.KindProfile, id)
}

// Index returns every known identity, one entry per id.
func (r *Resolver) Index() ([]schema.Identity, error) {
	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	return dedup(index), nil
}

// Members returns the identities of one company, one entry per id, in index order.
func (r *Resolver) Members(companyID string) ([]schema.Identity, error) {
	if companyID == "" {
		return []schema.Identity{}, nil
	}
	index, err := r.Index()
	if err != nil {
		return nil, err
	}
	out := make([]schema.Identity, 0, len(index))
	for _, id := range index {
		if id.CompanyID == companyID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *Resolver) loadIndex() ([]schema.Identity, error) {
	return partition.Load[schema.Identity](r.store, partition.KindProfileIndex, "")
}

func (r *Resolver) commit(profile schema.Identity, index []schema.Identity) error {
	tx := r.store.Begin()
	if err := tx.Stage(partition.KindProfile, profile.ID, profile); err != nil {
		return err
	}
	if err := partition.StageList(tx, partition.KindProfileIndex, "", index); err != nil {
		return err
	}
	return tx.Commit()
}

// DisplayName picks the name hint, falling back to the local part of the e-mail.
func DisplayName(p schema.Principal) string {
	if name := strings.TrimSpace(p.NameHint); name != "" {
		return name
	}
	email := strings.TrimSpace(p.Email)
	if local, _, found := strings.Cut(email, "@"); found && local != "" {
		return local
	}
	if email != "" {
		return email
	}
	return p.ID
}

func indexed(index []schema.Identity, id string) bool {
	for _, e := range index {
		if e.ID == id {
			return true
		}
	}
	return false
}

// upsert replaces every entry of id with next, appending it when absent.
func upsert(index []schema.Identity, next schema.Identity) []schema.Identity {
	out := make([]schema.Identity, 0, len(index)+1)
	placed := false
	for _, e := range index {
		if e.ID != next.ID {
			out = append(out, e)
			continue
		}
		if !placed {
			out = append(out, next)
			placed = true
		}
	}
	if !placed {
		out = append(out, next)
	}
	return out
}

func dedup(index []schema.Identity) []schema.Identity {
	seen := make(map[string]struct{}, len(index))
	out := make([]schema.Identity, 0, len(index))
	for _, e := range index {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
