package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

var fixed = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newResolver(t *testing.T) (*Resolver, *partition.Store) {
	t.Helper()
	store := partition.New(engine.NewMemStore(nil, nil), nil)
	r := NewResolver(store, nil).WithClock(func() time.Time { return fixed })
	return r, store
}

func TestResolveCreatesDefaultProfile(t *testing.T) {
	r, store := newResolver(t)

	id, err := r.Resolve(schema.Principal{ID: "u1", Email: "maria.souza@example.com"})
	require.NoError(t, err)

	assert.Equal(t, schema.Identity{
		ID:          "u1",
		Email:       "maria.souza@example.com",
		Name:        "maria.souza",
		AccountType: schema.AccountIndividual,
		Role:        schema.RoleAssessor,
		CreatedAt:   fixed,
	}, id)

	stored, ok, err := partition.Get[schema.Identity](store, partition.KindProfile, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, stored)

	index, err := r.Index()
	require.NoError(t, err)
	assert.Equal(t, []schema.Identity{id}, index)
}

func TestResolveIsIdempotent(t *testing.T) {
	r, _ := newResolver(t)

	first, err := r.Resolve(schema.Principal{ID: "u1", Email: "a@example.com", NameHint: "Ana"})
	require.NoError(t, err)

	r.now = func() time.Time { return fixed.Add(48 * time.Hour) }
	again, err := r.Resolve(schema.Principal{ID: "u1", Email: "changed@example.com", NameHint: "Other"})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	index, err := r.Index()
	require.NoError(t, err)
	assert.Len(t, index, 1)
}

func TestResolveRepairsMissingIndexEntry(t *testing.T) {
	r, store := newResolver(t)
	profile := schema.Identity{ID: "u9", Email: "u9@example.com", Name: "u9", Role: schema.RoleAssessor}
	require.NoError(t, store.Put(partition.KindProfile, "u9", profile))

	got, err := r.Resolve(schema.Principal{ID: "u9"})
	require.NoError(t, err)
	assert.Equal(t, profile, got)

	index, err := r.Index()
	require.NoError(t, err)
	assert.Equal(t, []schema.Identity{profile}, index)
}

func TestResolveRejectsEmptyID(t *testing.T) {
	r, _ := newResolver(t)
	_, err := r.Resolve(schema.Principal{ID: "  "})
	assert.ErrorIs(t, err, schema.ErrUnauthenticated)
}

func TestAssignUpdatesProfileAndIndex(t *testing.T) {
	r, _ := newResolver(t)
	_, err := r.Resolve(schema.Principal{ID: "a", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = r.Resolve(schema.Principal{ID: "b", Email: "b@example.com"})
	require.NoError(t, err)

	admin, err := r.Assign("a", "co1", schema.RoleAdmin, "")
	require.NoError(t, err)
	assert.Equal(t, "co1", admin.CompanyID)
	assert.Equal(t, schema.AccountEscritorio, admin.AccountType)
	assert.True(t, admin.IsCompanyAdmin())

	_, err = r.Assign("b", "co1", schema.RoleAssessor, schema.AccountWhiteLabel)
	require.NoError(t, err)

	members, err := r.Members("co1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0].ID)
	assert.Equal(t, "b", members[1].ID)

	stored, ok, err := r.Lookup("b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, schema.AccountWhiteLabel, stored.AccountType)
}

func TestAssignErrors(t *testing.T) {
	r, _ := newResolver(t)

	_, err := r.Assign("ghost", "co1", schema.RoleAdmin, "")
	assert.ErrorIs(t, err, schema.ErrNotFound)

	_, err = r.Assign("ghost", "co1", schema.Role("owner"), "")
	assert.ErrorIs(t, err, schema.ErrValidation)
}

func TestMembersDeduplicatesByID(t *testing.T) {
	r, store := newResolver(t)
	dup := schema.Identity{ID: "b", CompanyID: "co1", Role: schema.RoleAssessor}
	require.NoError(t, partition.Save(store, partition.KindProfileIndex, "", []schema.Identity{
		dup,
		{ID: "c", CompanyID: "co2", Role: schema.RoleAssessor},
		dup,
	}))

	members, err := r.Members("co1")
	require.NoError(t, err)
	assert.Equal(t, []schema.Identity{dup}, members)

	none, err := r.Members("")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana", DisplayName(schema.Principal{ID: "1", Email: "x@y.z", NameHint: " Ana "}))
	assert.Equal(t, "x", DisplayName(schema.Principal{ID: "1", Email: "x@y.z"}))
	assert.Equal(t, "1", DisplayName(schema.Principal{ID: "1"}))
}

func TestSession(t *testing.T) {
	r, _ := newResolver(t)
	provider := NewStaticProvider(schema.Principal{ID: "u1", Email: "u1@example.com"})
	session := NewSession(provider, r)

	id, err := session.Current()
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)

	session.SignOut()
	_, err = session.Current()
	assert.ErrorIs(t, err, schema.ErrUnauthenticated)
}

func TestCompanies(t *testing.T) {
	_, store := newResolver(t)
	companies := NewCompanies(store)
	companies.now = func() time.Time { return fixed }

	_, err := companies.Save(schema.Company{Name: "  "})
	assert.ErrorIs(t, err, schema.ErrValidation)

	co, err := companies.Save(schema.Company{ID: "co1", Name: "Escritório Norte"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPrimaryColor, co.PrimaryColor)
	assert.Equal(t, DefaultSecondaryColor, co.SecondaryColor)
	assert.Equal(t, DefaultPlanType, co.PlanType)
	assert.Equal(t, fixed, co.CreatedAt)

	got, err := companies.Get("co1")
	require.NoError(t, err)
	assert.Equal(t, co, got)

	_, err = companies.Get("missing")
	assert.ErrorIs(t, err, schema.ErrNotFound)

	generated, err := companies.Save(schema.Company{Name: "Sul"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
}
