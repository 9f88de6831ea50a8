package mutation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/identity"
	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/internal/stats"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

type env struct {
	kv     *engine.MemStore
	store  *partition.Store
	ids    *identity.Resolver
	scopes *scope.Resolver
	coord  *Coordinator
	clock  time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	kv := engine.NewMemStore(nil, nil)
	store := partition.New(kv, nil)
	ids := identity.NewResolver(store, nil)
	e := &env{
		kv:     kv,
		store:  store,
		ids:    ids,
		scopes: scope.NewResolver(ids),
		clock:  time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	seq := 0
	e.coord = New(store, nil,
		WithClock(func() time.Time {
			e.clock = e.clock.Add(time.Minute)
			return e.clock
		}),
		WithIDGenerator(func() (string, error) {
			seq++
			return fmt.Sprintf("id-%03d", seq), nil
		}),
	)
	return e
}

func (e *env) member(t *testing.T, id, company string, role schema.Role) schema.Identity {
	t.Helper()
	_, err := e.ids.Resolve(schema.Principal{ID: id, Email: id + "@example.com", NameHint: "Member " + id})
	require.NoError(t, err)
	if company == "" {
		got, _, err := e.ids.Lookup(id)
		require.NoError(t, err)
		return got
	}
	got, err := e.ids.Assign(id, company, role, "")
	require.NoError(t, err)
	return got
}

func (e *env) scope(t *testing.T, id schema.Identity) scope.Scope {
	t.Helper()
	sc, err := e.scopes.Resolve(id)
	require.NoError(t, err)
	return sc
}

func (e *env) partition(t *testing.T, owner string) []schema.Prospect {
	t.Helper()
	ps, err := partition.Load[schema.Prospect](e.store, partition.KindProspects, owner)
	require.NoError(t, err)
	return ps
}

// assertIntegrity checks that every persisted prospect sits in its owner's partition.
func (e *env) assertIntegrity(t *testing.T) {
	t.Helper()
	keys, err := e.kv.Keys(partition.KindProspects)
	require.NoError(t, err)
	for _, k := range keys {
		for _, p := range e.partition(t, k.Partition) {
			assert.Equal(t, k.Partition, p.OwnerID, "prospect %s stored under %s", p.ID, k)
		}
	}
}

func prospectIn(name string) schema.ProspectInput {
	return schema.ProspectInput{Name: name, Email: strings.ReplaceAll(name, " ", ".") + "@client.com"}
}

func TestCreateProspectDefaults(t *testing.T) {
	e := newEnv(t)
	b := e.member(t, "b", "co1", schema.RoleAssessor)

	p, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), prospectIn("ana"))
	require.NoError(t, err)
	assert.Equal(t, "id-001", p.ID)
	assert.Equal(t, "b", p.OwnerID)
	assert.Equal(t, "co1", p.CompanyID)
	assert.Equal(t, schema.PriorityMedia, p.Priority)
	assert.Equal(t, schema.StageQualificacao, p.PipelineStage)
	assert.Equal(t, []schema.Prospect{p}, e.partition(t, "b"))
}

func TestCreateProspectValidation(t *testing.T) {
	e := newEnv(t)
	b := e.member(t, "b", "", schema.RoleAssessor)
	sc := e.scope(t, b)

	_, err := e.coord.CreateOrUpdateProspect(sc, schema.ProspectInput{Email: "x@y.com"})
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = e.coord.CreateOrUpdateProspect(sc, schema.ProspectInput{Name: "x", Email: "   "})
	assert.ErrorIs(t, err, schema.ErrValidation)

	_, err = e.coord.CreateOrUpdateProspect(sc, schema.ProspectInput{Name: "x", Email: "x@y.com", PipelineStage: "Perdido"})
	assert.ErrorIs(t, err, schema.ErrValidation)

	keys, err := e.kv.Keys(partition.KindProspects)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAdminUpdateStaysInOwnerPartition(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	b := e.member(t, "b", "co1", schema.RoleAssessor)

	created, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), prospectIn("bia"))
	require.NoError(t, err)
	_, err = e.coord.CreateOrUpdateProspect(e.scope(t, a), prospectIn("own"))
	require.NoError(t, err)

	in := prospectIn("bia renamed")
	in.ID = created.ID
	updated, err := e.coord.CreateOrUpdateProspect(e.scope(t, a), in)
	require.NoError(t, err)

	assert.Equal(t, "b", updated.OwnerID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "bia renamed", updated.Name)

	require.Len(t, e.partition(t, "b"), 1)
	assert.Equal(t, "bia renamed", e.partition(t, "b")[0].Name)
	require.Len(t, e.partition(t, "a"), 1)
	assert.Equal(t, "own", e.partition(t, "a")[0].Name)
	e.assertIntegrity(t)
}

func TestCreateVersusUpdateByID(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	b := e.member(t, "b", "co1", schema.RoleAssessor)

	in := prospectIn("carlos")
	in.ID = "client-chosen"
	first, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), in)
	require.NoError(t, err)
	assert.Equal(t, "client-chosen", first.ID)
	assert.Equal(t, "b", first.OwnerID)

	in.Phone = "+55 11 99999-0000"
	second, err := e.coord.CreateOrUpdateProspect(e.scope(t, a), in)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "b", second.OwnerID)
	assert.Equal(t, "+55 11 99999-0000", second.Phone)
	assert.Len(t, e.partition(t, "b"), 1)
	assert.Empty(t, e.partition(t, "a"))
}

func TestUnknownIDCreatesUnderThatID(t *testing.T) {
	e := newEnv(t)
	b := e.member(t, "b", "co1", schema.RoleAssessor)

	in := prospectIn("fresh")
	in.ID = "p-9"
	created, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), in)
	require.NoError(t, err)
	assert.Equal(t, "p-9", created.ID)

	in.Name = "fresh again"
	updated, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), in)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Len(t, e.partition(t, "b"), 1)
}

func TestIDHeldOutsideScopeIsRejected(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	b := e.member(t, "b", "co1", schema.RoleAssessor)
	c := e.member(t, "c", "co1", schema.RoleAssessor)

	in := prospectIn("shared")
	in.ID = "p-1"
	_, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), in)
	require.NoError(t, err)

	// c cannot see b's record and may not mint a second p-1
	_, err = e.coord.CreateOrUpdateProspect(e.scope(t, c), in)
	assert.ErrorIs(t, err, schema.ErrPermissionDenied)
	assert.Empty(t, e.partition(t, "c"))

	// the admin still edits exactly one p-1
	in.Name = "shared edited"
	got, err := e.coord.CreateOrUpdateProspect(e.scope(t, a), in)
	require.NoError(t, err)
	assert.Equal(t, "b", got.OwnerID)
	visible, err := scope.VisibleProspects(e.store, e.scope(t, a), schema.ProspectFilter{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "shared edited", visible[0].Name)

	act := schema.ActivityInput{ID: "a-1", ProspectID: "p-1", Title: "Ligar"}
	_, err = e.coord.CreateOrUpdateActivity(e.scope(t, b), act)
	require.NoError(t, err)
	cp, err := e.coord.CreateOrUpdateProspect(e.scope(t, c), prospectIn("own"))
	require.NoError(t, err)
	act.ProspectID = cp.ID
	_, err = e.coord.CreateOrUpdateActivity(e.scope(t, c), act)
	assert.ErrorIs(t, err, schema.ErrPermissionDenied)
}

func TestDeleteProspect(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	b := e.member(t, "b", "co1", schema.RoleAssessor)
	c := e.member(t, "c", "co1", schema.RoleAssessor)

	p, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), prospectIn("x"))
	require.NoError(t, err)

	err = e.coord.DeleteProspect(e.scope(t, c), p.ID)
	assert.ErrorIs(t, err, schema.ErrNotFound)

	require.NoError(t, e.coord.DeleteProspect(e.scope(t, a), p.ID))
	assert.Empty(t, e.partition(t, "b"))

	err = e.coord.DeleteProspect(e.scope(t, b), p.ID)
	assert.ErrorIs(t, err, schema.ErrNotFound)
}

func TestPermissionDeniedForForeignOwner(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	e.member(t, "b", "co1", schema.RoleAssessor)
	// a record of an identity from another company left in b's partition
	require.NoError(t, partition.Save(e.store, partition.KindProspects, "b", []schema.Prospect{
		{ID: "stray", OwnerID: "x", Name: "stray", Email: "s@x.com", PipelineStage: schema.StageProposta},
	}))

	_, err := e.coord.MovePipelineStage(e.scope(t, a), "stray", schema.StageAtivacao)
	assert.ErrorIs(t, err, schema.ErrPermissionDenied)
	err = e.coord.DeleteProspect(e.scope(t, a), "stray")
	assert.ErrorIs(t, err, schema.ErrPermissionDenied)

	// unrelated writes leave it where it is
	_, err = e.coord.CreateOrUpdateProspect(e.scope(t, a), prospectIn("new"))
	require.NoError(t, err)
	require.Len(t, e.partition(t, "b"), 1)
	assert.Equal(t, "stray", e.partition(t, "b")[0].ID)
}

func TestMisplacedRecordMovesToOwnerPartition(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	e.member(t, "b", "co1", schema.RoleAssessor)
	require.NoError(t, partition.Save(e.store, partition.KindProspects, "a", []schema.Prospect{
		{ID: "legacy", OwnerID: "b", Name: "legacy", Email: "l@x.com", PipelineStage: schema.StageProposta},
	}))

	_, err := e.coord.MovePipelineStage(e.scope(t, a), "legacy", schema.StageNegociacao)
	require.NoError(t, err)

	assert.Empty(t, e.partition(t, "a"))
	require.Len(t, e.partition(t, "b"), 1)
	assert.Equal(t, schema.StageNegociacao, e.partition(t, "b")[0].PipelineStage)
	e.assertIntegrity(t)
}

func TestMovePipelineStage(t *testing.T) {
	e := newEnv(t)
	b := e.member(t, "b", "", schema.RoleAssessor)
	sc := e.scope(t, b)
	p, err := e.coord.CreateOrUpdateProspect(sc, prospectIn("x"))
	require.NoError(t, err)

	// any stage may follow any other
	for _, st := range []schema.Stage{schema.StageAtivacao, schema.StageQualificacao, schema.StageNegociacao} {
		moved, err := e.coord.MovePipelineStage(sc, p.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, moved.PipelineStage)
	}

	_, err = e.coord.MovePipelineStage(sc, p.ID, "Arquivado")
	assert.ErrorIs(t, err, schema.ErrValidation)
	_, err = e.coord.MovePipelineStage(sc, "missing", schema.StageProposta)
	assert.ErrorIs(t, err, schema.ErrNotFound)
}

func TestActivityCompletionInvariant(t *testing.T) {
	e := newEnv(t)
	b := e.member(t, "b", "", schema.RoleAssessor)
	sc := e.scope(t, b)
	p, err := e.coord.CreateOrUpdateProspect(sc, prospectIn("x"))
	require.NoError(t, err)

	act, err := e.coord.CreateOrUpdateActivity(sc, schema.ActivityInput{ProspectID: p.ID, Title: "Ligar"})
	require.NoError(t, err)
	assert.Equal(t, schema.DefaultActivityType, act.Type)
	assert.False(t, act.Completed)
	assert.Nil(t, act.CompletedDate)

	done, err := e.coord.ToggleActivityComplete(sc, act.ID, true)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedDate)

	reopened, err := e.coord.ToggleActivityComplete(sc, act.ID, false)
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedDate)

	stored, err := partition.Load[schema.Activity](e.store, partition.KindActivities, "b")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].Completed)
	assert.Nil(t, stored[0].CompletedDate)
}

func TestActivityErrors(t *testing.T) {
	e := newEnv(t)
	b := e.member(t, "b", "", schema.RoleAssessor)
	sc := e.scope(t, b)

	_, err := e.coord.CreateOrUpdateActivity(sc, schema.ActivityInput{ProspectID: "p"})
	assert.ErrorIs(t, err, schema.ErrValidation)

	_, err = e.coord.CreateOrUpdateActivity(sc, schema.ActivityInput{Title: "t"})
	assert.ErrorIs(t, err, schema.ErrValidation)

	_, err = e.coord.CreateOrUpdateActivity(sc, schema.ActivityInput{ProspectID: "ghost", Title: "t"})
	assert.ErrorIs(t, err, schema.ErrNotFound)

	_, err = e.coord.ToggleActivityComplete(sc, "ghost", true)
	assert.ErrorIs(t, err, schema.ErrNotFound)

	assert.ErrorIs(t, e.coord.DeleteActivity(sc, "ghost"), schema.ErrNotFound)
}

func TestAdminEditsActivityOfAssessor(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	b := e.member(t, "b", "co1", schema.RoleAssessor)
	p, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), prospectIn("x"))
	require.NoError(t, err)
	act, err := e.coord.CreateOrUpdateActivity(e.scope(t, b), schema.ActivityInput{ProspectID: p.ID, Title: "Ligar", Type: "ligacao"})
	require.NoError(t, err)

	edited, err := e.coord.CreateOrUpdateActivity(e.scope(t, a), schema.ActivityInput{ID: act.ID, ProspectID: p.ID, Title: "Ligar amanhã"})
	require.NoError(t, err)
	assert.Equal(t, "b", edited.OwnerID)
	assert.Equal(t, "ligacao", edited.Type)
	assert.Equal(t, act.CreatedAt, edited.CreatedAt)

	adminActs, err := partition.Load[schema.Activity](e.store, partition.KindActivities, "a")
	require.NoError(t, err)
	assert.Empty(t, adminActs)

	require.NoError(t, e.coord.DeleteActivity(e.scope(t, a), act.ID))
	left, err := partition.Load[schema.Activity](e.store, partition.KindActivities, "b")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDeleteProspectKeepsActivities(t *testing.T) {
	e := newEnv(t)
	b := e.member(t, "b", "", schema.RoleAssessor)
	sc := e.scope(t, b)
	p, err := e.coord.CreateOrUpdateProspect(sc, prospectIn("x"))
	require.NoError(t, err)
	_, err = e.coord.CreateOrUpdateActivity(sc, schema.ActivityInput{ProspectID: p.ID, Title: "t"})
	require.NoError(t, err)

	require.NoError(t, e.coord.DeleteProspect(sc, p.ID))

	acts, err := scope.VisibleActivities(e.store, sc, schema.ActivityFilter{ProspectID: p.ID})
	require.NoError(t, err)
	assert.Len(t, acts, 1)
}

func TestCreateOpportunity(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	e.member(t, "b", "co1", schema.RoleAssessor)

	o, err := e.coord.CreateOpportunity(e.scope(t, a), schema.OpportunityInput{
		FunnelType: schema.FunnelSeguros, Name: "Lead", Email: "lead@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "a", o.OwnerID)
	assert.Equal(t, schema.DefaultOpportunityStage, o.Stage)

	own, err := partition.Load[schema.Opportunity](e.store, partition.KindOpportunities, "a")
	require.NoError(t, err)
	assert.Equal(t, []schema.Opportunity{o}, own)

	keys, err := e.kv.Keys(partition.KindOpportunities)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	_, err = e.coord.CreateOpportunity(e.scope(t, a), schema.OpportunityInput{FunnelType: "imoveis", Name: "x", Email: "x@x.com"})
	assert.ErrorIs(t, err, schema.ErrValidation)
}

func TestPartitionIntegrityUnderMixedActors(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	b := e.member(t, "b", "co1", schema.RoleAssessor)
	c := e.member(t, "c", "co1", schema.RoleAssessor)
	actors := []schema.Identity{a, b, c}

	var created []schema.Prospect
	for i := 0; i < 12; i++ {
		actor := actors[i%len(actors)]
		p, err := e.coord.CreateOrUpdateProspect(e.scope(t, actor), prospectIn(fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
		created = append(created, p)
		e.assertIntegrity(t)
	}

	// the admin edits, moves and deletes everybody's records
	for i, p := range created {
		sc := e.scope(t, a)
		switch i % 3 {
		case 0:
			in := prospectIn(p.Name + " edited")
			in.ID = p.ID
			_, err := e.coord.CreateOrUpdateProspect(sc, in)
			require.NoError(t, err)
		case 1:
			_, err := e.coord.MovePipelineStage(sc, p.ID, schema.StageAtivacao)
			require.NoError(t, err)
		case 2:
			require.NoError(t, e.coord.DeleteProspect(sc, p.ID))
		}
		e.assertIntegrity(t)
	}

	// a's records were edited, b's moved and c's deleted
	assert.Len(t, e.partition(t, "a"), 4)
	assert.Len(t, e.partition(t, "b"), 4)
	assert.Empty(t, e.partition(t, "c"))
}

func TestEndToEndTeamScenario(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "a", "co1", schema.RoleAdmin)
	b := e.member(t, "b1", "co1", schema.RoleAssessor)
	agg := stats.NewEngine(e.store, e.ids, stats.DefaultLeaderboard(), nil)

	_, err := e.coord.CreateOrUpdateProspect(e.scope(t, a), prospectIn("admin-lead"))
	require.NoError(t, err)
	bp, err := e.coord.CreateOrUpdateProspect(e.scope(t, b), prospectIn("b-lead"))
	require.NoError(t, err)

	before, err := agg.TeamStats(a)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, 10, before[0].Score)

	_, err = e.coord.MovePipelineStage(e.scope(t, a), bp.ID, schema.StageAtivacao)
	require.NoError(t, err)

	team, err := agg.TeamStats(a)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, "b1", team[0].MemberID)
	assert.Equal(t, 1, team[0].ProspectCount)
	assert.Equal(t, 1, team[0].Conversions)
	assert.Equal(t, 60, team[0].Score)

	bPart := e.partition(t, "b1")
	require.Len(t, bPart, 1)
	assert.Equal(t, schema.StageAtivacao, bPart[0].PipelineStage)
	for _, p := range e.partition(t, "a") {
		assert.NotEqual(t, bp.ID, p.ID)
	}
}
