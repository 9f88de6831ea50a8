// Package stats derives per-member statistics and rankings from the
// prospect partitions.
package stats

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Directory lists company members. *identity.Resolver implements it.
type Directory interface {
	Members(companyID string) ([]schema.Identity, error)
}

// Engine computes team statistics from the current partitions on every call,
// so membership changes and writes from other processes are always seen.
type Engine struct {
	store *partition.Store
	dir   Directory
	board Leaderboard
	log   *zap.SugaredLogger
}

// NewEngine ranks non-admins against board.
func NewEngine(store *partition.Store, dir Directory, board Leaderboard, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		store: store,
		dir:   dir,
		board: board,
		log:   log.Named("stats"),
	}
}

// TeamStats returns one entry per assessor of the admin's company, in index order.
func (e *Engine) TeamStats(admin schema.Identity) ([]schema.TeamMemberStat, error) {
	if !admin.IsCompanyAdmin() {
		return nil, fmt.Errorf("%w: team statistics require a company admin", schema.ErrPermissionDenied)
	}

	members, err := e.dir.Members(admin.CompanyID)
	if err != nil {
		return nil, err
	}
	out := make([]schema.TeamMemberStat, 0, len(members))
	for _, m := range members {
		if m.Role != schema.RoleAssessor {
			continue
		}
		st, err := e.memberStat(m)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	e.log.Debugw("team stats computed", "company", admin.CompanyID, "members", len(out))
	return out, nil
}

func (e *Engine) memberStat(m schema.Identity) (schema.TeamMemberStat, error) {
	prospects, err := partition.Load[schema.Prospect](e.store, partition.KindProspects, m.ID)
	if err != nil {
		return schema.TeamMemberStat{}, err
	}
	conversions := 0
	for _, p := range prospects {
		if p.PipelineStage.IsConversion() {
			conversions++
		}
	}
	return schema.TeamMemberStat{
		MemberID:      m.ID,
		Name:          m.Name,
		Email:         m.Email,
		ProspectCount: len(prospects),
		Conversions:   conversions,
		Score:         schema.Score(len(prospects), conversions),
	}, nil
}

// Ranking ranks a company admin's team, reporting the admin at position 1.
// Everyone else is ranked against the reference leaderboard.
func (e *Engine) Ranking(id schema.Identity) (schema.Ranking, error) {
	if id.IsCompanyAdmin() {
		team, err := e.TeamStats(id)
		if err != nil {
			return schema.Ranking{}, err
		}
		Sort(team)
		return schema.Ranking{Top3: top3(team), Position: 1, TotalCount: len(team)}, nil
	}

	own, err := e.memberStat(id)
	if err != nil {
		return schema.Ranking{}, err
	}
	ranked := make([]schema.TeamMemberStat, 0, len(e.board)+1)
	ranked = append(ranked, e.board...)
	ranked = append(ranked, own)
	Sort(ranked)

	pos := 0
	for i, st := range ranked {
		if st.MemberID == own.MemberID {
			pos = i + 1
			break
		}
	}
	return schema.Ranking{Top3: top3(ranked), Position: pos, TotalCount: len(ranked)}, nil
}

// Sort orders by score descending, then name and member id ascending.
func Sort(stats []schema.TeamMemberStat) {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.MemberID < b.MemberID
	})
}

func top3(ranked []schema.TeamMemberStat) []schema.TeamMemberStat {
	n := min(3, len(ranked))
	return append([]schema.TeamMemberStat{}, ranked[:n]...)
}
