package stats

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Leaderboard is the reference set individual accounts are ranked against.
type Leaderboard []schema.TeamMemberStat

type leaderboardFile struct {
	Members []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Email       string `yaml:"email"`
		Prospects   int    `yaml:"prospects"`
		Conversions int    `yaml:"conversions"`
	} `yaml:"members"`
}

// LoadLeaderboard reads a YAML reference leaderboard. Scores are recomputed
// from the counts; ids default to "ref-<n>".
func LoadLeaderboard(path string) (Leaderboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	var f leaderboardFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse leaderboard %s: %w", path, err)
	}

	board := make(Leaderboard, 0, len(f.Members))
	for i, m := range f.Members {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("leaderboard %s: member %d has no name", path, i+1)
		}
		if m.Prospects < 0 || m.Conversions < 0 {
			return nil, fmt.Errorf("leaderboard %s: member %q has negative counts", path, m.Name)
		}
		id := m.ID
		if id == "" {
			id = fmt.Sprintf("ref-%d", i+1)
		}
		board = append(board, schema.TeamMemberStat{
			MemberID:      id,
			Name:          m.Name,
			Email:         m.Email,
			ProspectCount: m.Prospects,
			Conversions:   m.Conversions,
			Score:         schema.Score(m.Prospects, m.Conversions),
		})
	}
	return board, nil
}

// DefaultLeaderboard is used when no leaderboard file is configured.
func DefaultLeaderboard() Leaderboard {
	ref := func(id, name string, prospects, conversions int) schema.TeamMemberStat {
		return schema.TeamMemberStat{
			MemberID:      id,
			Name:          name,
			ProspectCount: prospects,
			Conversions:   conversions,
			Score:         schema.Score(prospects, conversions),
		}
	}
	return Leaderboard{
		ref("ref-1", "Carlos Mendes", 42, 9),
		ref("ref-2", "Fernanda Alves", 35, 8),
		ref("ref-3", "Ricardo Souza", 28, 5),
		ref("ref-4", "Juliana Costa", 20, 3),
		ref("ref-5", "Marcos Oliveira", 12, 1),
	}
}
