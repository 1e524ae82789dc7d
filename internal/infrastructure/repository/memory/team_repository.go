package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/propdesk/prop-pipeline/internal/domain/team"
)

type TeamRepository struct {
	mu      sync.RWMutex
	teams   map[string]team.Team
	ordered []string
}

func NewTeamRepository(teams []team.Team) *TeamRepository {
	r := &TeamRepository{teams: make(map[string]team.Team, len(teams))}
	for _, item := range teams {
		if _, ok := r.teams[item.ID]; !ok {
			r.ordered = append(r.ordered, item.ID)
		}
		r.teams[item.ID] = item
	}
	return r
}

func (r *TeamRepository) ListBySport(_ context.Context, sport string) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sport = strings.ToLower(strings.TrimSpace(sport))
	out := make([]team.Team, 0, len(r.ordered))
	for _, id := range r.ordered {
		item := r.teams[id]
		if sport == "" || item.Sport == sport {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *TeamRepository) GetByID(_ context.Context, id string) (team.Team, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.teams[id]
	return item, ok, nil
}

func (r *TeamRepository) Upsert(_ context.Context, items []team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		if _, ok := r.teams[id]; !ok {
			r.ordered = append(r.ordered, id)
		}
		r.teams[id] = item
	}
	return nil
}
