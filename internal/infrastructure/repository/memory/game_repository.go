package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
)

type GameRepository struct {
	mu    sync.RWMutex
	games map[string]game.Game
}

func NewGameRepository(games []game.Game) *GameRepository {
	r := &GameRepository{games: make(map[string]game.Game, len(games))}
	for _, item := range games {
		r.games[item.ID] = item
	}
	return r
}

func (r *GameRepository) ListBySport(_ context.Context, sport string) ([]game.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sport = strings.ToLower(strings.TrimSpace(sport))
	out := make([]game.Game, 0, len(r.games))
	for _, item := range r.games {
		if sport == "" || item.Sport == sport {
			out = append(out, item)
		}
	}
	sortGames(out)
	return out, nil
}

func (r *GameRepository) ListByDateRange(_ context.Context, sport string, from, to time.Time) ([]game.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sport = strings.ToLower(strings.TrimSpace(sport))
	out := make([]game.Game, 0, len(r.games))
	for _, item := range r.games {
		if sport != "" && item.Sport != sport {
			continue
		}
		if item.StartsAt.Before(from) || item.StartsAt.After(to) {
			continue
		}
		out = append(out, item)
	}
	sortGames(out)
	return out, nil
}

func (r *GameRepository) GetByID(_ context.Context, id string) (game.Game, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.games[id]
	return item, ok, nil
}

func (r *GameRepository) Upsert(_ context.Context, items []game.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		r.games[id] = item
	}
	return nil
}

func sortGames(games []game.Game) {
	sort.Slice(games, func(i, j int) bool {
		if games[i].StartsAt.Equal(games[j].StartsAt) {
			return games[i].ID < games[j].ID
		}
		return games[i].StartsAt.Before(games[j].StartsAt)
	})
}
