package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/prop"
)

type PropRepository struct {
	mu    sync.RWMutex
	props map[string]prop.PlayerProp
}

func NewPropRepository() *PropRepository {
	return &PropRepository{props: make(map[string]prop.PlayerProp)}
}

func (r *PropRepository) Put(_ context.Context, item prop.PlayerProp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.props[item.Fingerprint] = item
	return nil
}

func (r *PropRepository) List(_ context.Context, filter prop.Filter) ([]prop.PlayerProp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	sport := strings.ToLower(strings.TrimSpace(filter.Sport))

	out := make([]prop.PlayerProp, 0, len(r.props))
	for _, item := range r.props {
		if sport != "" && item.Sport != sport {
			continue
		}
		if filter.GameID != "" && item.GameID != filter.GameID {
			continue
		}
		if !filter.IncludeStale && item.Stale {
			continue
		}
		if !filter.IncludeExpired && item.Expired(now) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out, nil
}

func (r *PropRepository) MarkStale(_ context.Context, fingerprints []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, fp := range fingerprints {
		item, ok := r.props[fp]
		if !ok || item.Stale {
			continue
		}
		item.Stale = true
		item.UpdatedAt = at
		r.props[fp] = item
	}
	return nil
}

func (r *PropRepository) PurgeStaleBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for fp, item := range r.props {
		if item.Stale && item.UpdatedAt.Before(cutoff) {
			delete(r.props, fp)
			purged++
		}
	}
	return purged, nil
}
