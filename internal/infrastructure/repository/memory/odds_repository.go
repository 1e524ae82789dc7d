package memory

import (
	"context"
	"sync"

	"github.com/propdesk/prop-pipeline/internal/domain/odds"
)

type OddsRepository struct {
	mu        sync.RWMutex
	snapshots []odds.Snapshot
}

func NewOddsRepository() *OddsRepository {
	return &OddsRepository{}
}

func (r *OddsRepository) Append(_ context.Context, items []odds.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots = append(r.snapshots, items...)
	return nil
}

func (r *OddsRepository) ListByGame(_ context.Context, gameID string) ([]odds.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]odds.Snapshot, 0, 8)
	for _, item := range r.snapshots {
		if item.GameID == gameID {
			out = append(out, item)
		}
	}
	return out, nil
}
