package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/propdesk/prop-pipeline/internal/domain/validation"
)

type ValidationRepository struct {
	mu      sync.RWMutex
	records map[string]validation.PropValidation
	byFP    map[string]string
}

func NewValidationRepository() *ValidationRepository {
	return &ValidationRepository{
		records: make(map[string]validation.PropValidation),
		byFP:    make(map[string]string),
	}
}

func (r *ValidationRepository) Create(_ context.Context, record validation.PropValidation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.ID] = record
	r.byFP[record.Fingerprint] = record.ID
	return nil
}

func (r *ValidationRepository) GetByFingerprint(_ context.Context, fingerprint string) (validation.PropValidation, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byFP[fingerprint]
	if !ok {
		return validation.PropValidation{}, false, nil
	}
	record, ok := r.records[id]
	return record, ok, nil
}

func (r *ValidationRepository) ListOpen(_ context.Context, sport string) ([]validation.PropValidation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sport = strings.ToLower(strings.TrimSpace(sport))
	out := make([]validation.PropValidation, 0, len(r.records))
	for _, record := range r.records {
		if sport != "" && record.Sport != sport {
			continue
		}
		if record.Open() {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ValidationRepository) Update(_ context.Context, record validation.PropValidation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.ID] = record
	r.byFP[record.Fingerprint] = record.ID
	return nil
}
