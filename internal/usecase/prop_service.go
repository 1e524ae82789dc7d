package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/prop"
	"github.com/propdesk/prop-pipeline/internal/domain/validation"
	"github.com/propdesk/prop-pipeline/internal/platform/id"
	"github.com/propdesk/prop-pipeline/internal/platform/logging"
)

// staleRetention is how long stale props linger before Sweep purges them.
const staleRetention = 24 * time.Hour

// PropQuery narrows the live-prop listing exposed to callers. Stale and
// expired entries are always excluded on this path.
type PropQuery struct {
	Sport  string
	GameID string
}

// SweepStats reports one sweep pass.
type SweepStats struct {
	Marked int `json:"marked"`
	Purged int `json:"purged"`
	Errors int `json:"errors"`
}

// Freshness tells callers how trustworthy the listing is. Fallback is set
// when the most recent odds refresh had to serve cached data because the
// upstream budget was exhausted.
type Freshness struct {
	Fallback    bool      `json:"fallback"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// PropService owns the TTL-bound prop cache. Every put opens a pending
// validation record for the fingerprint so settlement never depends on the
// cache entry still existing.
type PropService struct {
	propRepo       prop.Repository
	gameRepo       game.Repository
	validationRepo validation.Repository
	idGen          id.Generator
	logger         *logging.Logger

	mu        sync.RWMutex
	freshness Freshness
}

func NewPropService(
	propRepo prop.Repository,
	gameRepo game.Repository,
	validationRepo validation.Repository,
	idGen id.Generator,
	logger *logging.Logger,
) *PropService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PropService{
		propRepo:       propRepo,
		gameRepo:       gameRepo,
		validationRepo: validationRepo,
		idGen:          idGen,
		logger:         logger,
	}
}

// Put stores a prop, replacing any prior entry with the same fingerprint,
// and opens a pending validation record the first time the fingerprint is
// seen.
func (s *PropService) Put(ctx context.Context, item prop.PlayerProp) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.PropService.Put")
	defer span.End()

	item.Sport = strings.ToLower(strings.TrimSpace(item.Sport))
	item.Pick = strings.ToLower(strings.TrimSpace(item.Pick))
	if item.Fingerprint == "" {
		item.Fingerprint = prop.Fingerprint(item.GameID, item.Player, item.PropType, item.Pick, item.Threshold, item.Book)
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	item.Stale = false

	if err := s.propRepo.Put(ctx, item); err != nil {
		return fmt.Errorf("put prop: %w", err)
	}
	if err := s.openValidation(ctx, item, now); err != nil {
		return err
	}
	return nil
}

func (s *PropService) openValidation(ctx context.Context, item prop.PlayerProp, now time.Time) error {
	_, found, err := s.validationRepo.GetByFingerprint(ctx, item.Fingerprint)
	if err != nil {
		return fmt.Errorf("lookup validation record: %w", err)
	}
	if found {
		return nil
	}
	recordID, err := s.idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate validation id: %w", err)
	}
	record := validation.PropValidation{
		ID:          recordID,
		Fingerprint: item.Fingerprint,
		GameID:      item.GameID,
		Sport:       item.Sport,
		Player:      item.Player,
		PropType:    item.PropType,
		Pick:        item.Pick,
		Threshold:   item.Threshold,
		Projection:  item.Projection,
		Result:      validation.ResultPending,
		Status:      validation.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.validationRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("create validation record: %w", err)
	}
	return nil
}

// Query lists live props. Stale and expired entries never surface here.
func (s *PropService) Query(ctx context.Context, q PropQuery) ([]prop.PlayerProp, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PropService.Query")
	defer span.End()

	return s.propRepo.List(ctx, prop.Filter{
		Sport:  strings.ToLower(strings.TrimSpace(q.Sport)),
		GameID: strings.TrimSpace(q.GameID),
		Now:    time.Now().UTC(),
	})
}

// RecordRefresh notes the outcome of the latest odds refresh so Query
// callers can see whether they are looking at fallback data.
func (s *PropService) RecordRefresh(fallback bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshness = Freshness{Fallback: fallback, RefreshedAt: at.UTC()}
}

func (s *PropService) LastFreshness() Freshness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freshness
}

// Sweep marks props stale once they expire or once the referenced game
// leaves the scheduled state, then purges stale entries past retention.
// It is idempotent and safe to run concurrently with Query.
func (s *PropService) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PropService.Sweep")
	defer span.End()

	var stats SweepStats
	live, err := s.propRepo.List(ctx, prop.Filter{IncludeExpired: true, Now: now})
	if err != nil {
		return stats, fmt.Errorf("list props: %w", err)
	}

	gameStarted := make(map[string]bool, len(live))
	var stale []string
	for _, item := range live {
		if item.Expired(now) {
			stale = append(stale, item.Fingerprint)
			continue
		}
		started, ok := gameStarted[item.GameID]
		if !ok {
			g, found, err := s.gameRepo.GetByID(ctx, item.GameID)
			if err != nil {
				stats.Errors++
				s.logger.WarnContext(ctx, "sweep game lookup failed", "game_id", item.GameID, "error", err)
				continue
			}
			started = found && g.Status != game.StatusScheduled
			gameStarted[item.GameID] = started
		}
		if started {
			stale = append(stale, item.Fingerprint)
		}
	}

	if len(stale) > 0 {
		if err := s.propRepo.MarkStale(ctx, stale, now); err != nil {
			return stats, fmt.Errorf("mark props stale: %w", err)
		}
		stats.Marked = len(stale)
	}

	purged, err := s.propRepo.PurgeStaleBefore(ctx, now.Add(-staleRetention))
	if err != nil {
		return stats, fmt.Errorf("purge stale props: %w", err)
	}
	stats.Purged = purged
	return stats, nil
}
