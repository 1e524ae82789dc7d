package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/team"
	"github.com/propdesk/prop-pipeline/internal/domain/validation"
	"github.com/propdesk/prop-pipeline/internal/platform/logging"
)

// ValidationRunResult summarizes one settlement sweep.
type ValidationRunResult struct {
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
	Remaining int `json:"remaining"`
}

// ValidationConfig bounds the sweep.
type ValidationConfig struct {
	// Workers caps the ants pool size.
	Workers int
	// MaxAttempts caps resolution retries before a validation is marked
	// invalid instead of spinning forever.
	MaxAttempts int
	// FinalityWindow is how far past kickoff a game with a score is
	// presumed final when its provider never emits a terminal status.
	FinalityWindow time.Duration
}

func (c ValidationConfig) normalized() ValidationConfig {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.FinalityWindow <= 0 {
		c.FinalityWindow = 24 * time.Hour
	}
	return c
}

// ValidationService settles open prop validations against final games.
// Transitions follow the monotonic lifecycle in the validation package; a
// game that cannot be determined final stays pending rather than being
// guessed at.
type ValidationService struct {
	validationRepo validation.Repository
	gameRepo       game.Repository
	teamRepo       team.Repository
	scores         ScoreProvider
	cfg            ValidationConfig
	logger         *logging.Logger
	now            func() time.Time
}

func NewValidationService(
	validationRepo validation.Repository,
	gameRepo game.Repository,
	teamRepo team.Repository,
	scores ScoreProvider,
	cfg ValidationConfig,
	logger *logging.Logger,
) *ValidationService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ValidationService{
		validationRepo: validationRepo,
		gameRepo:       gameRepo,
		teamRepo:       teamRepo,
		scores:         scores,
		cfg:            cfg.normalized(),
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// RunValidation sweeps every open validation on a bounded worker pool.
// Failures are isolated per record; the run never aborts on one bad item.
func (s *ValidationService) RunValidation(ctx context.Context) (ValidationRunResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ValidationService.RunValidation")
	defer span.End()

	open, err := s.validationRepo.ListOpen(ctx, "")
	if err != nil {
		return ValidationRunResult{}, fmt.Errorf("list open validations: %w", err)
	}
	if len(open) == 0 {
		return ValidationRunResult{}, nil
	}

	resolver, err := s.buildResolver(ctx)
	if err != nil {
		return ValidationRunResult{}, err
	}

	workerCount := s.cfg.Workers
	if workerCount > len(open) {
		workerCount = len(open)
	}
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return ValidationRunResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var updated, failed, remaining atomic.Int32
	var workers sync.WaitGroup
	for _, record := range open {
		record := record
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			changed, err := s.settle(ctx, resolver, record)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.WarnContext(ctx, "validation settle failed",
					"validation_id", record.ID, "fingerprint", record.Fingerprint, "error", err)
			case changed:
				updated.Add(1)
			default:
				remaining.Add(1)
			}
		}); err != nil {
			workers.Done()
			return ValidationRunResult{}, fmt.Errorf("submit validation to worker pool: %w", err)
		}
	}
	workers.Wait()

	return ValidationRunResult{
		Updated:   int(updated.Load()),
		Errors:    int(failed.Load()),
		Remaining: int(remaining.Load()),
	}, nil
}

func (s *ValidationService) buildResolver(ctx context.Context) (*EntityResolver, error) {
	teams, err := s.teamRepo.ListBySport(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	games, err := s.gameRepo.ListBySport(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return NewEntityResolver(teams, games, 0), nil
}

// settle runs one validation through the state machine. It returns true when
// the record changed.
func (s *ValidationService) settle(ctx context.Context, resolver *EntityResolver, record validation.PropValidation) (bool, error) {
	g, found := s.lookupGame(ctx, resolver, record)
	if !found {
		return s.handleUnresolved(ctx, record)
	}

	if !s.isFinal(g) {
		// Not final yet: the record waits for a later sweep. A
		// needs_review record that got its game back settles through
		// the normal path once the game finishes.
		return false, nil
	}

	actual, played, err := s.fetchActual(ctx, g, record)
	if err != nil {
		return false, err
	}
	if !played {
		// Final box with no line for the player: the prediction's
		// subject was never in this game.
		return s.transition(ctx, record, validation.StatusInvalid, validation.ResultInvalid, nil)
	}
	result := validation.ComputeResult(record.Pick, record.Threshold, actual)
	return s.transition(ctx, record, validation.StatusCompleted, result, &actual)
}

func (s *ValidationService) lookupGame(ctx context.Context, resolver *EntityResolver, record validation.PropValidation) (game.Game, bool) {
	if record.GameID != "" {
		if g, found, err := s.gameRepo.GetByID(ctx, record.GameID); err == nil && found {
			return g, true
		}
	}
	// The captured reference may be a provider-native id.
	if g, found := resolver.ResolveGameByExternalValue(record.GameID); found {
		return g, true
	}
	return game.Game{}, false
}

func (s *ValidationService) handleUnresolved(ctx context.Context, record validation.PropValidation) (bool, error) {
	record.Attempts++
	if record.Attempts >= s.cfg.MaxAttempts {
		return s.transition(ctx, record, validation.StatusInvalid, validation.ResultInvalid, nil)
	}
	if record.Status == validation.StatusPending {
		return s.transition(ctx, record, validation.StatusNeedsReview, validation.ResultNeedsReview, nil)
	}
	// Still needs review; persist the attempt count so retries stay
	// bounded.
	record.UpdatedAt = s.now()
	if err := s.validationRepo.Update(ctx, record); err != nil {
		return false, fmt.Errorf("update validation attempts: %w", err)
	}
	return true, nil
}

// isFinal applies the terminal-status set plus the conservative fallback for
// providers that never emit one: well past kickoff with a score on record.
func (s *ValidationService) isFinal(g game.Game) bool {
	if g.Status == game.StatusFinal {
		return true
	}
	if g.Status == game.StatusPostponed {
		return false
	}
	return g.HasScore() && s.now().Sub(g.StartsAt) > s.cfg.FinalityWindow
}

func (s *ValidationService) fetchActual(ctx context.Context, g game.Game, record validation.PropValidation) (float64, bool, error) {
	score, err := s.scores.FetchScore(ctx, g.Sport, g.ID)
	if err != nil {
		return 0, false, fmt.Errorf("fetch score for game %s: %w", g.ID, err)
	}
	wantPlayer := strings.ToLower(strings.TrimSpace(record.Player))
	wantStat := strings.ToLower(strings.TrimSpace(record.PropType))
	for _, line := range score.PlayerStats {
		if strings.ToLower(strings.TrimSpace(line.Player)) == wantPlayer &&
			strings.ToLower(strings.TrimSpace(line.StatType)) == wantStat {
			return line.Value, true, nil
		}
	}
	return 0, false, nil
}

func (s *ValidationService) transition(ctx context.Context, record validation.PropValidation, status, result string, actual *float64) (bool, error) {
	if !validation.CanTransition(record.Status, status) {
		return false, fmt.Errorf("%w: validation %s cannot move %s -> %s",
			ErrIntegrityViolation, record.ID, record.Status, status)
	}
	now := s.now()
	record.Status = status
	record.Result = result
	record.Actual = actual
	record.UpdatedAt = now
	if status == validation.StatusCompleted || status == validation.StatusInvalid {
		record.ResolvedAt = &now
	}
	if err := s.validationRepo.Update(ctx, record); err != nil {
		return false, fmt.Errorf("update validation %s: %w", record.ID, err)
	}
	return true, nil
}
