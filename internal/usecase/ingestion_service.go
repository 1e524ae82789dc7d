package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/odds"
	"github.com/propdesk/prop-pipeline/internal/domain/team"
	"github.com/propdesk/prop-pipeline/internal/platform/logging"
)

// SyncStats tallies the outcome of one ingestion batch. Failures are isolated
// per item; a non-zero Errors count never means the batch was aborted.
type SyncStats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

func (s SyncStats) merge(other SyncStats) SyncStats {
	s.Added += other.Added
	s.Updated += other.Updated
	s.Errors += other.Errors
	return s
}

// IngestionService is the single write path into the canonical store. All
// upserts are idempotent and merge-only: populated fields never regress, and
// a start instant only moves on strictly higher confidence.
type IngestionService struct {
	teamRepo team.Repository
	gameRepo game.Repository
	oddsRepo odds.Repository
	logger   *logging.Logger
}

func NewIngestionService(
	teamRepo team.Repository,
	gameRepo game.Repository,
	oddsRepo odds.Repository,
	logger *logging.Logger,
) *IngestionService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &IngestionService{
		teamRepo: teamRepo,
		gameRepo: gameRepo,
		oddsRepo: oddsRepo,
		logger:   logger,
	}
}

// UpsertTeams deduplicates the batch by canonical id (last write wins
// in-batch), merges each record against the stored row, and writes the
// survivors. Individual failures are counted and skipped.
func (s *IngestionService) UpsertTeams(ctx context.Context, teams []team.Team) (SyncStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IngestionService.UpsertTeams")
	defer span.End()

	var stats SyncStats
	if len(teams) == 0 {
		return stats, nil
	}

	deduped := dedupeTeams(teams)
	merged := make([]team.Team, 0, len(deduped))
	for _, incoming := range deduped {
		if err := incoming.Validate(); err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "skipping invalid team", "team_id", incoming.ID, "error", err)
			continue
		}
		existing, found, err := s.teamRepo.GetByID(ctx, incoming.ID)
		if err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "team lookup failed", "team_id", incoming.ID, "error", err)
			continue
		}
		if !found {
			stats.Added++
			merged = append(merged, incoming)
			continue
		}
		out, err := mergeTeam(existing, incoming)
		if err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "rejecting team upsert", "team_id", incoming.ID, "error", err)
			continue
		}
		stats.Updated++
		merged = append(merged, out)
	}

	if len(merged) == 0 {
		return stats, nil
	}
	if err := s.teamRepo.Upsert(ctx, merged); err != nil {
		return SyncStats{Errors: len(deduped)}, fmt.Errorf("upsert teams: %w", err)
	}
	return stats, nil
}

// UpsertGames follows the same dedup-merge-write shape as UpsertTeams, with
// the extra temporal rule: a stored start instant is only replaced by an
// incoming one of strictly higher confidence.
func (s *IngestionService) UpsertGames(ctx context.Context, games []game.Game) (SyncStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IngestionService.UpsertGames")
	defer span.End()

	var stats SyncStats
	if len(games) == 0 {
		return stats, nil
	}

	deduped := dedupeGames(games)
	merged := make([]game.Game, 0, len(deduped))
	for _, incoming := range deduped {
		incoming.Status = game.NormalizeStatus(incoming.Status)
		if err := validateGame(incoming); err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "skipping invalid game", "game_id", incoming.ID, "error", err)
			continue
		}
		existing, found, err := s.gameRepo.GetByID(ctx, incoming.ID)
		if err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "game lookup failed", "game_id", incoming.ID, "error", err)
			continue
		}
		if !found {
			incoming.StartsAt = incoming.StartsAt.UTC()
			stats.Added++
			merged = append(merged, incoming)
			continue
		}
		out, err := mergeGame(existing, incoming)
		if err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "rejecting game upsert", "game_id", incoming.ID, "error", err)
			continue
		}
		stats.Updated++
		merged = append(merged, out)
	}

	if len(merged) == 0 {
		return stats, nil
	}
	if err := s.gameRepo.Upsert(ctx, merged); err != nil {
		return SyncStats{Errors: len(deduped)}, fmt.Errorf("upsert games: %w", err)
	}
	return stats, nil
}

// UpsertOdds appends snapshots. The odds store is append-only, so there is no
// merge step, only per-item validation.
func (s *IngestionService) UpsertOdds(ctx context.Context, snapshots []odds.Snapshot) (SyncStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IngestionService.UpsertOdds")
	defer span.End()

	var stats SyncStats
	valid := make([]odds.Snapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if err := snap.Validate(); err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "skipping invalid odds snapshot", "game_id", snap.GameID, "error", err)
			continue
		}
		valid = append(valid, snap)
	}
	if len(valid) == 0 {
		return stats, nil
	}
	if err := s.oddsRepo.Append(ctx, valid); err != nil {
		return SyncStats{Errors: len(snapshots)}, fmt.Errorf("append odds snapshots: %w", err)
	}
	stats.Added += len(valid)
	return stats, nil
}

func dedupeTeams(teams []team.Team) []team.Team {
	byID := make(map[string]int, len(teams))
	out := make([]team.Team, 0, len(teams))
	for _, t := range teams {
		t.ID = strings.TrimSpace(t.ID)
		if idx, ok := byID[t.ID]; ok {
			out[idx] = t
			continue
		}
		byID[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

func dedupeGames(games []game.Game) []game.Game {
	byID := make(map[string]int, len(games))
	out := make([]game.Game, 0, len(games))
	for _, g := range games {
		g.ID = strings.TrimSpace(g.ID)
		if idx, ok := byID[g.ID]; ok {
			out[idx] = g
			continue
		}
		byID[g.ID] = len(out)
		out = append(out, g)
	}
	return out
}

func validateGame(g game.Game) error {
	if g.ID == "" {
		return fmt.Errorf("%w: game id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(g.Sport) == "" {
		return fmt.Errorf("%w: game sport is required", ErrInvalidInput)
	}
	if g.StartsAt.IsZero() {
		return fmt.Errorf("%w: game start instant is required", ErrInvalidInput)
	}
	return nil
}

// mergeTeam folds an incoming team into the stored one. Unset fields fill in,
// populated external ids never regress, and a conflicting external id for the
// same provider is an integrity violation.
func mergeTeam(existing, incoming team.Team) (team.Team, error) {
	if existing.Sport != incoming.Sport {
		return team.Team{}, fmt.Errorf("%w: team %s sport %q conflicts with stored %q",
			ErrIntegrityViolation, existing.ID, incoming.Sport, existing.Sport)
	}
	out := existing
	if out.Name == "" {
		out.Name = incoming.Name
	}
	if out.Abbreviation == "" {
		out.Abbreviation = incoming.Abbreviation
	}
	mergedIDs, err := mergeExternalIDs(existing.ExternalIDs, incoming.ExternalIDs, "team "+existing.ID)
	if err != nil {
		return team.Team{}, err
	}
	out.ExternalIDs = mergedIDs
	return out, nil
}

func mergeGame(existing, incoming game.Game) (game.Game, error) {
	if existing.Sport != incoming.Sport {
		return game.Game{}, fmt.Errorf("%w: game %s sport %q conflicts with stored %q",
			ErrIntegrityViolation, existing.ID, incoming.Sport, existing.Sport)
	}
	out := existing

	// A kickoff only moves when the incoming source is strictly more
	// trustworthy about it.
	if incoming.StartConfidence > existing.StartConfidence && !incoming.StartsAt.IsZero() {
		out.StartsAt = incoming.StartsAt.UTC()
		out.StartConfidence = incoming.StartConfidence
	}

	// Status advances toward a terminal state but never regresses out of
	// one.
	if incoming.Status != "" && !(game.IsTerminalStatus(existing.Status) && !game.IsTerminalStatus(incoming.Status)) {
		out.Status = incoming.Status
	}

	if out.HomeTeamID == "" {
		out.HomeTeamID = incoming.HomeTeamID
	}
	if out.AwayTeamID == "" {
		out.AwayTeamID = incoming.AwayTeamID
	}
	if out.HomeName == "" {
		out.HomeName = incoming.HomeName
	}
	if out.AwayName == "" {
		out.AwayName = incoming.AwayName
	}
	if incoming.HomeScore != nil {
		out.HomeScore = incoming.HomeScore
	}
	if incoming.AwayScore != nil {
		out.AwayScore = incoming.AwayScore
	}

	mergedIDs, err := mergeExternalIDs(existing.ExternalIDs, incoming.ExternalIDs, "game "+existing.ID)
	if err != nil {
		return game.Game{}, err
	}
	out.ExternalIDs = mergedIDs
	return out, nil
}

// mergeExternalIDs unions provider ids. A stored id is never cleared, and two
// different ids for the same provider cannot both be right.
func mergeExternalIDs(existing, incoming map[string]string, subject string) (map[string]string, error) {
	if len(incoming) == 0 {
		return existing, nil
	}
	out := make(map[string]string, len(existing)+len(incoming))
	for provider, id := range existing {
		out[provider] = id
	}
	for provider, id := range incoming {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if current, ok := out[provider]; ok && current != id {
			return nil, fmt.Errorf("%w: %s already has %s id %q, incoming %q",
				ErrIntegrityViolation, subject, provider, current, id)
		}
		out[provider] = id
	}
	return out, nil
}
