package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/odds"
	"github.com/propdesk/prop-pipeline/internal/domain/prop"
	"github.com/propdesk/prop-pipeline/internal/domain/team"
	"github.com/propdesk/prop-pipeline/internal/platform/logging"
)

// DateRange is inclusive on both ends, interpreted as market days.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) days() []time.Time {
	if r.From.IsZero() {
		return nil
	}
	to := r.To
	if to.IsZero() {
		to = r.From
	}
	from := r.From.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)

	var out []time.Time
	for d := from; !d.After(to); d = d.Add(24 * time.Hour) {
		out = append(out, d)
	}
	return out
}

// SyncService drives one ingestion run: teams, schedule, live scores, then
// props. Every write funnels through the ingestor's merge-only upsert; the
// normalizer and resolver gate every record on the way in.
type SyncService struct {
	schedule   ScheduleProvider
	teams      TeamProvider
	oddsSource OddsProvider
	scores     ScoreProvider

	ingestion  *IngestionService
	props      *PropService
	normalizer *TemporalNormalizer
	teamRepo   team.Repository
	gameRepo   game.Repository
	logger     *logging.Logger
	now        func() time.Time
}

func NewSyncService(
	schedule ScheduleProvider,
	teams TeamProvider,
	oddsSource OddsProvider,
	scores ScoreProvider,
	ingestion *IngestionService,
	props *PropService,
	normalizer *TemporalNormalizer,
	teamRepo team.Repository,
	gameRepo game.Repository,
	logger *logging.Logger,
) *SyncService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SyncService{
		schedule:   schedule,
		teams:      teams,
		oddsSource: oddsSource,
		scores:     scores,
		ingestion:  ingestion,
		props:      props,
		normalizer: normalizer,
		teamRepo:   teamRepo,
		gameRepo:   gameRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunSync pulls every provider category for the sport and date range and
// reconciles the results into the canonical store. Runs are re-entrant;
// overlapping invocations converge on the same rows.
func (s *SyncService) RunSync(ctx context.Context, sport string, dates DateRange) (SyncStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.RunSync")
	defer span.End()

	sport = strings.ToLower(strings.TrimSpace(sport))
	if sport == "" {
		return SyncStats{}, fmt.Errorf("%w: sport is required", ErrInvalidInput)
	}
	days := dates.days()
	if len(days) == 0 {
		return SyncStats{}, fmt.Errorf("%w: date range is required", ErrInvalidInput)
	}

	rawTeams, rawGames, fetchErrors := s.fetchUpstream(ctx, sport, days)
	stats := SyncStats{Errors: fetchErrors}

	teamStats, err := s.syncTeams(ctx, sport, rawTeams)
	if err != nil {
		return stats, err
	}
	stats = stats.merge(teamStats)

	gameStats, err := s.syncGames(ctx, sport, rawGames)
	if err != nil {
		return stats, err
	}
	stats = stats.merge(gameStats)

	scoreStats, err := s.syncScores(ctx, sport)
	if err != nil {
		return stats, err
	}
	stats = stats.merge(scoreStats)

	propStats, err := s.syncProps(ctx, sport)
	if err != nil {
		return stats, err
	}
	stats = stats.merge(propStats)

	s.logger.InfoContext(ctx, "sync run finished",
		"sport", sport, "days", len(days),
		"added", stats.Added, "updated", stats.Updated, "errors", stats.Errors)
	return stats, nil
}

// fetchUpstream pulls the team list and every day's schedule concurrently.
// A failed fetch is logged and counted; the run continues with whatever
// arrived.
func (s *SyncService) fetchUpstream(ctx context.Context, sport string, days []time.Time) ([]RawTeam, []RawGame, int) {
	var (
		mu       sync.Mutex
		rawTeams []RawTeam
		rawGames []RawGame
		failures int
	)

	var wg conc.WaitGroup
	wg.Go(func() {
		fetched, err := s.teams.FetchTeams(ctx, sport)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failures++
			s.logger.WarnContext(ctx, "team fetch failed", "sport", sport, "error", err)
			return
		}
		rawTeams = fetched
	})
	for _, day := range days {
		day := day
		wg.Go(func() {
			fetched, err := s.schedule.FetchSchedule(ctx, sport, day)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				s.logger.WarnContext(ctx, "schedule fetch failed",
					"sport", sport, "date", day.Format("2006-01-02"), "error", err)
				return
			}
			rawGames = append(rawGames, fetched...)
		})
	}
	wg.Wait()

	return rawTeams, rawGames, failures
}

func (s *SyncService) syncTeams(ctx context.Context, sport string, rawTeams []RawTeam) (SyncStats, error) {
	var stats SyncStats
	if len(rawTeams) == 0 {
		return stats, nil
	}

	existing, err := s.teamRepo.ListBySport(ctx, sport)
	if err != nil {
		return stats, fmt.Errorf("list teams: %w", err)
	}
	resolver := NewEntityResolver(existing, nil, 0)

	batch := make([]team.Team, 0, len(rawTeams))
	for _, raw := range rawTeams {
		if strings.TrimSpace(raw.Name) == "" {
			stats.Errors++
			continue
		}
		canonical := s.canonicalTeam(resolver, sport, raw.Provider, raw.ExternalID, raw.Name)
		canonical.Abbreviation = strings.TrimSpace(raw.Abbreviation)
		batch = append(batch, canonical)
	}

	upserted, err := s.ingestion.UpsertTeams(ctx, batch)
	if err != nil {
		return stats, err
	}
	return stats.merge(upserted), nil
}

// canonicalTeam routes a provider team reference through the resolver; only
// a reference no tier can match mints a fresh canonical id, derived
// deterministically from the name so re-runs converge.
func (s *SyncService) canonicalTeam(resolver *EntityResolver, sport, provider, externalID, name string) team.Team {
	externalIDs := map[string]string{}
	if provider != "" && externalID != "" {
		externalIDs[provider] = externalID
		if matched, ok := resolver.ResolveTeamByExternalID(provider, externalID); ok {
			matched.ExternalIDs = mergeIDsUnsafe(matched.ExternalIDs, externalIDs)
			return matched
		}
	}
	if matched, ok := resolver.ResolveTeam(name, sport); ok {
		matched.ExternalIDs = mergeIDsUnsafe(matched.ExternalIDs, externalIDs)
		return matched
	}
	return team.Team{
		ID:          team.CanonicalID(sport, name),
		Sport:       sport,
		Name:        strings.TrimSpace(name),
		ExternalIDs: externalIDs,
	}
}

// mergeIDsUnsafe fills only missing providers; conflict checking happens in
// the ingestor, which sees the stored row.
func mergeIDsUnsafe(existing, incoming map[string]string) map[string]string {
	if len(incoming) == 0 {
		return existing
	}
	out := make(map[string]string, len(existing)+len(incoming))
	for provider, id := range existing {
		out[provider] = id
	}
	for provider, id := range incoming {
		if _, ok := out[provider]; !ok {
			out[provider] = id
		}
	}
	return out
}

func (s *SyncService) syncGames(ctx context.Context, sport string, rawGames []RawGame) (SyncStats, error) {
	var stats SyncStats
	if len(rawGames) == 0 {
		return stats, nil
	}

	resolver, err := s.storeResolver(ctx, sport)
	if err != nil {
		return stats, err
	}

	batch := make([]game.Game, 0, len(rawGames))
	for _, raw := range rawGames {
		mapped, err := s.mapGame(resolver, sport, raw)
		if err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "skipping schedule entry",
				"sport", sport, "provider", raw.Provider, "external_id", raw.ExternalID, "error", err)
			continue
		}
		batch = append(batch, mapped)
	}

	upserted, err := s.ingestion.UpsertGames(ctx, batch)
	if err != nil {
		return stats, err
	}
	return stats.merge(upserted), nil
}

func (s *SyncService) storeResolver(ctx context.Context, sport string) (*EntityResolver, error) {
	teams, err := s.teamRepo.ListBySport(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	games, err := s.gameRepo.ListBySport(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return NewEntityResolver(teams, games, 0), nil
}

func (s *SyncService) mapGame(resolver *EntityResolver, sport string, raw RawGame) (game.Game, error) {
	if strings.TrimSpace(raw.HomeName) == "" || strings.TrimSpace(raw.AwayName) == "" {
		return game.Game{}, fmt.Errorf("%w: home and away names are required", ErrInvalidInput)
	}
	instant, confidence, err := s.normalizer.Normalize(raw.Kickoff, sport)
	if err != nil {
		return game.Game{}, err
	}

	home := s.canonicalTeam(resolver, sport, "", "", raw.HomeName)
	away := s.canonicalTeam(resolver, sport, "", "", raw.AwayName)

	mapped := game.Game{
		Sport:           sport,
		StartsAt:        instant,
		StartConfidence: confidence,
		Status:          game.NormalizeStatus(raw.Status),
		HomeTeamID:      home.ID,
		AwayTeamID:      away.ID,
		HomeName:        home.Name,
		AwayName:        away.Name,
	}
	if raw.Provider != "" && raw.ExternalID != "" {
		mapped.ExternalIDs = map[string]string{raw.Provider: raw.ExternalID}
	}

	// An already-known game keeps its canonical id; anything else gets
	// the deterministic market-day id.
	if known, ok := resolver.ResolveGame(GameCandidate{
		Provider:   raw.Provider,
		ExternalID: raw.ExternalID,
		HomeName:   raw.HomeName,
		AwayName:   raw.AwayName,
	}, sport, instant); ok {
		mapped.ID = known.ID
	} else {
		mapped.ID = s.canonicalGameID(sport, instant, away.ID, home.ID)
	}
	return mapped, nil
}

// canonicalGameID is stable across providers and re-runs: sport, market day,
// away at home.
func (s *SyncService) canonicalGameID(sport string, instant time.Time, awayID, homeID string) string {
	day := game.Game{Sport: sport, StartsAt: instant}.MarketDay(s.normalizer.HomeZone(sport))
	return fmt.Sprintf("%s-%s-%s-at-%s",
		sport, day,
		strings.TrimPrefix(awayID, sport+"-"),
		strings.TrimPrefix(homeID, sport+"-"))
}

// syncScores refreshes status and scores for games that should be settling:
// anything non-terminal whose kickoff has passed.
func (s *SyncService) syncScores(ctx context.Context, sport string) (SyncStats, error) {
	var stats SyncStats
	now := s.now()
	games, err := s.gameRepo.ListByDateRange(ctx, sport, now.Add(-7*24*time.Hour), now)
	if err != nil {
		return stats, fmt.Errorf("list recent games: %w", err)
	}

	updates := make([]game.Game, 0, len(games))
	for _, g := range games {
		if game.IsTerminalStatus(g.Status) || now.Before(g.StartsAt) {
			continue
		}
		score, err := s.scores.FetchScore(ctx, sport, g.ID)
		if err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "score fetch failed", "game_id", g.ID, "error", err)
			continue
		}
		g.Status = game.NormalizeStatus(score.Status)
		if score.HomeScore != nil {
			g.HomeScore = score.HomeScore
		}
		if score.AwayScore != nil {
			g.AwayScore = score.AwayScore
		}
		updates = append(updates, g)
	}
	if len(updates) == 0 {
		return stats, nil
	}

	upserted, err := s.ingestion.UpsertGames(ctx, updates)
	if err != nil {
		return stats, err
	}
	return stats.merge(upserted), nil
}

// syncProps refreshes the prop cache and appends odds snapshots. Budget
// exhaustion inside the odds client surfaces as a fallback-flagged page, not
// an error.
func (s *SyncService) syncProps(ctx context.Context, sport string) (SyncStats, error) {
	var stats SyncStats
	page, err := s.oddsSource.FetchProps(ctx, sport, "")
	if err != nil {
		stats.Errors++
		s.logger.WarnContext(ctx, "props fetch failed", "sport", sport, "error", err)
		return stats, nil
	}
	s.props.RecordRefresh(page.Fallback, s.now())
	if len(page.Props) == 0 {
		return stats, nil
	}

	resolver, err := s.storeResolver(ctx, sport)
	if err != nil {
		return stats, err
	}

	snapshots := make([]odds.Snapshot, 0, len(page.Props))
	for _, raw := range page.Props {
		g, ok := resolver.ResolveGame(GameCandidate{
			Provider:   raw.Provider,
			ExternalID: raw.EventExternalID,
			HomeName:   raw.HomeName,
			AwayName:   raw.AwayName,
		}, sport, s.now())
		if !ok {
			stats.Errors++
			s.logger.WarnContext(ctx, "prop references unknown game",
				"provider", raw.Provider, "event_id", raw.EventExternalID,
				"home", raw.HomeName, "away", raw.AwayName)
			continue
		}

		item := prop.PlayerProp{
			GameID:      g.ID,
			Sport:       sport,
			Player:      raw.Player,
			PropType:    raw.PropType,
			Pick:        raw.Pick,
			Threshold:   raw.Threshold,
			Book:        raw.Book,
			Projection:  raw.Projection,
			Probability: raw.Probability,
			Edge:        raw.Edge,
			Quality:     raw.Quality,
			ExpiresAt:   raw.ExpiresAt,
		}
		if item.ExpiresAt.IsZero() {
			item.ExpiresAt = g.StartsAt
		}
		if err := s.props.Put(ctx, item); err != nil {
			stats.Errors++
			s.logger.WarnContext(ctx, "prop put failed", "player", raw.Player, "error", err)
			continue
		}
		stats.Added++

		snapshots = append(snapshots, odds.Snapshot{
			GameID:     g.ID,
			Book:       raw.Book,
			Market:     raw.PropType,
			CapturedAt: s.now(),
			Lines: map[string]float64{
				strings.ToLower(raw.Pick): raw.Threshold,
			},
		})
	}

	if len(snapshots) > 0 {
		appended, err := s.ingestion.UpsertOdds(ctx, snapshots)
		if err != nil {
			return stats, err
		}
		stats.Errors += appended.Errors
	}
	return stats, nil
}
