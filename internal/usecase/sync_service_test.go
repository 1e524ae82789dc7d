package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/infrastructure/repository/memory"
	"github.com/propdesk/prop-pipeline/internal/platform/id"
)

type stubScheduleProvider struct {
	games []RawGame
	err   error
}

func (p stubScheduleProvider) FetchSchedule(_ context.Context, _ string, _ time.Time) ([]RawGame, error) {
	return p.games, p.err
}

type stubTeamProvider struct {
	teams []RawTeam
	err   error
}

func (p stubTeamProvider) FetchTeams(_ context.Context, _ string) ([]RawTeam, error) {
	return p.teams, p.err
}

type stubOddsProvider struct {
	page PropsPage
	err  error
}

func (p stubOddsProvider) FetchProps(_ context.Context, _, _ string) (PropsPage, error) {
	return p.page, p.err
}

type syncFixture struct {
	svc      *SyncService
	props    *PropService
	teamRepo *memory.TeamRepository
	gameRepo *memory.GameRepository
}

func newSyncFixture(t *testing.T, schedule ScheduleProvider, teams TeamProvider, oddsSource OddsProvider, scores ScoreProvider) syncFixture {
	t.Helper()

	teamRepo := memory.NewTeamRepository(nil)
	gameRepo := memory.NewGameRepository(nil)
	oddsRepo := memory.NewOddsRepository()
	propRepo := memory.NewPropRepository()
	validationRepo := memory.NewValidationRepository()

	ingestion := NewIngestionService(teamRepo, gameRepo, oddsRepo, nil)
	props := NewPropService(propRepo, gameRepo, validationRepo, id.NewUUIDGenerator(), nil)
	normalizer, err := NewTemporalNormalizer()
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}

	svc := NewSyncService(schedule, teams, oddsSource, scores, ingestion, props, normalizer, teamRepo, gameRepo, nil)
	return syncFixture{svc: svc, props: props, teamRepo: teamRepo, gameRepo: gameRepo}
}

func easternTime(t *testing.T, year int, month time.Month, day, hour int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}

func TestRunSyncEndToEnd(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	// Tomorrow's 10 PM Eastern slot, so the prop stays live at query time.
	tomorrow := time.Now().In(loc).AddDate(0, 0, 1)
	kickoff := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 22, 0, 0, 0, loc)
	schedule := stubScheduleProvider{games: []RawGame{{
		Provider:   "sportsfeed",
		ExternalID: "884211",
		Sport:      "nfl",
		HomeName:   "New England Patriots",
		AwayName:   "Buffalo Bills",
		Kickoff:    RawKickoff{Value: kickoff, Convention: ConventionInstant},
		Status:     "scheduled",
	}}}
	teams := stubTeamProvider{teams: []RawTeam{
		{Provider: "sportsfeed", ExternalID: "134920", Sport: "nfl", Name: "New England Patriots", Abbreviation: "NE"},
		{Provider: "sportsfeed", ExternalID: "134918", Sport: "nfl", Name: "Buffalo Bills", Abbreviation: "BUF"},
	}}
	oddsSource := stubOddsProvider{page: PropsPage{Props: []RawProp{{
		Provider:        "oddsboard",
		EventExternalID: "ev-77",
		Sport:           "nfl",
		HomeName:        "Patriots",
		AwayName:        "Bills",
		Player:          "Drake Maye",
		PropType:        "passing_yards",
		Pick:            "over",
		Threshold:       245.5,
		Book:            "oddsboard",
		Projection:      261.0,
		ExpiresAt:       kickoff.UTC(),
	}}}}
	fx := newSyncFixture(t, schedule, teams, oddsSource, stubScoreProvider{})
	ctx := context.Background()

	stats, err := fx.svc.RunSync(ctx, "nfl", DateRange{From: kickoff.UTC()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Two teams, one game, one prop.
	if stats.Added != 4 || stats.Errors != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	// The game lands on its Eastern market day with the canonical UTC
	// instant: a 10 PM start keeps the local date even though the UTC
	// date rolls over.
	wantID := "nfl-" + kickoff.Format("2006-01-02") + "-buffalo-bills-at-new-england-patriots"
	stored, found, err := fx.gameRepo.GetByID(ctx, wantID)
	if err != nil || !found {
		t.Fatalf("expected market-day canonical id %s, found=%v err=%v", wantID, found, err)
	}
	if !stored.StartsAt.Equal(kickoff.UTC()) {
		t.Fatalf("expected %s, got %s", kickoff.UTC(), stored.StartsAt)
	}
	if stored.StartsAt.UTC().Format("2006-01-02") == kickoff.Format("2006-01-02") {
		t.Fatal("late Eastern start should cross the UTC date boundary")
	}
	if stored.ExternalIDs["sportsfeed"] != "884211" {
		t.Fatalf("provider id not mapped: %+v", stored.ExternalIDs)
	}

	listed, err := fx.props.Query(ctx, PropQuery{Sport: "nfl"})
	if err != nil {
		t.Fatalf("query props: %v", err)
	}
	if len(listed) != 1 || listed[0].GameID != stored.ID {
		t.Fatalf("prop must resolve onto the canonical game, got %+v", listed)
	}
	if fx.props.LastFreshness().Fallback {
		t.Fatal("fresh fetch must not be flagged fallback")
	}
}

func TestRunSyncIsIdempotent(t *testing.T) {
	t.Parallel()

	kickoff := easternTime(t, 2025, time.November, 5, 22)
	schedule := stubScheduleProvider{games: []RawGame{{
		Provider:   "sportsfeed",
		ExternalID: "884211",
		HomeName:   "New England Patriots",
		AwayName:   "Buffalo Bills",
		Kickoff:    RawKickoff{Value: kickoff, Convention: ConventionInstant},
	}}}
	teams := stubTeamProvider{teams: []RawTeam{
		{Provider: "sportsfeed", ExternalID: "134920", Name: "New England Patriots"},
		{Provider: "sportsfeed", ExternalID: "134918", Name: "Buffalo Bills"},
	}}
	fx := newSyncFixture(t, schedule, teams, stubOddsProvider{}, stubScoreProvider{})
	ctx := context.Background()

	if _, err := fx.svc.RunSync(ctx, "nfl", DateRange{From: kickoff.UTC()}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stats, err := fx.svc.RunSync(ctx, "nfl", DateRange{From: kickoff.UTC()})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Added != 0 {
		t.Fatalf("overlapping runs must converge, got %+v", stats)
	}

	games, err := fx.gameRepo.ListBySport(ctx, "nfl")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("expected one canonical game, got %d", len(games))
	}
	teamRows, err := fx.teamRepo.ListBySport(ctx, "nfl")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(teamRows) != 2 {
		t.Fatalf("expected two canonical teams, got %d", len(teamRows))
	}
}

func TestRunSyncSurvivesProviderFailures(t *testing.T) {
	t.Parallel()

	teams := stubTeamProvider{teams: []RawTeam{
		{Provider: "sportsfeed", ExternalID: "134920", Name: "New England Patriots"},
	}}
	schedule := stubScheduleProvider{err: errors.New("upstream 503")}
	fx := newSyncFixture(t, schedule, teams, stubOddsProvider{}, stubScoreProvider{})
	ctx := context.Background()

	stats, err := fx.svc.RunSync(ctx, "nfl", DateRange{From: time.Now().UTC()})
	if err != nil {
		t.Fatalf("run must not abort on one provider: %v", err)
	}
	if stats.Added != 1 || stats.Errors != 1 {
		t.Fatalf("expected teams to land despite schedule failure, got %+v", stats)
	}
}

func TestRunSyncFlagsFallbackProps(t *testing.T) {
	t.Parallel()

	fx := newSyncFixture(t, stubScheduleProvider{}, stubTeamProvider{},
		stubOddsProvider{page: PropsPage{Fallback: true}}, stubScoreProvider{})
	ctx := context.Background()

	if _, err := fx.svc.RunSync(ctx, "nfl", DateRange{From: time.Now().UTC()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	freshness := fx.props.LastFreshness()
	if !freshness.Fallback {
		t.Fatal("budget-exhausted page must flag fallback")
	}
	if freshness.RefreshedAt.IsZero() {
		t.Fatal("fallback freshness must still carry a refresh time")
	}
}

func TestRunSyncScoresAdvanceGames(t *testing.T) {
	t.Parallel()

	started := time.Now().UTC().Add(-3 * time.Hour)
	fxGames := []game.Game{{
		ID:              "nfl-2025-11-05-buffalo-bills-at-new-england-patriots",
		Sport:           "nfl",
		StartsAt:        started,
		StartConfidence: game.ConfidenceHigh,
		Status:          game.StatusInProgress,
	}}
	scores := stubScoreProvider{scores: map[string]RawScore{
		fxGames[0].ID: {Status: "final", HomeScore: intPtr(27), AwayScore: intPtr(24)},
	}}
	fx := newSyncFixture(t, stubScheduleProvider{}, stubTeamProvider{}, stubOddsProvider{}, scores)
	ctx := context.Background()
	if err := fx.gameRepo.Upsert(ctx, fxGames); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stats, err := fx.svc.RunSync(ctx, "nfl", DateRange{From: started})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("expected the live game to settle, got %+v", stats)
	}

	stored, _, err := fx.gameRepo.GetByID(ctx, fxGames[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != game.StatusFinal || !stored.HasScore() {
		t.Fatalf("expected final with score, got %+v", stored)
	}
	if *stored.HomeScore != 27 || *stored.AwayScore != 24 {
		t.Fatalf("unexpected score: %d-%d", *stored.HomeScore, *stored.AwayScore)
	}
}
