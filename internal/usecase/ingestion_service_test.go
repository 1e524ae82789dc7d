package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/odds"
	"github.com/propdesk/prop-pipeline/internal/domain/team"
	"github.com/propdesk/prop-pipeline/internal/infrastructure/repository/memory"
)

func newIngestionFixture() (*IngestionService, *memory.TeamRepository, *memory.GameRepository, *memory.OddsRepository) {
	teamRepo := memory.NewTeamRepository(nil)
	gameRepo := memory.NewGameRepository(nil)
	oddsRepo := memory.NewOddsRepository()
	svc := NewIngestionService(teamRepo, gameRepo, oddsRepo, nil)
	return svc, teamRepo, gameRepo, oddsRepo
}

func TestUpsertGamesIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, _, gameRepo, _ := newIngestionFixture()
	ctx := context.Background()
	payload := []game.Game{{
		ID:              "nfl-2025-11-06-ne-buf",
		Sport:           "nfl",
		StartsAt:        time.Date(2025, time.November, 6, 3, 0, 0, 0, time.UTC),
		StartConfidence: game.ConfidenceHigh,
		Status:          game.StatusScheduled,
		HomeName:        "New England Patriots",
		AwayName:        "Buffalo Bills",
		ExternalIDs:     map[string]string{"sportsfeed": "884211"},
	}}

	stats, err := svc.UpsertGames(ctx, payload)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if stats.Added != 1 || stats.Updated != 0 || stats.Errors != 0 {
		t.Fatalf("unexpected first stats: %+v", stats)
	}

	stats, err = svc.UpsertGames(ctx, payload)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if stats.Added != 0 || stats.Updated != 1 || stats.Errors != 0 {
		t.Fatalf("unexpected second stats: %+v", stats)
	}

	stored, err := gameRepo.ListBySport(ctx, "nfl")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected exactly one canonical game, got %d", len(stored))
	}
	if !stored[0].StartsAt.Equal(payload[0].StartsAt) || stored[0].ExternalIDs["sportsfeed"] != "884211" {
		t.Fatalf("stored game drifted: %+v", stored[0])
	}
}

func TestUpsertGamesNeverClearsExternalIDs(t *testing.T) {
	t.Parallel()

	svc, _, gameRepo, _ := newIngestionFixture()
	ctx := context.Background()
	kickoff := time.Date(2025, time.November, 6, 3, 0, 0, 0, time.UTC)

	if _, err := svc.UpsertGames(ctx, []game.Game{{
		ID:              "g-1",
		Sport:           "nfl",
		StartsAt:        kickoff,
		StartConfidence: game.ConfidenceHigh,
		ExternalIDs:     map[string]string{"oddsboard": "ev-77"},
	}}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	// Re-ingest from a source that does not know the oddsboard id.
	if _, err := svc.UpsertGames(ctx, []game.Game{{
		ID:              "g-1",
		Sport:           "nfl",
		StartsAt:        kickoff,
		StartConfidence: game.ConfidenceHigh,
		Status:          "live",
		ExternalIDs:     map[string]string{"sportsfeed": "884211"},
	}}); err != nil {
		t.Fatalf("merge upsert: %v", err)
	}

	stored, found, err := gameRepo.GetByID(ctx, "g-1")
	if err != nil || !found {
		t.Fatalf("get: %v found=%v", err, found)
	}
	if stored.ExternalIDs["oddsboard"] != "ev-77" {
		t.Fatal("populated external id regressed")
	}
	if stored.ExternalIDs["sportsfeed"] != "884211" {
		t.Fatal("new external id was not merged in")
	}
	if stored.Status != game.StatusInProgress {
		t.Fatalf("status not advanced, got %q", stored.Status)
	}
}

func TestUpsertGamesKickoffMovesOnlyOnHigherConfidence(t *testing.T) {
	t.Parallel()

	svc, _, gameRepo, _ := newIngestionFixture()
	ctx := context.Background()
	trusted := time.Date(2025, time.November, 6, 3, 0, 0, 0, time.UTC)
	guessed := time.Date(2025, time.November, 5, 0, 0, 0, 0, time.UTC)

	if _, err := svc.UpsertGames(ctx, []game.Game{{
		ID: "g-1", Sport: "nfl", StartsAt: trusted, StartConfidence: game.ConfidenceHigh,
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.UpsertGames(ctx, []game.Game{{
		ID: "g-1", Sport: "nfl", StartsAt: guessed, StartConfidence: game.ConfidenceLow,
	}}); err != nil {
		t.Fatalf("low-confidence upsert: %v", err)
	}

	stored, _, err := gameRepo.GetByID(ctx, "g-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.StartsAt.Equal(trusted) {
		t.Fatalf("kickoff regressed to lower-confidence value: %s", stored.StartsAt)
	}
	if stored.StartConfidence != game.ConfidenceHigh {
		t.Fatalf("confidence regressed: %s", stored.StartConfidence)
	}
}

func TestUpsertGamesIsolatesPerItemFailures(t *testing.T) {
	t.Parallel()

	svc, _, gameRepo, _ := newIngestionFixture()
	ctx := context.Background()
	kickoff := time.Date(2025, time.November, 6, 3, 0, 0, 0, time.UTC)

	stats, err := svc.UpsertGames(ctx, []game.Game{
		{ID: "g-1", Sport: "nfl", StartsAt: kickoff, StartConfidence: game.ConfidenceHigh},
		{ID: "", Sport: "nfl", StartsAt: kickoff},
		{ID: "g-2", Sport: "nfl"}, // missing start instant
		{ID: "g-3", Sport: "nfl", StartsAt: kickoff.Add(time.Hour), StartConfidence: game.ConfidenceHigh},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stats.Added != 2 || stats.Errors != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	stored, err := gameRepo.ListBySport(ctx, "nfl")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected the two valid games, got %d", len(stored))
	}
}

func TestUpsertGamesRejectsConflictingExternalID(t *testing.T) {
	t.Parallel()

	svc, _, gameRepo, _ := newIngestionFixture()
	ctx := context.Background()
	kickoff := time.Date(2025, time.November, 6, 3, 0, 0, 0, time.UTC)

	if _, err := svc.UpsertGames(ctx, []game.Game{{
		ID: "g-1", Sport: "nfl", StartsAt: kickoff, StartConfidence: game.ConfidenceHigh,
		ExternalIDs: map[string]string{"sportsfeed": "884211"},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stats, err := svc.UpsertGames(ctx, []game.Game{{
		ID: "g-1", Sport: "nfl", StartsAt: kickoff, StartConfidence: game.ConfidenceHigh,
		ExternalIDs: map[string]string{"sportsfeed": "999999"},
	}})
	if err != nil {
		t.Fatalf("conflicting upsert: %v", err)
	}
	if stats.Errors != 1 || stats.Updated != 0 {
		t.Fatalf("expected the conflict to be rejected, got %+v", stats)
	}

	stored, _, err := gameRepo.GetByID(ctx, "g-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ExternalIDs["sportsfeed"] != "884211" {
		t.Fatalf("conflicting id overwrote the stored one: %q", stored.ExternalIDs["sportsfeed"])
	}
}

func TestUpsertGamesDedupesBatchLastWriteWins(t *testing.T) {
	t.Parallel()

	svc, _, gameRepo, _ := newIngestionFixture()
	ctx := context.Background()
	first := time.Date(2025, time.November, 6, 3, 0, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)

	stats, err := svc.UpsertGames(ctx, []game.Game{
		{ID: "g-1", Sport: "nfl", StartsAt: first, StartConfidence: game.ConfidenceHigh},
		{ID: "g-1", Sport: "nfl", StartsAt: second, StartConfidence: game.ConfidenceHigh},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stats.Added != 1 {
		t.Fatalf("in-batch duplicates must collapse to one write, got %+v", stats)
	}

	stored, _, err := gameRepo.GetByID(ctx, "g-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.StartsAt.Equal(second) {
		t.Fatalf("expected last write in batch to win, got %s", stored.StartsAt)
	}
}

func TestUpsertTeamsMergesAndFills(t *testing.T) {
	t.Parallel()

	svc, teamRepo, _, _ := newIngestionFixture()
	ctx := context.Background()

	if _, err := svc.UpsertTeams(ctx, []team.Team{{
		ID:    "nfl-new-england-patriots",
		Sport: "nfl",
		Name:  "New England Patriots",
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stats, err := svc.UpsertTeams(ctx, []team.Team{{
		ID:           "nfl-new-england-patriots",
		Sport:        "nfl",
		Name:         "Patriots",
		Abbreviation: "NE",
		ExternalIDs:  map[string]string{"sportsfeed": "134920"},
	}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	stored, found, err := teamRepo.GetByID(ctx, "nfl-new-england-patriots")
	if err != nil || !found {
		t.Fatalf("get: %v found=%v", err, found)
	}
	if stored.Name != "New England Patriots" {
		t.Fatalf("populated name must not be overwritten, got %q", stored.Name)
	}
	if stored.Abbreviation != "NE" || stored.ExternalIDs["sportsfeed"] != "134920" {
		t.Fatalf("unset fields must fill in, got %+v", stored)
	}
}

func TestUpsertOddsSkipsInvalidSnapshots(t *testing.T) {
	t.Parallel()

	svc, _, _, oddsRepo := newIngestionFixture()
	ctx := context.Background()

	stats, err := svc.UpsertOdds(ctx, []odds.Snapshot{
		{GameID: "g-1", Book: "pinnacle", Market: "spread", CapturedAt: time.Now().UTC(), Lines: map[string]float64{"home": -3.5}},
		{GameID: "", Book: "pinnacle", Market: "spread"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stats.Added != 1 || stats.Errors != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	stored, err := oddsRepo.ListByGame(ctx, "g-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(stored))
	}
}
