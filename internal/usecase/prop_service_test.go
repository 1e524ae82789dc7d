package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/prop"
	"github.com/propdesk/prop-pipeline/internal/domain/validation"
	"github.com/propdesk/prop-pipeline/internal/infrastructure/repository/memory"
	"github.com/propdesk/prop-pipeline/internal/platform/id"
)

func newPropFixture(games []game.Game) (*PropService, *memory.PropRepository, *memory.ValidationRepository) {
	propRepo := memory.NewPropRepository()
	validationRepo := memory.NewValidationRepository()
	svc := NewPropService(propRepo, memory.NewGameRepository(games), validationRepo, id.NewUUIDGenerator(), nil)
	return svc, propRepo, validationRepo
}

func testProp(gameID, player string, expiresAt time.Time) prop.PlayerProp {
	return prop.PlayerProp{
		GameID:     gameID,
		Sport:      "nba",
		Player:     player,
		PropType:   "points",
		Pick:       prop.PickOver,
		Threshold:  25.5,
		Book:       "oddsboard",
		Projection: 28.1,
		ExpiresAt:  expiresAt,
	}
}

func TestPropPutReplacesSameFingerprint(t *testing.T) {
	t.Parallel()

	svc, _, _ := newPropFixture(nil)
	ctx := context.Background()
	expires := time.Now().UTC().Add(6 * time.Hour)

	first := testProp("g-1", "LaMelo Ball", expires)
	first.Projection = 27.0
	if err := svc.Put(ctx, first); err != nil {
		t.Fatalf("first put: %v", err)
	}
	second := testProp("g-1", "LaMelo Ball", expires)
	second.Projection = 29.4
	if err := svc.Put(ctx, second); err != nil {
		t.Fatalf("second put: %v", err)
	}

	listed, err := svc.Query(ctx, PropQuery{Sport: "nba"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("fingerprint collision must replace, got %d entries", len(listed))
	}
	if listed[0].Projection != 29.4 {
		t.Fatalf("expected the later projection, got %v", listed[0].Projection)
	}
}

func TestPropQueryExcludesExpiredRegardlessOfStaleness(t *testing.T) {
	t.Parallel()

	svc, propRepo, _ := newPropFixture(nil)
	ctx := context.Background()

	expired := testProp("g-1", "LaMelo Ball", time.Now().UTC().Add(-time.Minute))
	expired.Fingerprint = prop.Fingerprint(expired.GameID, expired.Player, expired.PropType, expired.Pick, expired.Threshold, expired.Book)
	// Seed directly so the stale flag stays false with an expiry in the past.
	if err := propRepo.Put(ctx, expired); err != nil {
		t.Fatalf("seed: %v", err)
	}

	listed, err := svc.Query(ctx, PropQuery{Sport: "nba"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expired prop must not surface, got %d entries", len(listed))
	}
}

func TestPropPutOpensOneValidationRecord(t *testing.T) {
	t.Parallel()

	svc, _, validationRepo := newPropFixture(nil)
	ctx := context.Background()
	expires := time.Now().UTC().Add(6 * time.Hour)

	item := testProp("g-1", "LaMelo Ball", expires)
	if err := svc.Put(ctx, item); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := svc.Put(ctx, item); err != nil {
		t.Fatalf("second put: %v", err)
	}

	fp := prop.Fingerprint(item.GameID, item.Player, item.PropType, item.Pick, item.Threshold, item.Book)
	record, found, err := validationRepo.GetByFingerprint(ctx, fp)
	if err != nil || !found {
		t.Fatalf("expected a validation record: %v found=%v", err, found)
	}
	if record.Status != validation.StatusPending || record.Result != validation.ResultPending {
		t.Fatalf("new record must open pending, got %+v", record)
	}

	open, err := validationRepo.ListOpen(ctx, "nba")
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("repeated puts must not duplicate validation records, got %d", len(open))
	}
}

func TestPropSweep(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	games := []game.Game{
		{ID: "g-live", Sport: "nba", StartsAt: now.Add(-time.Hour), Status: game.StatusInProgress},
		{ID: "g-upcoming", Sport: "nba", StartsAt: now.Add(4 * time.Hour), Status: game.StatusScheduled},
	}
	svc, _, _ := newPropFixture(games)
	ctx := context.Background()

	for _, item := range []prop.PlayerProp{
		testProp("g-live", "LaMelo Ball", now.Add(2*time.Hour)),
		testProp("g-upcoming", "Jayson Tatum", now.Add(6*time.Hour)),
		testProp("g-upcoming", "Derrick White", now.Add(-time.Minute)),
	} {
		if err := svc.Put(ctx, item); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	stats, err := svc.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// The live game's prop and the already-expired prop go stale.
	if stats.Marked != 2 || stats.Errors != 0 {
		t.Fatalf("unexpected sweep stats: %+v", stats)
	}

	listed, err := svc.Query(ctx, PropQuery{Sport: "nba"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(listed) != 1 || listed[0].Player != "Jayson Tatum" {
		t.Fatalf("expected only the upcoming live prop, got %+v", listed)
	}

	// Sweeping again finds nothing new to mark.
	stats, err = svc.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if stats.Marked != 0 {
		t.Fatalf("sweep must be idempotent, got %+v", stats)
	}

	// Stale entries purge once past retention.
	stats, err = svc.Sweep(ctx, now.Add(staleRetention+time.Hour))
	if err != nil {
		t.Fatalf("purge sweep: %v", err)
	}
	if stats.Purged != 2 {
		t.Fatalf("expected stale entries purged, got %+v", stats)
	}
}
