package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
)

func TestStringMapRoundTrip(t *testing.T) {
	encoded, err := encodeStringMap(map[string]string{"sportsfeed": "sr-1234"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := decodeStringMap(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["sportsfeed"] != "sr-1234" {
		t.Fatalf("unexpected decoded map: %v", decoded)
	}
}

func TestStringMapEmpty(t *testing.T) {
	encoded, err := encodeStringMap(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded != "{}" {
		t.Fatalf("expected empty object, got %q", encoded)
	}

	decoded, err := decodeStringMap("")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty map, got %v", decoded)
	}
}

func TestGameModelRoundTrip(t *testing.T) {
	home := 27
	away := 24
	item := game.Game{
		ID:              "nfl-2026-01-11-buffalo-bills-at-new-england-patriots",
		Sport:           "nfl",
		StartsAt:        time.Date(2026, time.January, 12, 1, 15, 0, 0, time.UTC),
		StartConfidence: game.ConfidenceHigh,
		Status:          game.StatusFinal,
		HomeTeamID:      "nfl-new-england-patriots",
		AwayTeamID:      "nfl-buffalo-bills",
		HomeName:        "New England Patriots",
		AwayName:        "Buffalo Bills",
		HomeScore:       &home,
		AwayScore:       &away,
		ExternalIDs:     map[string]string{"sportsfeed": "ev-42"},
	}

	insertModel, err := gameToInsertModel(item)
	if err != nil {
		t.Fatalf("to insert model: %v", err)
	}

	row := gameTableModel{
		ID:              insertModel.ID,
		Sport:           insertModel.Sport,
		StartsAt:        insertModel.StartsAt,
		StartConfidence: insertModel.StartConfidence,
		Status:          insertModel.Status,
		HomeTeamID:      insertModel.HomeTeamID,
		AwayTeamID:      insertModel.AwayTeamID,
		HomeName:        insertModel.HomeName,
		AwayName:        insertModel.AwayName,
		HomeScore:       insertModel.HomeScore,
		AwayScore:       insertModel.AwayScore,
		ExternalIDs:     insertModel.ExternalIDs,
	}
	got, err := row.toDomain()
	if err != nil {
		t.Fatalf("to domain: %v", err)
	}

	if !got.StartsAt.Equal(item.StartsAt) {
		t.Fatalf("expected starts_at %v, got %v", item.StartsAt, got.StartsAt)
	}
	if got.StartConfidence != game.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %v", got.StartConfidence)
	}
	if got.HomeScore == nil || *got.HomeScore != home {
		t.Fatalf("expected home score %d, got %v", home, got.HomeScore)
	}
	if got.ExternalIDs["sportsfeed"] != "ev-42" {
		t.Fatalf("unexpected external ids: %v", got.ExternalIDs)
	}
}

func TestNullableIntHelpers(t *testing.T) {
	if v := intPointer(sql.NullInt64{}); v != nil {
		t.Fatalf("expected nil for invalid value, got %v", v)
	}

	score := 31
	encoded := nullableInt(&score)
	if !encoded.Valid || encoded.Int64 != 31 {
		t.Fatalf("unexpected encoded value: %+v", encoded)
	}
	if v := intPointer(encoded); v == nil || *v != 31 {
		t.Fatalf("unexpected decoded value: %v", v)
	}
}
