package postgres

import (
	"database/sql"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
)

type gameTableModel struct {
	ID              string        `db:"id"`
	Sport           string        `db:"sport"`
	StartsAt        time.Time     `db:"starts_at"`
	StartConfidence int           `db:"start_confidence"`
	Status          string        `db:"status"`
	HomeTeamID      string        `db:"home_team_id"`
	AwayTeamID      string        `db:"away_team_id"`
	HomeName        string        `db:"home_name"`
	AwayName        string        `db:"away_name"`
	HomeScore       sql.NullInt64 `db:"home_score"`
	AwayScore       sql.NullInt64 `db:"away_score"`
	ExternalIDs     string        `db:"external_ids"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

type gameInsertModel struct {
	ID              string        `db:"id"`
	Sport           string        `db:"sport"`
	StartsAt        time.Time     `db:"starts_at"`
	StartConfidence int           `db:"start_confidence"`
	Status          string        `db:"status"`
	HomeTeamID      string        `db:"home_team_id"`
	AwayTeamID      string        `db:"away_team_id"`
	HomeName        string        `db:"home_name"`
	AwayName        string        `db:"away_name"`
	HomeScore       sql.NullInt64 `db:"home_score"`
	AwayScore       sql.NullInt64 `db:"away_score"`
	ExternalIDs     string        `db:"external_ids"`
}

func (m gameTableModel) toDomain() (game.Game, error) {
	externalIDs, err := decodeStringMap(m.ExternalIDs)
	if err != nil {
		return game.Game{}, err
	}
	return game.Game{
		ID:              m.ID,
		Sport:           m.Sport,
		StartsAt:        m.StartsAt.UTC(),
		StartConfidence: game.Confidence(m.StartConfidence),
		Status:          m.Status,
		HomeTeamID:      m.HomeTeamID,
		AwayTeamID:      m.AwayTeamID,
		HomeName:        m.HomeName,
		AwayName:        m.AwayName,
		HomeScore:       intPointer(m.HomeScore),
		AwayScore:       intPointer(m.AwayScore),
		ExternalIDs:     externalIDs,
	}, nil
}

func gameToInsertModel(item game.Game) (gameInsertModel, error) {
	externalIDs, err := encodeStringMap(item.ExternalIDs)
	if err != nil {
		return gameInsertModel{}, err
	}
	return gameInsertModel{
		ID:              item.ID,
		Sport:           item.Sport,
		StartsAt:        item.StartsAt.UTC(),
		StartConfidence: int(item.StartConfidence),
		Status:          item.Status,
		HomeTeamID:      item.HomeTeamID,
		AwayTeamID:      item.AwayTeamID,
		HomeName:        item.HomeName,
		AwayName:        item.AwayName,
		HomeScore:       nullableInt(item.HomeScore),
		AwayScore:       nullableInt(item.AwayScore),
		ExternalIDs:     externalIDs,
	}, nil
}
