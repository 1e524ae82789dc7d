package postgres

import (
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/prop"
)

type propTableModel struct {
	Fingerprint string    `db:"fingerprint"`
	GameID      string    `db:"game_id"`
	Sport       string    `db:"sport"`
	Player      string    `db:"player"`
	PropType    string    `db:"prop_type"`
	Pick        string    `db:"pick"`
	Threshold   float64   `db:"threshold"`
	Book        string    `db:"book"`
	Projection  float64   `db:"projection"`
	Probability float64   `db:"probability"`
	Edge        float64   `db:"edge"`
	Quality     float64   `db:"quality"`
	ExpiresAt   time.Time `db:"expires_at"`
	Stale       bool      `db:"stale"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type propInsertModel struct {
	Fingerprint string    `db:"fingerprint"`
	GameID      string    `db:"game_id"`
	Sport       string    `db:"sport"`
	Player      string    `db:"player"`
	PropType    string    `db:"prop_type"`
	Pick        string    `db:"pick"`
	Threshold   float64   `db:"threshold"`
	Book        string    `db:"book"`
	Projection  float64   `db:"projection"`
	Probability float64   `db:"probability"`
	Edge        float64   `db:"edge"`
	Quality     float64   `db:"quality"`
	ExpiresAt   time.Time `db:"expires_at"`
	Stale       bool      `db:"stale"`
}

func (m propTableModel) toDomain() prop.PlayerProp {
	return prop.PlayerProp{
		Fingerprint: m.Fingerprint,
		GameID:      m.GameID,
		Sport:       m.Sport,
		Player:      m.Player,
		PropType:    m.PropType,
		Pick:        m.Pick,
		Threshold:   m.Threshold,
		Book:        m.Book,
		Projection:  m.Projection,
		Probability: m.Probability,
		Edge:        m.Edge,
		Quality:     m.Quality,
		ExpiresAt:   m.ExpiresAt.UTC(),
		Stale:       m.Stale,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func propToInsertModel(item prop.PlayerProp) propInsertModel {
	return propInsertModel{
		Fingerprint: item.Fingerprint,
		GameID:      item.GameID,
		Sport:       item.Sport,
		Player:      item.Player,
		PropType:    item.PropType,
		Pick:        item.Pick,
		Threshold:   item.Threshold,
		Book:        item.Book,
		Projection:  item.Projection,
		Probability: item.Probability,
		Edge:        item.Edge,
		Quality:     item.Quality,
		ExpiresAt:   item.ExpiresAt.UTC(),
		Stale:       item.Stale,
	}
}
