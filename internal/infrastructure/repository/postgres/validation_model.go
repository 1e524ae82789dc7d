package postgres

import (
	"database/sql"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/validation"
)

type validationTableModel struct {
	ID          string          `db:"id"`
	Fingerprint string          `db:"fingerprint"`
	GameID      string          `db:"game_id"`
	Sport       string          `db:"sport"`
	Player      string          `db:"player"`
	PropType    string          `db:"prop_type"`
	Pick        string          `db:"pick"`
	Threshold   float64         `db:"threshold"`
	Projection  float64         `db:"projection"`
	Actual      sql.NullFloat64 `db:"actual"`
	Result      string          `db:"result"`
	Status      string          `db:"status"`
	Attempts    int             `db:"attempts"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	ResolvedAt  *time.Time      `db:"resolved_at"`
}

type validationInsertModel struct {
	ID          string          `db:"id"`
	Fingerprint string          `db:"fingerprint"`
	GameID      string          `db:"game_id"`
	Sport       string          `db:"sport"`
	Player      string          `db:"player"`
	PropType    string          `db:"prop_type"`
	Pick        string          `db:"pick"`
	Threshold   float64         `db:"threshold"`
	Projection  float64         `db:"projection"`
	Actual      sql.NullFloat64 `db:"actual"`
	Result      string          `db:"result"`
	Status      string          `db:"status"`
	Attempts    int             `db:"attempts"`
}

func (m validationTableModel) toDomain() validation.PropValidation {
	var resolvedAt *time.Time
	if m.ResolvedAt != nil {
		t := m.ResolvedAt.UTC()
		resolvedAt = &t
	}
	return validation.PropValidation{
		ID:          m.ID,
		Fingerprint: m.Fingerprint,
		GameID:      m.GameID,
		Sport:       m.Sport,
		Player:      m.Player,
		PropType:    m.PropType,
		Pick:        m.Pick,
		Threshold:   m.Threshold,
		Projection:  m.Projection,
		Actual:      floatPointer(m.Actual),
		Result:      m.Result,
		Status:      m.Status,
		Attempts:    m.Attempts,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		ResolvedAt:  resolvedAt,
	}
}

func validationToInsertModel(item validation.PropValidation) validationInsertModel {
	return validationInsertModel{
		ID:          item.ID,
		Fingerprint: item.Fingerprint,
		GameID:      item.GameID,
		Sport:       item.Sport,
		Player:      item.Player,
		PropType:    item.PropType,
		Pick:        item.Pick,
		Threshold:   item.Threshold,
		Projection:  item.Projection,
		Actual:      nullableFloat(item.Actual),
		Result:      item.Result,
		Status:      item.Status,
		Attempts:    item.Attempts,
	}
}
