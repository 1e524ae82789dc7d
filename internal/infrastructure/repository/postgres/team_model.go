package postgres

import (
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/team"
)

type teamTableModel struct {
	ID           string    `db:"id"`
	Sport        string    `db:"sport"`
	Name         string    `db:"name"`
	Abbreviation string    `db:"abbreviation"`
	ExternalIDs  string    `db:"external_ids"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type teamInsertModel struct {
	ID           string `db:"id"`
	Sport        string `db:"sport"`
	Name         string `db:"name"`
	Abbreviation string `db:"abbreviation"`
	ExternalIDs  string `db:"external_ids"`
}

func (m teamTableModel) toDomain() (team.Team, error) {
	externalIDs, err := decodeStringMap(m.ExternalIDs)
	if err != nil {
		return team.Team{}, err
	}
	return team.Team{
		ID:           m.ID,
		Sport:        m.Sport,
		Name:         m.Name,
		Abbreviation: m.Abbreviation,
		ExternalIDs:  externalIDs,
	}, nil
}

func teamToInsertModel(item team.Team) (teamInsertModel, error) {
	externalIDs, err := encodeStringMap(item.ExternalIDs)
	if err != nil {
		return teamInsertModel{}, err
	}
	return teamInsertModel{
		ID:           item.ID,
		Sport:        item.Sport,
		Name:         item.Name,
		Abbreviation: item.Abbreviation,
		ExternalIDs:  externalIDs,
	}, nil
}
