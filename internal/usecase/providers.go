package usecase

import (
	"context"
	"time"
)

// Raw provider payloads, already decoded but not yet normalized or resolved.
// One adapter per provider category keeps upstream shape variance at the
// boundary.

type RawTeam struct {
	Provider     string
	ExternalID   string
	Sport        string
	Name         string
	Abbreviation string
}

type RawGame struct {
	Provider   string
	ExternalID string
	Sport      string
	HomeName   string
	AwayName   string
	Kickoff    RawKickoff
	Status     string
}

type RawProp struct {
	Provider        string
	EventExternalID string
	Sport           string
	HomeName        string
	AwayName        string
	Player          string
	PropType        string
	Pick            string
	Threshold       float64
	Book            string
	Projection      float64
	Probability     float64
	Edge            float64
	Quality         float64
	ExpiresAt       time.Time
}

// PropsPage is one odds fetch. Fallback marks data served from cache because
// the rate budget was exhausted.
type PropsPage struct {
	Props    []RawProp
	Fallback bool
}

type RawStatLine struct {
	Player   string
	StatType string
	Value    float64
}

type RawScore struct {
	Provider   string
	ExternalID string
	Status     string
	HomeScore  *int
	AwayScore  *int
	// PlayerStats is the final box; empty for games still in progress.
	PlayerStats []RawStatLine
}

type ScheduleProvider interface {
	FetchSchedule(ctx context.Context, sport string, date time.Time) ([]RawGame, error)
}

type TeamProvider interface {
	FetchTeams(ctx context.Context, sport string) ([]RawTeam, error)
}

type OddsProvider interface {
	FetchProps(ctx context.Context, sport, eventID string) (PropsPage, error)
}

type ScoreProvider interface {
	FetchScore(ctx context.Context, sport, gameID string) (RawScore, error)
}
