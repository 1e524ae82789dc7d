package game

import (
	"strings"
	"time"
)

const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusFinal      = "final"
	StatusPostponed  = "postponed"
)

// Confidence grades how trustworthy a normalized start instant is. Higher
// values win when providers disagree about the same game.
type Confidence int

const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Game is one canonical scheduled contest. External-id map entries are
// set once per provider and never cleared implicitly.
type Game struct {
	ID              string
	Sport           string
	StartsAt        time.Time
	StartConfidence Confidence
	Status          string
	HomeTeamID      string
	AwayTeamID      string
	HomeName        string
	AwayName        string
	HomeScore       *int
	AwayScore       *int
	ExternalIDs     map[string]string
}

// NormalizeStatus folds the zoo of provider status vocabularies into the
// canonical lifecycle. Unknown values stay scheduled rather than guessing a
// terminal state.
func NormalizeStatus(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case StatusFinal, "ft", "f", "final/ot", "complete", "completed", "closed", "status_final", "aet", "pen":
		return StatusFinal
	case StatusInProgress, "live", "in", "inprogress", "in progress", "halftime", "ht", "status_in_progress", "1h", "2h", "q1", "q2", "q3", "q4", "ot":
		return StatusInProgress
	case StatusPostponed, "ppd", "postponed/delayed", "delayed", "suspended", "cancelled", "canceled", "abandoned", "status_postponed":
		return StatusPostponed
	default:
		return StatusScheduled
	}
}

func IsTerminalStatus(status string) bool {
	switch status {
	case StatusFinal, StatusPostponed:
		return true
	default:
		return false
	}
}

func (g Game) HasScore() bool {
	return g.HomeScore != nil && g.AwayScore != nil
}

// MarketDay returns the local-market calendar day the game belongs to:
// always the canonical instant rendered in the league home zone, regardless
// of which UTC date it falls on.
func (g Game) MarketDay(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return g.StartsAt.In(loc).Format("2006-01-02")
}
