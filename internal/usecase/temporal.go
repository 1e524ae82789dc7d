package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
)

// SourceConvention describes how much a provider timestamp can be trusted.
type SourceConvention string

const (
	// ConventionInstant marks a value that is a true start instant.
	ConventionInstant SourceConvention = "instant"
	// ConventionDisplayDate marks a value that is only a calendar date with
	// no trustworthy time-of-day.
	ConventionDisplayDate SourceConvention = "display_date"
)

// RawKickoff is a provider start time before normalization.
type RawKickoff struct {
	Value      time.Time
	Convention SourceConvention
}

type kickoffProfile struct {
	zone        *time.Location
	typicalHour int
}

// TemporalNormalizer converts raw provider timestamps into canonical UTC
// instants, repairing known provider defects along the way.
type TemporalNormalizer struct {
	profiles map[string]kickoffProfile
	fallback kickoffProfile
}

func NewTemporalNormalizer() (*TemporalNormalizer, error) {
	eastern, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load league home zone: %w", err)
	}
	return &TemporalNormalizer{
		profiles: map[string]kickoffProfile{
			"nfl": {zone: eastern, typicalHour: 13},
			"nba": {zone: eastern, typicalHour: 19},
			"nhl": {zone: eastern, typicalHour: 19},
			"mlb": {zone: eastern, typicalHour: 19},
		},
		fallback: kickoffProfile{zone: eastern, typicalHour: 19},
	}, nil
}

// HomeZone is the league home zone used for market-day bucketing.
func (n *TemporalNormalizer) HomeZone(sport string) *time.Location {
	return n.profile(sport).zone
}

func (n *TemporalNormalizer) profile(sport string) kickoffProfile {
	if p, ok := n.profiles[strings.ToLower(strings.TrimSpace(sport))]; ok {
		return p
	}
	return n.fallback
}

// Normalize returns the canonical UTC instant for a raw kickoff along with a
// confidence level the ingestor uses to arbitrate between sources.
//
// Display-date sources are combined with the sport's typical local start hour
// in the league home zone. Instants that land exactly on midnight UTC are a
// known truncation defect and get the same treatment at reduced confidence.
// Late local starts crossing the UTC date boundary are expected and pass
// through untouched.
func (n *TemporalNormalizer) Normalize(raw RawKickoff, sport string) (time.Time, game.Confidence, error) {
	if raw.Value.IsZero() {
		return time.Time{}, game.ConfidenceLow, fmt.Errorf("%w: kickoff value is required", ErrInvalidInput)
	}
	prof := n.profile(sport)

	switch raw.Convention {
	case ConventionDisplayDate:
		return n.atTypicalHour(raw.Value, prof), game.ConfidenceMedium, nil
	case ConventionInstant:
		utc := raw.Value.UTC()
		if utc.Hour() == 0 && utc.Minute() == 0 && utc.Second() == 0 {
			// Midnight-truncated instant: the date survived, the
			// time-of-day did not.
			return n.atTypicalHour(utc, prof), game.ConfidenceLow, nil
		}
		return utc, game.ConfidenceHigh, nil
	default:
		return time.Time{}, game.ConfidenceLow, fmt.Errorf("%w: unknown source convention %q", ErrInvalidInput, raw.Convention)
	}
}

func (n *TemporalNormalizer) atTypicalHour(value time.Time, prof kickoffProfile) time.Time {
	y, m, d := value.UTC().Date()
	return time.Date(y, m, d, prof.typicalHour, 0, 0, 0, prof.zone).UTC()
}
