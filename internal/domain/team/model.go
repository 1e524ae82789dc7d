package team

import (
	"fmt"
	"strings"
)

// Team is one real-world club or franchise. Provider-native ids map onto the
// canonical id through ExternalIDs, never the other way around.
type Team struct {
	ID           string
	Sport        string
	Name         string
	Abbreviation string
	ExternalIDs  map[string]string
}

func (t Team) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.Sport == "" {
		return fmt.Errorf("team sport is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}

	return nil
}

// CanonicalID derives the sport-prefixed canonical id from a display name.
func CanonicalID(sport, name string) string {
	return strings.Trim(slug(sport)+"-"+slug(name), "-")
}

func slug(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var builder strings.Builder
	lastDash := false
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			builder.WriteByte('-')
			lastDash = true
		}
	}

	return strings.Trim(builder.String(), "-")
}
