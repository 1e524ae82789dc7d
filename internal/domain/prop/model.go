package prop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	PickOver  = "over"
	PickUnder = "under"
)

// PlayerProp is one derived player-prop prediction. At most one non-stale,
// non-expired prop exists per fingerprint at any time.
type PlayerProp struct {
	Fingerprint string
	GameID      string
	Sport       string
	Player      string
	PropType    string
	Pick        string
	Threshold   float64
	Book        string
	Projection  float64
	Probability float64
	Edge        float64
	Quality     float64
	ExpiresAt   time.Time
	Stale       bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p PlayerProp) Validate() error {
	if p.GameID == "" {
		return fmt.Errorf("prop game id is required")
	}
	if p.Player == "" {
		return fmt.Errorf("prop player is required")
	}
	if p.PropType == "" {
		return fmt.Errorf("prop type is required")
	}
	if p.Pick != PickOver && p.Pick != PickUnder {
		return fmt.Errorf("prop pick must be %q or %q", PickOver, PickUnder)
	}
	if p.ExpiresAt.IsZero() {
		return fmt.Errorf("prop expires_at is required")
	}

	return nil
}

func (p PlayerProp) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Fingerprint derives the stable key identifying one logical prediction
// slot. Identical inputs always hash to the same fingerprint, making puts
// idempotent across overlapping runs.
func Fingerprint(gameID, player, propType, pick string, threshold float64, book string) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(gameID)),
		strings.ToLower(strings.TrimSpace(player)),
		strings.ToLower(strings.TrimSpace(propType)),
		strings.ToLower(strings.TrimSpace(pick)),
		strconv.FormatFloat(threshold, 'f', -1, 64),
		strings.ToLower(strings.TrimSpace(book)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}
