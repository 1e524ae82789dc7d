package odds

import (
	"fmt"
	"time"
)

// Snapshot is one observation of a market at a book. Snapshots are
// append-only; successive observations of the same game are new rows, never
// merges.
type Snapshot struct {
	GameID     string
	Book       string
	Market     string
	CapturedAt time.Time
	Lines      map[string]float64
}

func (s Snapshot) Validate() error {
	if s.GameID == "" {
		return fmt.Errorf("odds snapshot game id is required")
	}
	if s.Book == "" {
		return fmt.Errorf("odds snapshot book is required")
	}
	if s.Market == "" {
		return fmt.Errorf("odds snapshot market is required")
	}
	if s.CapturedAt.IsZero() {
		return fmt.Errorf("odds snapshot captured_at is required")
	}

	return nil
}
