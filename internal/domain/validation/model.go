package validation

import (
	"fmt"
	"time"
)

// Result values for a settled prediction.
const (
	ResultPending     = "pending"
	ResultCorrect     = "correct"
	ResultIncorrect   = "incorrect"
	ResultPush        = "push"
	ResultInvalid     = "invalid"
	ResultNeedsReview = "needs_review"
)

// Lifecycle states. Transitions are monotonic: completed and invalid are
// never re-opened, and invalid is terminal.
const (
	StatusPending     = "pending"
	StatusNeedsReview = "needs_review"
	StatusCompleted   = "completed"
	StatusInvalid     = "invalid"
)

// PropValidation tracks one prediction from creation to settlement. GameID
// is the best-effort reference captured at prediction time and may turn out
// to be wrong; resolution happens at validation time.
type PropValidation struct {
	ID          string
	Fingerprint string
	GameID      string
	Sport       string
	Player      string
	PropType    string
	Pick        string
	Threshold   float64
	Projection  float64
	Actual      *float64
	Result      string
	Status      string
	Attempts    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}

func (v PropValidation) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("validation id is required")
	}
	if v.Fingerprint == "" {
		return fmt.Errorf("validation fingerprint is required")
	}
	if v.Player == "" {
		return fmt.Errorf("validation player is required")
	}

	return nil
}

func (v PropValidation) Open() bool {
	return v.Status == StatusPending || v.Status == StatusNeedsReview
}

// CanTransition enforces the monotonic lifecycle.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusNeedsReview || to == StatusCompleted || to == StatusInvalid
	case StatusNeedsReview:
		return to == StatusCompleted || to == StatusInvalid
	default:
		return false
	}
}

// ComputeResult settles a prediction against the observed actual value.
// Equality with the threshold is always a push regardless of direction.
func ComputeResult(pick string, threshold, actual float64) string {
	if actual == threshold {
		return ResultPush
	}
	over := actual > threshold
	if (pick == "over" && over) || (pick == "under" && !over) {
		return ResultCorrect
	}
	return ResultIncorrect
}
