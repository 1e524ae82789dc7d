package odds

import "context"

// Repository is append-only: snapshots accumulate, nothing is updated.
type Repository interface {
	Append(ctx context.Context, items []Snapshot) error
	ListByGame(ctx context.Context, gameID string) ([]Snapshot, error)
}
