package team

import "context"

// Repository describes team persistence needs from use cases.
type Repository interface {
	ListBySport(ctx context.Context, sport string) ([]Team, error)
	GetByID(ctx context.Context, id string) (Team, bool, error)
	Upsert(ctx context.Context, items []Team) error
}
