package game

import (
	"context"
	"time"
)

// Repository describes game persistence needs from use cases.
type Repository interface {
	ListBySport(ctx context.Context, sport string) ([]Game, error)
	ListByDateRange(ctx context.Context, sport string, from, to time.Time) ([]Game, error)
	GetByID(ctx context.Context, id string) (Game, bool, error)
	Upsert(ctx context.Context, items []Game) error
}
