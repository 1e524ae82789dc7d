package prop

import (
	"context"
	"time"
)

// Filter narrows prop queries. The zero value returns every live prop.
type Filter struct {
	Sport          string
	GameID         string
	IncludeStale   bool
	IncludeExpired bool
	Now            time.Time
}

// Repository describes prop persistence needs from use cases. Put replaces
// any prior entry sharing the fingerprint.
type Repository interface {
	Put(ctx context.Context, item PlayerProp) error
	List(ctx context.Context, filter Filter) ([]PlayerProp, error)
	MarkStale(ctx context.Context, fingerprints []string, at time.Time) error
	PurgeStaleBefore(ctx context.Context, cutoff time.Time) (int, error)
}
