package validation

import "context"

// Repository stores prop validation records through their lifecycle.
type Repository interface {
	Create(ctx context.Context, record PropValidation) error
	GetByFingerprint(ctx context.Context, fingerprint string) (PropValidation, bool, error)
	ListOpen(ctx context.Context, sport string) ([]PropValidation, error)
	Update(ctx context.Context, record PropValidation) error
}
