package repo

import (
	"context"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
)

// WatermarkRepo persists the last handled event id per stream.
// Implementations wrap every storage failure with domain.ErrStoreUnavailable.
type WatermarkRepo interface {
	// Get returns the stored value; found is false when the key was never set
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Advance stores value when the key is absent or value orders after the
	// stored one. Regressions are ignored and reported as advanced=false.
	Advance(ctx context.Context, key, value string) (advanced bool, err error)

	// Reset removes a key (manual intervention)
	Reset(ctx context.Context, key string) error

	// List returns all watermarks whose key starts with prefix
	List(ctx context.Context, prefix string) ([]domain.Watermark, error)

	Close() error
}
