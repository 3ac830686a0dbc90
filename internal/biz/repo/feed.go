package repo

import (
	"context"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
)

// FeedRepo fetches the most recent page of a stream.
// The page is returned in platform order, which is not necessarily sorted.
// Errors are wrapped with domain.ErrFeedFetchFailed.
type FeedRepo interface {
	FetchRecent(ctx context.Context, stream domain.Stream) ([]domain.Event, error)
}
