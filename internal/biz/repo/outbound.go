package repo

import "context"

// OutboundRepo performs actions on a social platform.
// Errors are wrapped with domain.ErrOutboundActionFailed; actions a platform
// lacks return domain.ErrUnsupported.
type OutboundRepo interface {
	// Post publishes standalone content and returns the new item id
	Post(ctx context.Context, content string) (string, error)

	// Reply answers the item identified by targetID
	Reply(ctx context.Context, content, targetID string) (string, error)

	// Quote republishes targetID with a comment
	Quote(ctx context.Context, content, targetID string) (string, error)

	Like(ctx context.Context, targetID string) error
	Retweet(ctx context.Context, targetID string) error
}
