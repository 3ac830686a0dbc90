package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/infra/x"
)

// xAPI is the part of the X client the repositories use
type xAPI interface {
	UserID(ctx context.Context, account string) (string, error)
	Mentions(ctx context.Context, maxResults int) ([]x.Tweet, error)
	UserTweets(ctx context.Context, userID string, maxResults int) ([]x.Tweet, error)
	CreateTweet(ctx context.Context, req x.TweetRequest) (string, error)
	Like(ctx context.Context, tweetID string) error
	Retweet(ctx context.Context, tweetID string) error
}

// xRepo reads X streams and performs X actions
type xRepo struct {
	client xAPI
}

// NewXFeedRepo creates the feed repository for x_mentions and x_timeline streams
func NewXFeedRepo(client *x.Client) repo.FeedRepo {
	return &xRepo{client: client}
}

// NewXOutboundRepo creates the X outbound repository
func NewXOutboundRepo(client *x.Client) repo.OutboundRepo {
	return &xRepo{client: client}
}

// FetchRecent returns the newest page of a stream, newest first as X returns it
func (r *xRepo) FetchRecent(ctx context.Context, stream domain.Stream) ([]domain.Event, error) {
	var tweets []x.Tweet
	var err error

	switch stream.Kind {
	case domain.StreamKindXMentions:
		tweets, err = r.client.Mentions(ctx, stream.PageSize)
	case domain.StreamKindXTimeline:
		var userID string
		userID, err = r.client.UserID(ctx, stream.Account)
		if err == nil {
			tweets, err = r.client.UserTweets(ctx, userID, stream.PageSize)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unsupported kind %s", domain.ErrFeedFetchFailed, stream.Name, stream.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFeedFetchFailed, stream.Name, err)
	}

	events := make([]domain.Event, 0, len(tweets))
	for _, t := range tweets {
		author := t.AuthorID
		if t.AuthorUsername != "" {
			author = "@" + t.AuthorUsername
		}
		events = append(events, domain.Event{
			ID:        t.ID,
			Text:      t.Text,
			AuthorRef: author,
			URL:       t.URL(),
		})
	}
	return events, nil
}

// Post publishes a tweet
func (r *xRepo) Post(ctx context.Context, content string) (string, error) {
	id, err := r.client.CreateTweet(ctx, x.TweetRequest{Text: content})
	if err != nil {
		return "", fmt.Errorf("%w: post: %w", domain.ErrOutboundActionFailed, err)
	}
	return id, nil
}

// Reply answers a tweet
func (r *xRepo) Reply(ctx context.Context, content, targetID string) (string, error) {
	id, err := r.client.CreateTweet(ctx, x.TweetRequest{Text: content, ReplyTo: targetID})
	if err != nil {
		return "", fmt.Errorf("%w: reply to %s: %w", domain.ErrOutboundActionFailed, targetID, err)
	}
	return id, nil
}

// Quote posts content quoting a tweet
func (r *xRepo) Quote(ctx context.Context, content, targetID string) (string, error) {
	id, err := r.client.CreateTweet(ctx, x.TweetRequest{Text: content, QuoteOf: targetID})
	if err != nil {
		return "", fmt.Errorf("%w: quote %s: %w", domain.ErrOutboundActionFailed, targetID, err)
	}
	return id, nil
}

// Like likes a tweet
func (r *xRepo) Like(ctx context.Context, targetID string) error {
	if err := r.client.Like(ctx, targetID); err != nil {
		return fmt.Errorf("%w: like %s: %w", domain.ErrOutboundActionFailed, targetID, err)
	}
	return nil
}

// Retweet retweets a tweet
func (r *xRepo) Retweet(ctx context.Context, targetID string) error {
	if err := r.client.Retweet(ctx, targetID); err != nil {
		return fmt.Errorf("%w: retweet %s: %w", domain.ErrOutboundActionFailed, targetID, err)
	}
	return nil
}
