package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/infra/news"
)

type newsAPI interface {
	Everything(ctx context.Context, query string, pageSize int) ([]news.Article, error)
}

// newsRepo reads news streams. Articles have no numeric id, so the event id
// is the publish time in unix milliseconds, which orders numerically.
type newsRepo struct {
	client newsAPI
}

// NewNewsFeedRepo creates the feed repository for news streams
func NewNewsFeedRepo(client *news.Client) repo.FeedRepo {
	return &newsRepo{client: client}
}

// FetchRecent returns the newest articles matching the stream query
func (r *newsRepo) FetchRecent(ctx context.Context, stream domain.Stream) ([]domain.Event, error) {
	if stream.Kind != domain.StreamKindNews {
		return nil, fmt.Errorf("%w: %s: unsupported kind %s", domain.ErrFeedFetchFailed, stream.Name, stream.Kind)
	}

	articles, err := r.client.Everything(ctx, stream.Query, stream.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFeedFetchFailed, stream.Name, err)
	}

	events := make([]domain.Event, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt.IsZero() {
			continue
		}
		text := a.Title
		if desc := strings.TrimSpace(a.Description); desc != "" {
			text += "\n" + desc
		}
		events = append(events, domain.Event{
			ID:        strconv.FormatInt(a.PublishedAt.UnixMilli(), 10),
			Text:      text,
			AuthorRef: a.Source,
			URL:       a.URL,
		})
	}
	return events, nil
}
