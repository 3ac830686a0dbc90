package usecase

import (
	"context"
	"fmt"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/logging"
	"github.com/DevRickLin/social-reactor/internal/metrics"
)

// StreamUsecase runs one firing of a stream job: poll, dedup, react, advance
type StreamUsecase struct {
	prefix     string
	watermarks repo.WatermarkRepo
	feeds      map[domain.StreamKind]repo.FeedRepo
	reactions  *ReactionUsecase
}

// NewStreamUsecase creates a new stream usecase.
// prefix namespaces every watermark key written by this agent.
func NewStreamUsecase(
	prefix string,
	watermarks repo.WatermarkRepo,
	feeds map[domain.StreamKind]repo.FeedRepo,
	reactions *ReactionUsecase,
) *StreamUsecase {
	return &StreamUsecase{
		prefix:     prefix,
		watermarks: watermarks,
		feeds:      feeds,
		reactions:  reactions,
	}
}

// Fire processes the newest page of job's stream.
//
// The watermark is written once, after the batch, and always moves to the
// newest id in the fetched page even when some reactions failed. A poisoned
// event is therefore dropped instead of being retried on every firing.
// Errors returned here wrap domain.ErrStoreUnavailable or
// domain.ErrFeedFetchFailed and abandon only this firing.
func (uc *StreamUsecase) Fire(ctx context.Context, job domain.JobSpec) (domain.FiringReport, error) {
	stream := job.Stream
	key := domain.WatermarkKey(uc.prefix, stream.Name)
	report := domain.FiringReport{Stream: stream.Name}
	log := logging.Ctx(ctx)

	watermark, found, err := uc.watermarks.Get(ctx, key)
	if err != nil {
		return report, wrapAs(domain.ErrStoreUnavailable, err)
	}
	report.WatermarkBefore = watermark
	report.WatermarkAfter = watermark

	feed, ok := uc.feeds[stream.Kind]
	if !ok || feed == nil {
		return report, fmt.Errorf("%w: no feed configured for %s", domain.ErrFeedFetchFailed, stream.Kind)
	}

	page, err := feed.FetchRecent(ctx, stream)
	if err != nil {
		return report, wrapAs(domain.ErrFeedFetchFailed, err)
	}
	report.Fetched = len(page)
	metrics.EventsFetched.WithLabelValues(stream.Name).Add(float64(len(page)))

	if len(page) == 0 {
		log.Debug().Str("stream", stream.Name).Msg("[Stream] Feed returned no events")
		return report, nil
	}

	fresh := FilterNew(page, watermark, found)
	report.New = len(fresh)
	if len(fresh) > 0 {
		log.Info().
			Str("stream", stream.Name).
			Int("fetched", len(page)).
			Int("new", len(fresh)).
			Bool("first_run", !found).
			Msg("[Stream] Processing new events")
		report.Reaction = uc.reactions.Process(ctx, job.Reaction, fresh)
	}

	// Shutdown mid-batch: leave the watermark so the rest is picked up next run
	if err := ctx.Err(); err != nil {
		return report, err
	}

	newest, _ := domain.Newest(page)
	advanced, err := uc.watermarks.Advance(ctx, key, newest.ID)
	if err != nil {
		return report, wrapAs(domain.ErrStoreUnavailable, err)
	}
	if advanced {
		report.Advanced = true
		report.WatermarkAfter = newest.ID
		metrics.WatermarkAdvances.WithLabelValues(stream.Name).Inc()
	}

	log.Info().
		Str("stream", stream.Name).
		Int("reacted", report.Reaction.Reacted).
		Int("skipped", report.Reaction.Skipped).
		Int("failed", report.Reaction.Failed).
		Str("watermark", report.WatermarkAfter).
		Msg("[Stream] Firing complete")
	return report, nil
}

// Handler adapts Fire to the scheduler's handler signature
func (uc *StreamUsecase) Handler(job domain.JobSpec) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := uc.Fire(ctx, job)
		return err
	}
}
