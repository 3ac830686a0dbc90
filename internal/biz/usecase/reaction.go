package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/logging"
	"github.com/DevRickLin/social-reactor/internal/metrics"
)

// ReactionUsecase generates and posts a reaction for each new event
type ReactionUsecase struct {
	generator repo.GeneratorRepo
	outbound  map[domain.Platform]repo.OutboundRepo
}

// NewReactionUsecase creates a new reaction usecase
func NewReactionUsecase(generator repo.GeneratorRepo, outbound map[domain.Platform]repo.OutboundRepo) *ReactionUsecase {
	return &ReactionUsecase{
		generator: generator,
		outbound:  outbound,
	}
}

// Process reacts to events one at a time, oldest first. A failing event is
// logged and skipped; it never stops the rest of the batch. Processing stops
// early only when ctx is cancelled.
func (uc *ReactionUsecase) Process(ctx context.Context, spec domain.ReactionSpec, events []domain.Event) domain.ReactionReport {
	var report domain.ReactionReport
	log := logging.Ctx(ctx)

	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}

		err := uc.react(ctx, spec, ev)
		switch {
		case err == nil:
			report.Reacted++
			metrics.Reactions.WithLabelValues(spec.Stream, "reacted").Inc()
			log.Info().Str("event", ev.ID).Str("action", string(spec.Action)).Msg("[Reaction] Reacted to event")
		case errors.Is(err, domain.ErrGenerationFailed):
			report.Skipped++
			metrics.Reactions.WithLabelValues(spec.Stream, "skipped").Inc()
			log.Warn().Err(err).Str("event", ev.ID).Msg("[Reaction] Nothing generated, skipping event")
		default:
			report.Failed++
			metrics.Reactions.WithLabelValues(spec.Stream, "failed").Inc()
			log.Error().Err(err).Str("event", ev.ID).Str("action", string(spec.Action)).Msg("[Reaction] Outbound action failed, skipping event")
		}
	}

	return report
}

func (uc *ReactionUsecase) react(ctx context.Context, spec domain.ReactionSpec, ev domain.Event) error {
	prompt, err := RenderPrompt(spec.Prompt, domain.PromptData{
		ID:     ev.ID,
		Text:   ev.Text,
		Author: ev.AuthorRef,
		URL:    ev.URL,
		Stream: spec.Stream,
	})
	if err != nil {
		return wrapAs(domain.ErrGenerationFailed, err)
	}

	content, err := uc.generator.Generate(ctx, prompt)
	if err != nil {
		return wrapAs(domain.ErrGenerationFailed, err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("%w: empty content", domain.ErrGenerationFailed)
	}
	content = domain.Truncate(content, domain.PostLimit(spec.Target))

	out, ok := uc.outbound[spec.Target]
	if !ok || out == nil {
		return fmt.Errorf("%w: no outbound configured for %s", domain.ErrOutboundActionFailed, spec.Target)
	}

	switch spec.Action {
	case domain.ActionReply:
		_, err = out.Reply(ctx, content, ev.ReplyTarget())
	case domain.ActionPost:
		_, err = out.Post(ctx, content)
	case domain.ActionQuote:
		_, err = out.Quote(ctx, content, ev.ReplyTarget())
	default:
		err = fmt.Errorf("unknown action %q", spec.Action)
	}
	if err != nil {
		return wrapAs(domain.ErrOutboundActionFailed, err)
	}

	if spec.Like {
		if err := out.Like(ctx, ev.ReplyTarget()); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("event", ev.ID).Msg("[Reaction] Like failed")
		}
	}
	return nil
}

// RenderPrompt executes a prompt template for one event
func RenderPrompt(tmpl *template.Template, data domain.PromptData) (string, error) {
	if tmpl == nil {
		return "", errors.New("no prompt template")
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}

func wrapAs(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
