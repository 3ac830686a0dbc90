package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
)

func newReactionUC(gen *mockGenerator, out *mockOutbound) *ReactionUsecase {
	return NewReactionUsecase(gen, map[domain.Platform]repo.OutboundRepo{domain.PlatformX: out})
}

func replySpec() domain.ReactionSpec {
	return domain.ReactionSpec{
		Stream: "mentions",
		Action: domain.ActionReply,
		Target: domain.PlatformX,
		Prompt: testPrompt(),
	}
}

func TestProcess_SequentialInOrder(t *testing.T) {
	gen := &mockGenerator{}
	out := &mockOutbound{}
	uc := newReactionUC(gen, out)

	report := uc.Process(context.Background(), replySpec(), page("2", "9", "10"))

	if report.Reacted != 3 {
		t.Errorf("Expected 3 reactions, got %d", report.Reacted)
	}
	replies := out.actions("reply")
	if len(replies) != 3 {
		t.Fatalf("Expected 3 replies, got %d", len(replies))
	}
	for i, want := range []string{"2", "9", "10"} {
		if replies[i].target != want {
			t.Errorf("Reply %d: expected target %s, got %s", i, want, replies[i].target)
		}
		if replies[i].content != "reply to "+want {
			t.Errorf("Reply %d: unexpected content %q", i, replies[i].content)
		}
	}
}

func TestProcess_GenerationFailureSkipsEvent(t *testing.T) {
	gen := &mockGenerator{failIDs: map[string]bool{"6": true}, emptyIDs: map[string]bool{"7": true}}
	out := &mockOutbound{}
	uc := newReactionUC(gen, out)

	report := uc.Process(context.Background(), replySpec(), page("6", "7", "9"))

	if report.Skipped != 2 || report.Reacted != 1 || report.Failed != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}
	replies := out.actions("reply")
	if len(replies) != 1 || replies[0].target != "9" {
		t.Errorf("Expected only event 9 to be answered, got %+v", replies)
	}
}

func TestProcess_OutboundFailureContinues(t *testing.T) {
	gen := &mockGenerator{}
	out := &mockOutbound{failFor: map[string]bool{"6": true}}
	uc := newReactionUC(gen, out)

	report := uc.Process(context.Background(), replySpec(), page("6", "9"))

	if report.Failed != 1 || report.Reacted != 1 {
		t.Errorf("Unexpected report: %+v", report)
	}
	if len(out.actions("reply")) != 2 {
		t.Errorf("Expected both events to be attempted")
	}
}

func TestProcess_PostAndQuote(t *testing.T) {
	gen := &mockGenerator{}
	out := &mockOutbound{}
	uc := newReactionUC(gen, out)

	spec := replySpec()
	spec.Action = domain.ActionPost
	uc.Process(context.Background(), spec, page("1"))

	spec.Action = domain.ActionQuote
	uc.Process(context.Background(), spec, []domain.Event{{ID: "5", TargetID: "t5"}})

	if len(out.actions("post")) != 1 {
		t.Errorf("Expected 1 post, got %d", len(out.actions("post")))
	}
	quotes := out.actions("quote")
	if len(quotes) != 1 || quotes[0].target != "t5" {
		t.Errorf("Expected quote of t5, got %+v", quotes)
	}
}

func TestProcess_LikeFailureIsNotFatal(t *testing.T) {
	gen := &mockGenerator{}
	out := &mockOutbound{likeErr: errors.New("rate limited")}
	uc := newReactionUC(gen, out)

	spec := replySpec()
	spec.Like = true
	report := uc.Process(context.Background(), spec, page("4"))

	if report.Reacted != 1 {
		t.Errorf("Expected like failure to be ignored, got %+v", report)
	}
	if len(out.actions("like")) != 1 {
		t.Errorf("Expected a like attempt")
	}
}

func TestProcess_MissingOutbound(t *testing.T) {
	uc := NewReactionUsecase(&mockGenerator{}, nil)

	report := uc.Process(context.Background(), replySpec(), page("1"))
	if report.Failed != 1 {
		t.Errorf("Expected outbound failure, got %+v", report)
	}
}

func TestProcess_TruncatesForX(t *testing.T) {
	long := strings.Repeat("a", 400)
	gen := &fixedGenerator{text: long}
	out := &mockOutbound{}
	uc := NewReactionUsecase(gen, map[domain.Platform]repo.OutboundRepo{domain.PlatformX: out})

	uc.Process(context.Background(), replySpec(), page("1"))

	replies := out.actions("reply")
	if len(replies) != 1 {
		t.Fatalf("Expected 1 reply")
	}
	if n := len([]rune(replies[0].content)); n > domain.XMaxPostRunes {
		t.Errorf("Expected truncated content, got %d runes", n)
	}
}

func TestProcess_StopsOnCancel(t *testing.T) {
	out := &mockOutbound{}
	uc := newReactionUC(&mockGenerator{}, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := uc.Process(ctx, replySpec(), page("1", "2"))

	if report.Reacted+report.Skipped+report.Failed != 0 || len(out.calls) != 0 {
		t.Errorf("Expected no work after cancel, got %+v", report)
	}
}

func TestRenderPrompt(t *testing.T) {
	got, err := RenderPrompt(testPrompt(), domain.PromptData{ID: "42"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "event:42" {
		t.Errorf("Expected event:42, got %q", got)
	}

	if _, err := RenderPrompt(nil, domain.PromptData{}); err == nil {
		t.Error("Expected error for nil template")
	}
}

type fixedGenerator struct {
	text string
}

func (g *fixedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.text, nil
}
