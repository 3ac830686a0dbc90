package data

import (
	"context"
	"errors"
	"testing"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
)

type fakeChat struct {
	reply  string
	err    error
	system string
}

func (f *fakeChat) Chat(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.system = systemPrompt
	return f.reply, f.err
}

func TestGeneratorRepo_Generate(t *testing.T) {
	chat := &fakeChat{reply: "<think>hmm</think>\nSure, here is a reply:\nGreat question, BTC looks strong!"}

	r := &generatorRepo{client: chat, systemPrompt: "be kind", lastLineOnly: true}
	got, err := r.Generate(context.Background(), "Tweet: gm")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "Great question, BTC looks strong!" {
		t.Errorf("Unexpected content: %q", got)
	}
	if chat.system != "be kind" {
		t.Errorf("Expected system prompt to be passed, got %q", chat.system)
	}

	r.lastLineOnly = false
	got, _ = r.Generate(context.Background(), "Tweet: gm")
	if got != "Sure, here is a reply:\nGreat question, BTC looks strong!" {
		t.Errorf("Unexpected full content: %q", got)
	}
}

func TestGeneratorRepo_Failure(t *testing.T) {
	r := &generatorRepo{client: &fakeChat{err: errors.New("timeout")}}

	_, err := r.Generate(context.Background(), "x")
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("Expected ErrGenerationFailed, got %v", err)
	}
}
