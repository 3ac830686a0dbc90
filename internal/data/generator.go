package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/infra/openai"
)

type chatAPI interface {
	Chat(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// generatorRepo implements content generation on a chat completion API
type generatorRepo struct {
	client       chatAPI
	systemPrompt string
	lastLineOnly bool
}

// NewGeneratorRepo creates the generator repository. With lastLineOnly set,
// only the last non-empty line of the reply is kept, which drops the
// preamble small reasoning models tend to emit.
func NewGeneratorRepo(client *openai.Client, systemPrompt string, lastLineOnly bool) repo.GeneratorRepo {
	return &generatorRepo{client: client, systemPrompt: systemPrompt, lastLineOnly: lastLineOnly}
}

// Generate returns cleaned content for prompt. An empty result is not an
// error; the caller treats it as nothing to post.
func (r *generatorRepo) Generate(ctx context.Context, prompt string) (string, error) {
	raw, err := r.client.Chat(ctx, r.systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	return domain.CleanGenerated(raw, r.lastLineOnly), nil
}
