package repo

import "context"

// GeneratorRepo produces content for a prompt.
// An empty result with a nil error means the model had nothing to say.
type GeneratorRepo interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
