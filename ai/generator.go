package ai

import "context"

// Generator turns a prompt into a text completion. Implementations return an
// error on timeouts and transport failures; the content itself is not
// validated and may be malformed JSON.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
