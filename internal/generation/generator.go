package generation

import "context"

// Completer defines the interface for batch text completion. Given N
// prompts it returns N completions in the same order, or an error covering
// the whole batch.
type Completer interface {
	Complete(ctx context.Context, prompts []string) ([]string, error)
}

// Embedder defines the interface for batch embedding. Given N texts it
// returns N vectors in the same order, or an error covering the whole batch.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
