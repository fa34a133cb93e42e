package models

import "context"

// Interface is the external capability surface the pipeline depends on:
// free-text generation and text embedding. Both are blocking network calls.
type Interface interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	EmbedText(ctx context.Context, input string) ([]float32, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
