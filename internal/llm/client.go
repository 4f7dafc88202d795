package llm

import (
	"context"
	"fmt"
)

// Request is a single bounded text-generation call.
type Request struct {
	Prompt          string
	MaxInputTokens  int
	MaxOutputTokens int
	Temperature     float64
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GenerationError means the provider could not produce output.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
