package reply

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/DivM11/social-fact-checker/internal/config"
	"github.com/DivM11/social-fact-checker/internal/llm"
)

// Settings are the generation parameters taken from configuration.
type Settings struct {
	Template        string
	MaxInputTokens  int
	MaxOutputTokens int
	Temperature     float64
}

// Generator turns post text into a fact-check reply.
type Generator struct {
	client   llm.Client
	settings Settings
	log      logrus.FieldLogger
}

func NewGenerator(client llm.Client, s Settings, log logrus.FieldLogger) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{client: client, settings: s, log: log}
}

// BuildPrompt substitutes the post text at the template marker.
func BuildPrompt(template, postText string) string {
	return strings.ReplaceAll(template, config.PostMarker, postText)
}

// Generate returns the reply for postText. Errors are *llm.GenerationError.
func (g *Generator) Generate(ctx context.Context, postText string) (string, error) {
	prompt := BuildPrompt(g.settings.Template, postText)
	resp, err := g.client.Generate(ctx, llm.Request{
		Prompt:          prompt,
		MaxInputTokens:  g.settings.MaxInputTokens,
		MaxOutputTokens: g.settings.MaxOutputTokens,
		Temperature:     g.settings.Temperature,
	})
	if err != nil {
		var gerr *llm.GenerationError
		if errors.As(err, &gerr) {
			return "", err
		}
		return "", &llm.GenerationError{Provider: "llm", Err: err}
	}

	text := llm.StripSpecialTokens(resp.Content)
	if text == "" {
		return "", &llm.GenerationError{Provider: resp.Model, Err: errors.New("empty reply")}
	}
	g.log.WithFields(logrus.Fields{
		"model":             resp.Model,
		"prompt_tokens":     resp.PromptTokens,
		"completion_tokens": resp.CompletionTokens,
		"estimated_prompt":  llm.EstimateTokens(prompt),
	}).Debug("reply generated")
	return text, nil
}
