package llm

import (
	"context"
	"fmt"

	"github.com/Morwran/yagpt"
)

// yandexCompletion is the part of a YandexGPT answer the client uses.
type yandexCompletion struct {
	alternatives     []string
	inputTokens      int
	completionTokens int
	totalTokens      int
}

type yandexCompleteFunc func(ctx context.Context, messages []yagpt.Message) (yandexCompletion, error)

// YandexClient generates through YandexGPT Lite. The API has no per-call
// output limit here, so the reply is cut to the requested bound afterwards.
type YandexClient struct {
	complete yandexCompleteFunc
}

func NewYandex(oauthToken, folderID string) (*YandexClient, error) {
	// Create IAM token from OAuth token
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return &YandexClient{complete: yagptCompletion(ya, resp.IamToken)}, nil
}

func yagptCompletion(ya yagpt.YaGPTFace, iamToken string) yandexCompleteFunc {
	return func(ctx context.Context, messages []yagpt.Message) (yandexCompletion, error) {
		resp, err := ya.CompletionWithCtx(ctx, iamToken, messages)
		if err != nil || resp == nil {
			return yandexCompletion{}, err
		}
		out := yandexCompletion{
			inputTokens:      int(resp.Usage.InputTextTokens),
			completionTokens: int(resp.Usage.CompletionTokens),
			totalTokens:      int(resp.Usage.TotalTokens),
		}
		for _, alt := range resp.Alternatives {
			out.alternatives = append(out.alternatives, alt.Message.Content)
		}
		return out, nil
	}
}

func (c *YandexClient) Generate(ctx context.Context, req Request) (Response, error) {
	messages := []yagpt.Message{
		{Role: "user", Content: TruncateTokens(req.Prompt, req.MaxInputTokens)},
	}

	resp, err := c.complete(ctx, messages)
	if err != nil {
		return Response{}, &GenerationError{Provider: "yandex", Err: fmt.Errorf("yagpt completion failed: %w", err)}
	}
	if len(resp.alternatives) == 0 {
		return Response{}, &GenerationError{Provider: "yandex", Err: fmt.Errorf("yagpt returned empty response")}
	}
	return Response{
		Content:          TruncateTokens(resp.alternatives[0], req.MaxOutputTokens),
		Model:            yagpt.YaModelLite,
		PromptTokens:     resp.inputTokens,
		CompletionTokens: resp.completionTokens,
		TotalTokens:      resp.totalTokens,
	}, nil
}
