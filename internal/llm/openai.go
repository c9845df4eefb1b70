// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
)

// completionRequest is the provider-neutral request shape.
type completionRequest struct {
	System      string
	User        string
	Temperature *float32
}

// provider is one backend capable of a chat completion.
type provider interface {
	Name() string
	Complete(ctx context.Context, req completionRequest) (string, error)
}

// openAIProvider speaks the OpenAI chat protocol. It also serves
// OpenRouter and LM Studio, which differ only in base URL and key
// requirements.
type openAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

func newOpenAIProvider(p Profile) (*openAIProvider, error) {
	key := p.ResolveAPIKey()
	if key == "" && p.Provider != ProviderLMStudio {
		return nil, errclass.New(errclass.Auth, "", fmt.Sprintf("no API key for %s (set %s)", p.Provider, keyEnvName(p)))
	}

	cfg := openai.DefaultConfig(key)
	switch p.Provider {
	case ProviderOpenRouter:
		cfg.BaseURL = p.BaseURL
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://openrouter.ai/api/v1"
		}
	case ProviderLMStudio:
		cfg.BaseURL = p.BaseURL
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:1234/v1"
		}
	default:
		if p.BaseURL != "" {
			cfg.BaseURL = p.BaseURL
		}
	}

	return &openAIProvider{
		name:   p.Provider,
		model:  p.Model,
		client: openai.NewClientWithConfig(cfg),
	}, nil
}

func keyEnvName(p Profile) string {
	if p.APIKeyEnv != "" {
		return p.APIKeyEnv
	}
	switch p.Provider {
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func (p *openAIProvider) Name() string { return p.name }

func (p *openAIProvider) Complete(ctx context.Context, req completionRequest) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errclass.New(errclass.Parse, "", "completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps SDK errors onto the pipeline taxonomy via
// their HTTP status.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode
	} else {
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			status = reqErr.HTTPStatusCode
		}
	}

	if status != 0 {
		if t := errclass.ClassifyHTTPStatus(status); t != "" {
			return errclass.Wrap(t, "", err)
		}
	}
	return errclass.Wrap(errclass.Classify(err), "", err)
}
