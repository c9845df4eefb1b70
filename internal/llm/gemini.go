// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
)

// geminiProvider speaks the Gemini API through the unified Google
// GenAI SDK.
type geminiProvider struct {
	model  string
	client *genai.Client
}

func newGeminiProvider(p Profile) (*geminiProvider, error) {
	key := p.ResolveAPIKey()
	if key == "" {
		return nil, errclass.New(errclass.Auth, "", fmt.Sprintf("no API key for gemini (set %s)", keyEnvName(p)))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiProvider{model: p.Model, client: client}, nil
}

func (p *geminiProvider) Name() string { return ProviderGemini }

func (p *geminiProvider) Complete(ctx context.Context, req completionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Temperature)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.User), cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", errclass.New(errclass.Parse, "", "gemini returned an empty response")
	}
	return text, nil
}

// classifyGeminiError maps SDK errors onto the pipeline taxonomy. The
// SDK surfaces quota exhaustion as RESOURCE_EXHAUSTED, which the
// generic text rules do not know about.
func classifyGeminiError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return errclass.Wrap(errclass.RateLimit, "", err)
	}
	if strings.Contains(msg, "PERMISSION_DENIED") || strings.Contains(msg, "API key") {
		return errclass.Wrap(errclass.Auth, "", err)
	}
	return errclass.Wrap(errclass.Classify(err), "", err)
}
