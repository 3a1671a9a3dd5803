// Anthropic messages adapter.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/services"
)

const (
	defaultAnthropicModel   = "claude-3-5-haiku-latest"
	anthropicVersion        = "2023-06-01"
	anthropicMaxReplyTokens = 1024
)

// Anthropic calls the Anthropic messages API.
type Anthropic struct {
	client *resty.Client
	model  string
}

// NewAnthropic constructs the adapter. baseURL defaults to the public API,
// model to defaultAnthropicModel.
func NewAnthropic(baseURL, apiKey, model string) *Anthropic {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &Anthropic{client: c, model: model}
}

// Name implements services.CompletionProvider.
func (a *Anthropic) Name() domain.Provider { return domain.ProviderAnthropic }

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete performs one messages attempt. System turns are lifted into the
// top-level system field, which is how this API expects them.
func (a *Anthropic) Complete(ctx context.Context, msgs []services.Message) (*services.ProviderReply, error) {
	body := anthropicRequest{Model: a.model, MaxTokens: anthropicMaxReplyTokens}
	for _, m := range msgs {
		if m.Role == "system" {
			body.System = m.Content
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	var out anthropicResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/messages")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, statusError(domain.ProviderAnthropic, resp.StatusCode(), resp.String())
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return &services.ProviderReply{Content: block.Text, Model: out.Model}, nil
		}
	}
	return nil, errors.New("anthropic: no text block in response")
}

// HealthCheck probes the models listing endpoint.
func (a *Anthropic) HealthCheck(ctx context.Context) error {
	resp, err := a.client.R().SetContext(ctx).Get("/v1/models")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return statusError(domain.ProviderAnthropic, resp.StatusCode(), resp.String())
	}
	return nil
}
