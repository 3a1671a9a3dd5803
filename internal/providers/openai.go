// OpenAI chat-completions adapter.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/services"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls the OpenAI chat completions API.
type OpenAI struct {
	client *resty.Client
	model  string
}

// NewOpenAI constructs the adapter. baseURL defaults to the public API,
// model to defaultOpenAIModel.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &OpenAI{client: c, model: model}
}

// Name implements services.CompletionProvider.
func (o *OpenAI) Name() domain.Provider { return domain.ProviderOpenAI }

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// Complete performs one chat completion attempt.
func (o *OpenAI) Complete(ctx context.Context, msgs []services.Message) (*services.ProviderReply, error) {
	body := openAIRequest{Model: o.model, Messages: make([]openAIMessage, 0, len(msgs))}
	for _, m := range msgs {
		body.Messages = append(body.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	var out openAIResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/chat/completions")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, statusError(domain.ProviderOpenAI, resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("openai: empty choices in response")
	}
	return &services.ProviderReply{
		Content: out.Choices[0].Message.Content,
		Model:   out.Model,
	}, nil
}

// HealthCheck probes the models listing endpoint.
func (o *OpenAI) HealthCheck(ctx context.Context) error {
	resp, err := o.client.R().SetContext(ctx).Get("/v1/models")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return statusError(domain.ProviderOpenAI, resp.StatusCode(), resp.String())
	}
	return nil
}
