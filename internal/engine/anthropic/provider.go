package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/marketops/rankpulse/internal/config"
	"github.com/marketops/rankpulse/internal/engine"
	"github.com/marketops/rankpulse/pkg/models"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
	maxTokens  = 2048
)

// Provider implements models.Engine using the Anthropic messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string { return "anthropic" }

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Provider) Analyze(ctx context.Context, req models.AnalysisRequest) (models.Report, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		Messages: []message{
			{Role: "user", Content: engine.BuildPrompt(req)},
		},
	})
	if err != nil {
		return models.Report{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return models.Report{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.Report{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Report{}, fmt.Errorf("%w: anthropic status %d", engine.ErrProviderUnavailable, resp.StatusCode)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Report{}, fmt.Errorf("%w: %v", engine.ErrInvalidResponse, err)
	}
	if len(out.Content) == 0 || out.Content[0].Text == "" {
		return models.Report{}, fmt.Errorf("%w: empty content", engine.ErrInvalidResponse)
	}

	summary, insights := engine.ParseReport(out.Content[0].Text)
	return models.Report{
		Model:       p.cfg.Model,
		Summary:     summary,
		Insights:    insights,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", engine.ErrEngineTimeout, err)
	}
	return fmt.Errorf("%w: %v", engine.ErrProviderUnavailable, err)
}

var _ models.Engine = (*Provider)(nil)
