package openai

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

const apiURL = "https://api.openai.com/v1/chat/completions"

// Provider implements models.Engine using the OpenAI chat completions API.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string { return "openai" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *Provider) Analyze(ctx context.Context, req models.AnalysisRequest) (models.Report, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
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
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.Report{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Report{}, fmt.Errorf("%w: openai status %d", engine.ErrProviderUnavailable, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Report{}, fmt.Errorf("%w: %v", engine.ErrInvalidResponse, err)
	}
	if len(out.Choices) == 0 {
		return models.Report{}, fmt.Errorf("%w: no choices", engine.ErrInvalidResponse)
	}

	summary, insights := engine.ParseReport(out.Choices[0].Message.Content)
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
