package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	geminimodel "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	openrouterx "github.com/tanpawarit/chative-retail-assistant/pkg/openrouter"
)

var _ openrouterx.LLMBuilder = (*Config)(nil)

type Config struct {
	APIKey      string  `envconfig:"API_KEY" required:"true"`
	BaseURL     string  `envconfig:"BASE_URL"`
	Model       string  `envconfig:"MODEL" default:"gemini-2.5-flash"`
	Temperature float32 `envconfig:"TEMPERATURE" default:"0.7"`
	MaxTokens   int     `envconfig:"MAX_TOKENS" default:"2000"`
}

func (c *Config) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	apiKey := strings.TrimSpace(c.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = c.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens
	m, err := geminimodel.NewChatModel(ctx, &geminimodel.Config{
		Client:      client,
		Model:       strings.TrimSpace(c.Model),
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create chat model: %w", err)
	}
	return m, nil
}
