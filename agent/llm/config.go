package llm

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	geminix "github.com/tanpawarit/chative-retail-assistant/pkg/gemini"
	openrouterx "github.com/tanpawarit/chative-retail-assistant/pkg/openrouter"
)

type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
	ProviderGemini     Provider = "gemini"
)

// Role selects per-call model overrides.
type Role string

const (
	RoleToolPlanner Role = "tool_planner"
	RoleResponder   Role = "responder"
)

type Config struct {
	Provider string `envconfig:"PROVIDER" default:"openrouter"`

	ToolModel           string  `envconfig:"TOOL_MODEL"`
	ResponseModel       string  `envconfig:"RESPONSE_MODEL"`
	ToolTemperature     float32 `envconfig:"TOOL_TEMPERATURE" default:"-1"`
	ResponseTemperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"-1"`
}

func (c Config) provider() Provider {
	return Provider(strings.ToLower(strings.TrimSpace(c.Provider)))
}

func (c Config) Validate() error {
	switch c.provider() {
	case ProviderOpenRouter, ProviderOpenAI, ProviderGemini:
		return nil
	default:
		return fmt.Errorf("%w: unknown llm provider %q", contractx.ErrValidation, c.Provider)
	}
}

func (c Config) override(role Role) (string, float32) {
	switch role {
	case RoleToolPlanner:
		return strings.TrimSpace(c.ToolModel), c.ToolTemperature
	case RoleResponder:
		return strings.TrimSpace(c.ResponseModel), c.ResponseTemperature
	default:
		return "", -1
	}
}

// OpenRouterFor applies the role overrides on top of base.
func (c Config) OpenRouterFor(role Role, base openrouterx.Config) openrouterx.Config {
	out := base
	modelName, temp := c.override(role)
	if modelName != "" {
		out.Model = modelName
	}
	if temp >= 0 {
		out.Temperature = temp
	}
	if base.MaxCompletionToken != nil {
		maxTokens := *base.MaxCompletionToken
		out.MaxCompletionToken = &maxTokens
	}
	return out
}

// GeminiFor applies the role overrides on top of base.
func (c Config) GeminiFor(role Role, base geminix.Config) geminix.Config {
	out := base
	modelName, temp := c.override(role)
	if modelName != "" {
		out.Model = modelName
	}
	if temp >= 0 {
		out.Temperature = temp
	}
	return out
}

// Models are the two model clients the orchestrator uses.
type Models struct {
	ToolPlanner contractx.ModelClient
	Responder   contractx.ModelClient
}

// ProviderConfigs carries the provider-specific settings; only the one
// matching Config.Provider is read.
type ProviderConfigs struct {
	OpenRouter openrouterx.Config
	Gemini     geminix.Config
}

// Build constructs a model client per role for the configured provider.
func Build(ctx context.Context, cfg Config, providers ProviderConfigs) (Models, error) {
	if err := cfg.Validate(); err != nil {
		return Models{}, err
	}

	build := func(role Role) (contractx.ModelClient, error) {
		switch cfg.provider() {
		case ProviderGemini:
			gc := cfg.GeminiFor(role, providers.Gemini)
			m, err := gc.New(ctx)
			if err != nil {
				return nil, err
			}
			return NewChatModel(m, gc.Model), nil
		case ProviderOpenAI:
			oc := cfg.OpenRouterFor(role, providers.OpenRouter)
			client := openrouterx.NewClient(oc)
			if client == nil {
				return nil, fmt.Errorf("%w: api key is required", contractx.ErrValidation)
			}
			return NewOpenAIClient(client, OpenAIOptions{
				Model:       oc.Model,
				Temperature: oc.Temperature,
				MaxTokens:   derefInt(oc.MaxCompletionToken),
			})
		default:
			oc := cfg.OpenRouterFor(role, providers.OpenRouter)
			m, err := oc.New(ctx)
			if err != nil {
				return nil, err
			}
			return NewChatModel(m, oc.Model), nil
		}
	}

	toolModel, err := build(RoleToolPlanner)
	if err != nil {
		return Models{}, fmt.Errorf("build tool planner model: %w", err)
	}
	responder, err := build(RoleResponder)
	if err != nil {
		return Models{}, fmt.Errorf("build responder model: %w", err)
	}
	return Models{ToolPlanner: toolModel, Responder: responder}, nil
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
