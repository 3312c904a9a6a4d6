package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
)

var (
	//go:embed template/response.txt
	responseRaw string

	//go:embed template/tool_calling.txt
	toolCallingRaw string
)

// PromptSet holds loaded system prompts.
type PromptSet struct {
	Response    string
	ToolCalling string
}

// LoadPromptSet returns the embedded prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Response:    strings.TrimSpace(responseRaw),
		ToolCalling: strings.TrimSpace(toolCallingRaw),
	}
}

func (p PromptSet) Validate() error {
	if strings.TrimSpace(p.Response) == "" {
		return fmt.Errorf("%w: response", contractx.ErrPromptMissing)
	}
	if strings.TrimSpace(p.ToolCalling) == "" {
		return fmt.Errorf("%w: tool_calling", contractx.ErrPromptMissing)
	}
	return nil
}
