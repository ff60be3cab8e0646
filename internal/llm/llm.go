package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/quentinlg/ollamadesk/internal/config"
)

// OpenAIClient talks to the model runtime over its OpenAI-compatible API.
// Ollama serves one under /v1; the API key is ignored there but the client
// library requires a value.
type OpenAIClient struct {
	api *openai.Client
}

// NewClient creates a runtime client from config.
func NewClient(cfg config.RuntimeConfig) *OpenAIClient {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL

	return &OpenAIClient{api: openai.NewClientWithConfig(apiCfg)}
}
