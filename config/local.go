package config

import (
	"time"

	"github.com/jcooky/go-din"
)

const DefaultOllamaURL = "http://localhost:11434"

// LocalConfig configures the locally hosted generative backend.
type LocalConfig struct {
	// URL of the Ollama server.
	// Default: http://localhost:11434
	URL string `env:"OLLAMA_URL" json:"url"`

	// Model used for grounded generation. When empty the first model
	// reported by the server is selected on connect.
	Model string `env:"OLLAMA_MODEL" json:"model,omitempty"`

	// IntentModel is the model used for zero-shot intent classification.
	// Falls back to Model when empty.
	IntentModel string `env:"INTENT_MODEL" json:"intentModel,omitempty"`

	// Enabled turns the retrieval tier on or off.
	// Default: true
	Enabled bool `env:"LOCAL_LLM_ENABLED" json:"enabled"`

	// RequestTimeout bounds non-streaming requests (tags, status, delete).
	// Default: 10s
	RequestTimeout time.Duration `env:"OLLAMA_REQUEST_TIMEOUT" json:"requestTimeout"`
}

func NewLocalConfig() *LocalConfig {
	return &LocalConfig{
		URL:            DefaultOllamaURL,
		Enabled:        true,
		RequestTimeout: 10 * time.Second,
	}
}

func (c *LocalConfig) ClassifierModel() string {
	if c.IntentModel != "" {
		return c.IntentModel
	}
	return c.Model
}

func init() {
	din.RegisterT(func(c *din.Container) (*LocalConfig, error) {
		conf := NewLocalConfig()
		return conf, resolveConfig(conf, c.Env == din.EnvTest)
	})
}
