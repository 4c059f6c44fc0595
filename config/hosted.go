package config

import (
	"github.com/jcooky/go-din"
)

type HostedConfig struct {
	APIKey string `env:"GEMINI_API_KEY" json:"-"`
	Model  string `env:"GEMINI_MODEL" json:"model"`
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string `env:"GEMINI_BASE_URL" json:"baseUrl,omitempty"`

	// Offline forces the native pathway even when an API key is configured.
	Offline bool `env:"OFFLINE" json:"offline"`
}

func NewHostedConfig() *HostedConfig {
	return &HostedConfig{
		Model: "gemini-2.5-flash",
	}
}

func (c *HostedConfig) Available() bool {
	return c.APIKey != "" && !c.Offline
}

func init() {
	din.RegisterT(func(c *din.Container) (*HostedConfig, error) {
		conf := NewHostedConfig()
		return conf, resolveConfig(conf, c.Env == din.EnvTest)
	})
}
