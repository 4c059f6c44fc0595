package config

import (
	"github.com/jcooky/go-din"
)

type SessionConfig struct {
	// ConsolidationWarmup is the transcript length that must be exceeded
	// before consolidation is considered.
	ConsolidationWarmup int `env:"CONSOLIDATION_WARMUP" json:"consolidationWarmup"`

	// ConsolidationInterval triggers consolidation whenever the
	// transcript length is a multiple of it.
	ConsolidationInterval int `env:"CONSOLIDATION_INTERVAL" json:"consolidationInterval"`

	// ConsolidationMinEntries skips consolidation for small knowledge lists.
	ConsolidationMinEntries int `env:"CONSOLIDATION_MIN_ENTRIES" json:"consolidationMinEntries"`

	// HistoryWindow is how many recent turns are placed in the grounding prompt.
	HistoryWindow int `env:"HISTORY_WINDOW" json:"historyWindow"`

	RetrievalTopK      int     `env:"RETRIEVAL_TOP_K" json:"retrievalTopK"`
	RetrievalThreshold float64 `env:"RETRIEVAL_THRESHOLD" json:"retrievalThreshold"`
	IntentConfidence   float64 `env:"INTENT_CONFIDENCE" json:"intentConfidence"`
}

func NewSessionConfig() *SessionConfig {
	return &SessionConfig{
		ConsolidationWarmup:     5,
		ConsolidationInterval:   10,
		ConsolidationMinEntries: 3,
		HistoryWindow:           10,
		RetrievalTopK:           5,
		RetrievalThreshold:      0.1,
		IntentConfidence:        0.85,
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*SessionConfig, error) {
		conf := NewSessionConfig()
		return conf, resolveConfig(conf, c.Env == din.EnvTest)
	})
}
