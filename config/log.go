package config

import (
	"github.com/jcooky/go-din"
)

type LogConfig struct {
	LogLevel     string `env:"LOG_LEVEL" json:"logLevel"`
	LogHandler   string `env:"LOG_HANDLER" json:"logHandler"`
	TraceVerbose bool   `env:"TRACE_VERBOSE" json:"traceVerbose"`
}

func NewLogConfig() *LogConfig {
	return &LogConfig{
		LogLevel:   "info",
		LogHandler: "default",
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*LogConfig, error) {
		conf := NewLogConfig()
		return conf, resolveConfig(conf, c.Env == din.EnvTest)
	})
}
