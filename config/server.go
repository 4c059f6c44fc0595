package config

import (
	"github.com/jcooky/go-din"
)

type ServerConfig struct {
	Host string `env:"HOST" json:"host"`
	Port int    `env:"PORT" json:"port"`
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: "0.0.0.0",
		Port: 10080,
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*ServerConfig, error) {
		conf := NewServerConfig()
		return conf, resolveConfig(conf, c.Env == din.EnvTest)
	})
}
