package config

import (
	"github.com/jcooky/go-din"
)

const (
	MemoryBackendSqlite = "sqlite"
	MemoryBackendFile   = "file"
	MemoryBackendMemory = "memory"
)

type MemoryConfig struct {
	// Backend selects where namespaces are persisted: sqlite, file or memory.
	// Default: sqlite
	Backend string `env:"MEMORY_BACKEND" json:"backend"`

	// SqlitePath is the database file used by the sqlite backend.
	// Default: .nativeagent/memory.db
	SqlitePath string `env:"MEMORY_SQLITE_PATH" json:"sqlitePath"`

	// FileRoot is the directory used by the file backend.
	// Default: .nativeagent/memory
	FileRoot string `env:"MEMORY_FILE_ROOT" json:"fileRoot"`
}

func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		Backend:    MemoryBackendSqlite,
		SqlitePath: ".nativeagent/memory.db",
		FileRoot:   ".nativeagent/memory",
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*MemoryConfig, error) {
		conf := NewMemoryConfig()
		if c.Env == din.EnvTest {
			conf.Backend = MemoryBackendMemory
		}
		return conf, resolveConfig(conf, c.Env == din.EnvTest)
	})
}
