package memory

import (
	"log/slog"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/db"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/jcooky/go-din"
	"gorm.io/gorm"
)

// NewKV builds the backend named by conf. The sqlite backend resolves its
// database from the container.
func NewKV(c *din.Container, conf *config.MemoryConfig) (KV, error) {
	switch conf.Backend {
	case config.MemoryBackendMemory:
		return NewInMemoryKV(), nil
	case config.MemoryBackendFile:
		if conf.FileRoot == "" {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "memory file root is not configured")
		}
		return NewFileKV(conf.FileRoot), nil
	case config.MemoryBackendSqlite, "":
		gdb, err := din.Get[*gorm.DB](c, db.Key)
		if err != nil {
			return nil, err
		}
		return NewSqliteKV(gdb), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown memory backend %q", conf.Backend)
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (KV, error) {
		conf, err := din.GetT[*config.MemoryConfig](c)
		if err != nil {
			return nil, err
		}
		return NewKV(c, conf)
	})
	din.RegisterT(func(c *din.Container) (Store, error) {
		logger := din.MustGet[*slog.Logger](c, mylog.Key)
		kv, err := din.GetT[KV](c)
		if err != nil {
			return nil, err
		}
		logger.Debug("memory store ready", slog.String("backend", din.MustGetT[*config.MemoryConfig](c).Backend))
		return NewStore(kv, logger), nil
	})
}
