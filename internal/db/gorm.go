package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/jcooky/go-din"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Key = din.NewRandomName()
)

func OpenSqlite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "sqlite path is not configured")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create sqlite directory at %s", dir)
		}
	}

	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_foreign_keys=on", path)),
		&gorm.Config{Logger: logger.Discard},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database at %s", path)
	}
	return db, nil
}

// OpenInMemory opens a private in-memory database; name keeps connections of one pool on the same database.
func OpenInMemory(name string) (*gorm.DB, error) {
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Discard},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open in-memory sqlite database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get db")
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrapf(err, "failed to get db")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close db")
	}

	return nil
}

func init() {
	din.Register(Key, func(c *din.Container) (any, error) {
		logger, err := din.Get[*mylog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}
		conf, err := din.GetT[*config.MemoryConfig](c)
		if err != nil {
			return nil, err
		}

		var db *gorm.DB
		if c.Env == din.EnvTest {
			db, err = OpenInMemory(string(din.NewRandomName()))
		} else {
			logger.Info("initialize database", slog.String("path", conf.SqlitePath))
			db, err = OpenSqlite(conf.SqlitePath)
		}
		if err != nil {
			return nil, err
		}

		if err := AutoMigrate(c, db); err != nil {
			return nil, errors.Wrapf(err, "failed to migrate database")
		}

		c.RegisterOnShutdown(func(_ context.Context) {
			if err := CloseDB(db); err != nil {
				logger.Warn("failed to close database", slog.Any("error", err))
			}
		})

		return db, nil
	})
}
