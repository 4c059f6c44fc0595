package memory

import (
	"context"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SqliteKV struct {
	db *gorm.DB
}

var (
	_ KV         = (*SqliteKV)(nil)
	_ Transactor = (*SqliteKV)(nil)
)

func NewSqliteKV(gdb *gorm.DB) *SqliteKV {
	return &SqliteKV{db: gdb}
}

func (s *SqliteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_, tx := db.OpenSession(ctx, s.db)

	var entry entity.NamespaceEntry
	r := tx.Limit(1).Find(&entry, "namespace = ?", key)
	if r.Error != nil {
		return nil, false, errors.Wrapf(ErrLoadFailed, "%s: %v", key, r.Error)
	}
	if r.RowsAffected == 0 {
		return nil, false, nil
	}
	return []byte(entry.Value), true, nil
}

func (s *SqliteKV) Put(ctx context.Context, key string, value []byte) error {
	_, tx := db.OpenSession(ctx, s.db)

	entry := entity.NamespaceEntry{Namespace: key, Value: datatypes.JSON(value)}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error; err != nil {
		return errors.Wrapf(ErrSaveFailed, "%s: %v", key, err)
	}
	return nil
}

func (s *SqliteKV) Delete(ctx context.Context, key string) error {
	_, tx := db.OpenSession(ctx, s.db)

	if err := tx.Delete(&entity.NamespaceEntry{}, "namespace = ?", key).Error; err != nil {
		return errors.Wrapf(ErrSaveFailed, "delete %s: %v", key, err)
	}
	return nil
}

func (s *SqliteKV) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.Transaction(ctx, s.db, func(ctx context.Context, _ *gorm.DB) error {
		return fn(ctx)
	})
}
