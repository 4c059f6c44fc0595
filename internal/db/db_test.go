package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/internal/db"
	"github.com/jcooky/go-din"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestOpenSqliteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memory.db")
	gdb, err := db.OpenSqlite(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, db.CloseDB(gdb)) }()

	require.NoError(t, db.AutoMigrate(t.Context(), gdb))
	require.True(t, gdb.Migrator().HasTable(&entity.NamespaceEntry{}))

	require.NoError(t, db.DropAll(t.Context(), gdb))
	require.False(t, gdb.Migrator().HasTable(&entity.NamespaceEntry{}))
}

func TestContainerDatabase(t *testing.T) {
	c := din.NewContainer(t.Context(), din.EnvTest)
	defer c.Close()

	gdb := din.MustGet[*gorm.DB](c, db.Key)
	require.True(t, gdb.Migrator().HasTable(&entity.NamespaceEntry{}))
	require.Same(t, gdb, din.MustGet[*gorm.DB](c, db.Key))
}

func TestTransactionRollsBack(t *testing.T) {
	gdb, err := db.OpenInMemory(t.Name())
	require.NoError(t, err)
	defer db.CloseDB(gdb)
	require.NoError(t, db.AutoMigrate(t.Context(), gdb))

	err = db.Transaction(t.Context(), gdb, func(ctx context.Context, tx *gorm.DB) error {
		require.NoError(t, tx.Create(&entity.NamespaceEntry{Namespace: "k", Value: datatypes.JSON("[]")}).Error)
		_, nested := db.OpenSession(ctx, gdb)
		require.Same(t, tx, nested)
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	var count int64
	require.NoError(t, gdb.Model(&entity.NamespaceEntry{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestOpenSqliteRequiresPath(t *testing.T) {
	_, err := db.OpenSqlite("")
	require.Error(t, err)
}
