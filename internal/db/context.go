package db

import (
	"context"

	"gorm.io/gorm"
)

type sessionCtxKeyType struct{}

var sessionCtxKey = sessionCtxKeyType{}

// OpenSession reuses the transaction carried by ctx, or starts a session bound to ctx.
func OpenSession(ctx context.Context, db *gorm.DB) (context.Context, *gorm.DB) {
	tx, ok := ctx.Value(sessionCtxKey).(*gorm.DB)
	if ok {
		return ctx, tx
	}

	return WithSession(ctx, db)
}

func WithSession(ctx context.Context, db *gorm.DB) (context.Context, *gorm.DB) {
	tx := db.WithContext(ctx)
	return context.WithValue(ctx, sessionCtxKey, tx), tx
}

// Transaction runs fn in a transaction that nested OpenSession calls join.
func Transaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context, tx *gorm.DB) error) error {
	_, tx := OpenSession(ctx, db)
	return tx.Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, sessionCtxKey, tx), tx)
	})
}
