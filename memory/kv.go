package memory

import (
	"context"

	"github.com/habiliai/nativeagent/errors"
)

var (
	ErrLoadFailed = errors.New("memory: load failed")
	ErrSaveFailed = errors.New("memory: save failed")
)

type (
	// KV is the persistence boundary of the memory store. Values are opaque bytes.
	KV interface {
		Get(ctx context.Context, key string) (value []byte, ok bool, err error)
		Put(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
	}

	// Transactor is implemented by a KV that can apply several calls
	// atomically. Calls made with the ctx handed to fn join the transaction,
	// which rolls back when fn returns an error.
	Transactor interface {
		Transact(ctx context.Context, fn func(ctx context.Context) error) error
	}
)

// atomically runs fn in a transaction when kv supports one.
func atomically(ctx context.Context, kv KV, fn func(ctx context.Context) error) error {
	if t, ok := kv.(Transactor); ok {
		return t.Transact(ctx, fn)
	}
	return fn(ctx)
}
