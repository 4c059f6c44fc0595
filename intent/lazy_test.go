package intent_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habiliai/nativeagent/intent"
	"github.com/habiliai/nativeagent/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLazy(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("not loaded until ready", func(t *testing.T) {
		release := make(chan struct{})
		lazy := intent.NewLazy(func(ctx context.Context) (intent.Classifier, error) {
			<-release
			return top(intent.Greeting, 1), nil
		}, nil)
		defer lazy.Close()

		_, err := lazy.Classify(t.Context(), "hi", intent.Labels)
		assert.ErrorIs(t, err, intent.ErrNotLoaded)
		assert.ErrorIs(t, lazy.Wait(t.Context()), intent.ErrNotLoaded)

		lazy.Start(t.Context())
		lazy.Start(t.Context())
		assert.False(t, lazy.Ready())
		_, err = lazy.Classify(t.Context(), "hi", intent.Labels)
		assert.ErrorIs(t, err, intent.ErrNotLoaded)

		close(release)
		require.NoError(t, lazy.Wait(t.Context()))
		assert.True(t, lazy.Ready())

		verdicts, err := lazy.Classify(t.Context(), "hi", intent.Labels)
		require.NoError(t, err)
		assert.Equal(t, intent.Greeting, verdicts[0].Label)
	})

	t.Run("retry after failure", func(t *testing.T) {
		var attempts atomic.Int32
		lazy := intent.NewLazy(func(ctx context.Context) (intent.Classifier, error) {
			if attempts.Add(1) == 1 {
				return nil, errors.New("ollama is down")
			}
			return top(intent.Farewell, 1), nil
		}, nil)
		defer lazy.Close()

		lazy.Start(t.Context())
		require.Error(t, lazy.Wait(t.Context()))
		_, err := lazy.Classify(t.Context(), "bye", intent.Labels)
		assert.ErrorIs(t, err, intent.ErrNotLoaded)

		lazy.Start(t.Context())
		require.NoError(t, lazy.Wait(t.Context()))
		assert.True(t, lazy.Ready())
		assert.EqualValues(t, 2, attempts.Load())
	})

	t.Run("close cancels loading", func(t *testing.T) {
		lazy := intent.NewLazy(func(ctx context.Context) (intent.Classifier, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, nil)

		lazy.Start(t.Context())
		done := make(chan struct{})
		go func() {
			lazy.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("close did not stop the loader")
		}
		assert.False(t, lazy.Ready())
	})
}
