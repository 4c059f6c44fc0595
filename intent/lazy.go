package intent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
)

// LoadFunc builds the underlying classifier. It may block for a long time.
type LoadFunc func(ctx context.Context) (Classifier, error)

type lazyState int

const (
	lazyIdle lazyState = iota
	lazyLoading
	lazyReady
	lazyFailed
)

// Lazy loads its classifier once in the background and reports ErrNotLoaded
// until it is ready. A failed load may be retried by calling Start again.
type Lazy struct {
	load   LoadFunc
	logger *slog.Logger

	mu     sync.Mutex
	state  lazyState
	inner  Classifier
	err    error
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Classifier = (*Lazy)(nil)

func NewLazy(load LoadFunc, logger *slog.Logger) *Lazy {
	if logger == nil {
		logger = mylog.Discard()
	}
	return &Lazy{load: load, logger: logger}
}

// Start begins loading unless a load is in progress or has succeeded.
func (l *Lazy) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == lazyLoading || l.state == lazyReady {
		return
	}

	loadCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.state, l.err, l.done, l.cancel = lazyLoading, nil, done, cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(done)
		defer cancel()

		inner, err := l.load(loadCtx)

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state, l.err = lazyFailed, err
			l.logger.Warn("intent classifier failed to load", slog.Any("error", err))
			return
		}
		l.state, l.inner = lazyReady, inner
		l.logger.Info("intent classifier loaded")
	}()
}

func (l *Lazy) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == lazyReady
}

// Wait blocks until the current load attempt finishes and returns its error.
func (l *Lazy) Wait(ctx context.Context) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return ErrNotLoaded
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Lazy) Classify(ctx context.Context, text string, labels []Label) ([]Verdict, error) {
	l.mu.Lock()
	inner, state, loadErr := l.inner, l.state, l.err
	l.mu.Unlock()

	switch state {
	case lazyReady:
		return inner.Classify(ctx, text, labels)
	case lazyFailed:
		return nil, errors.Wrapf(ErrNotLoaded, "load failed: %v", loadErr)
	default:
		return nil, ErrNotLoaded
	}
}

// Close stops a load in progress and releases the loaded classifier.
func (l *Lazy) Close() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if closer, ok := l.inner.(interface{ Close() }); ok {
		closer.Close()
	}
	l.inner, l.state = nil, lazyIdle
}
