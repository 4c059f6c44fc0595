package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/localllm"
	"golang.org/x/sync/errgroup"
)

const reasonServerDown = "Server not responding."

var errServerDown = errors.Wrap(errors.ErrUnavailable, reasonServerDown)

func (s *Session) LocalState() LocalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.local
	out.Models = append([]localllm.Model(nil), s.local.Models...)
	return out
}

// ConnectLocal probes the local backend and refreshes its model list. The
// selected model is kept when the server still has it, otherwise the first
// model is selected.
func (s *Session) ConnectLocal(ctx context.Context) error {
	s.mu.Lock()
	s.local.Status = entity.LocalStatusPending
	s.local.Error = ""
	url := s.local.URL
	s.mu.Unlock()

	backend := s.dialLocal(url)

	var (
		up     bool
		models []localllm.Model
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if up = backend.CheckStatus(gctx); !up {
			return errServerDown
		}
		return nil
	})
	g.Go(func() (err error) {
		models, err = backend.ListModels(gctx)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	if s.local.URL != url {
		// the url changed while probing; that connect owns the state
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.local.Status = entity.LocalStatusDisconnected
		s.local.Models = nil
		s.local.Selected = ""
		if up {
			s.local.Error = err.Error()
		} else {
			s.local.Error = reasonServerDown
			err = errServerDown
		}
		s.mu.Unlock()
		return err
	}

	s.local.Status = entity.LocalStatusConnected
	s.local.Models = models
	if !hasModel(models, s.local.Selected) {
		s.local.Selected = ""
		if len(models) > 0 {
			s.local.Selected = models[0].Model
		}
	}
	state := s.local
	s.mu.Unlock()

	s.logger.Info("connected to local backend", slog.String("url", url), slog.Int("models", len(models)), slog.String("selected", state.Selected))
	if s.onLocalConnected != nil {
		s.onLocalConnected(ctx, state)
	}
	return nil
}

func hasModel(models []localllm.Model, name string) bool {
	if name == "" {
		return false
	}
	for _, m := range models {
		if m.Model == name || m.Name == name || strings.TrimSuffix(m.Model, ":latest") == name {
			return true
		}
	}
	return false
}

// SetLocalURL points the session at another local server and reconnects.
func (s *Session) SetLocalURL(ctx context.Context, url string) error {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "empty url")
	}
	s.mu.Lock()
	s.local.URL = url
	s.mu.Unlock()
	return s.ConnectLocal(ctx)
}

// SelectLocalModel chooses the model used by the retrieval tier.
func (s *Session) SelectLocalModel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !hasModel(s.local.Models, name) {
		return errors.Wrapf(errors.ErrNotFound, "model %q is not installed", name)
	}
	s.local.Selected = name
	return nil
}

// SetLocalEnabled turns the retrieval tier on or off.
func (s *Session) SetLocalEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local.Enabled = enabled
}

// PullLocalModel downloads name, reporting "status (N%)" lines to progress,
// and refreshes the model list afterwards.
func (s *Session) PullLocalModel(ctx context.Context, name string, progress func(status string)) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "empty model name")
	}
	backend := s.dialLocal(s.LocalState().URL)

	stream, err := backend.Pull(ctx, name)
	if err != nil {
		s.setLocalError(err)
		return err
	}
	defer stream.Close()

	for stream.Next() {
		status := progressText(stream.Progress())
		s.mu.Lock()
		s.local.Pull = status
		s.mu.Unlock()
		if progress != nil {
			progress(status)
		}
	}

	s.mu.Lock()
	s.local.Pull = ""
	s.mu.Unlock()

	if err := stream.Err(); err != nil {
		s.setLocalError(err)
		return err
	}
	return s.ConnectLocal(ctx)
}

func progressText(p localllm.PullProgress) string {
	if p.Total <= 0 {
		return p.Status
	}
	return fmt.Sprintf("%s (%.0f%%)", p.Status, p.Percent())
}

func (s *Session) DeleteLocalModel(ctx context.Context, name string) error {
	backend := s.dialLocal(s.LocalState().URL)
	if err := backend.Delete(ctx, name); err != nil {
		s.setLocalError(err)
		return err
	}
	return s.ConnectLocal(ctx)
}

func (s *Session) setLocalError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local.Error = err.Error()
}
