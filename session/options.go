package session

import (
	"context"
	"log/slog"

	"github.com/habiliai/nativeagent/config"
)

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHosted enables the hosted pathway. A nil client leaves it unavailable.
func WithHosted(client HostedClient) Option {
	return func(s *Session) {
		s.hosted = client
	}
}

// WithDistiller enables background consolidation.
func WithDistiller(d Distiller) Option {
	return func(s *Session) {
		s.distiller = d
	}
}

func WithHistory(h History) Option {
	return func(s *Session) {
		s.history = h
	}
}

func WithLocalDialer(dial LocalDialer) Option {
	return func(s *Session) {
		s.dialLocal = dial
	}
}

func WithConfig(conf config.SessionConfig) Option {
	return func(s *Session) {
		s.conf = conf
	}
}

// WithLocal seeds the local backend url, preferred model and whether the
// retrieval tier may use it.
func WithLocal(conf config.LocalConfig) Option {
	return func(s *Session) {
		if conf.URL != "" {
			s.local.URL = conf.URL
		}
		s.local.Selected = conf.Model
		s.local.Enabled = conf.Enabled
	}
}

// WithLocalConnectedHook is called after every successful connection to the
// local backend.
func WithLocalConnectedHook(fn func(ctx context.Context, state LocalState)) Option {
	return func(s *Session) {
		s.onLocalConnected = fn
	}
}
