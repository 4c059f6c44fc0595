// Package history remembers the most recently used agents.
package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/memory"
	"github.com/jcooky/go-din"
	"github.com/samber/lo"
)

const (
	Key     = "agent_history"
	MaxSize = 5
)

type Store struct {
	kv     memory.KV
	logger *slog.Logger
	mu     sync.Mutex
}

func NewStore(kv memory.KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = mylog.Discard()
	}
	return &Store{kv: kv, logger: logger}
}

// List returns the recent agents, most recent first.
func (s *Store) List(ctx context.Context) ([]entity.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// Add puts agent at the front, replacing an entry with the same name.
func (s *Store) Add(ctx context.Context, agent entity.Agent) error {
	if agent.Name == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.read(ctx)
	if err != nil {
		return err
	}
	agents = lo.Reject(agents, func(a entity.Agent, _ int) bool { return a.Name == agent.Name })
	return s.write(ctx, append([]entity.Agent{agent}, agents...))
}

// Update replaces the entry named oldName in place, or adds agent at the
// front when there is none.
func (s *Store) Update(ctx context.Context, oldName string, agent entity.Agent) error {
	if agent.Name == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.read(ctx)
	if err != nil {
		return err
	}
	if _, i, ok := lo.FindIndexOf(agents, func(a entity.Agent) bool { return a.Name == oldName }); ok {
		agents[i] = agent
	} else {
		agents = append([]entity.Agent{agent}, agents...)
	}
	return s.write(ctx, lo.UniqBy(agents, func(a entity.Agent) string { return a.Name }))
}

func (s *Store) read(ctx context.Context) ([]entity.Agent, error) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read agent history")
	}
	if !ok || len(raw) == 0 {
		return []entity.Agent{}, nil
	}

	var agents []entity.Agent
	if err := json.Unmarshal(raw, &agents); err != nil {
		s.logger.Warn("reset corrupt agent history", slog.Any("error", err))
		if err := s.kv.Delete(ctx, Key); err != nil {
			s.logger.Warn("failed to reset agent history", slog.Any("error", err))
		}
		return []entity.Agent{}, nil
	}
	return agents, nil
}

func (s *Store) write(ctx context.Context, agents []entity.Agent) error {
	if len(agents) > MaxSize {
		agents = agents[:MaxSize]
	}
	raw, err := json.Marshal(agents)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal agent history")
	}
	return errors.Wrapf(s.kv.Put(ctx, Key, raw), "failed to save agent history")
}

func init() {
	din.RegisterT(func(c *din.Container) (*Store, error) {
		kv, err := din.GetT[memory.KV](c)
		if err != nil {
			return nil, err
		}
		return NewStore(kv, din.MustGet[*slog.Logger](c, mylog.Key)), nil
	})
}
