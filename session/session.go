package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/hosted"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/localllm"
	"github.com/habiliai/nativeagent/memory"
	"github.com/habiliai/nativeagent/pipeline"
)

type (
	// Processor runs one inbound message through the response tiers.
	Processor interface {
		ProcessMessage(ctx context.Context, req *pipeline.Request) *pipeline.Result
	}

	// HostedClient is the remote model collaborator used on the hosted pathway.
	HostedClient interface {
		NewChat(ctx context.Context, agent entity.Agent, mode entity.Mode, settings entity.Settings) (hosted.Chat, error)
		SummarizeLearnings(ctx context.Context, user, agent entity.ChatMessage) (string, error)
		ExtractKnowledge(ctx context.Context, transcript []entity.ChatMessage) ([]string, error)
		AnalyzeFailure(ctx context.Context, prompt string, cause error) string
	}

	// Distiller turns a knowledge list into a refined one. The raw value is
	// validated by the session before it is applied.
	Distiller interface {
		Distill(ctx context.Context, knowledge []string) (json.RawMessage, error)
	}

	// LocalBackend manages the models of a local inference server.
	LocalBackend interface {
		CheckStatus(ctx context.Context) bool
		ListModels(ctx context.Context) ([]localllm.Model, error)
		Pull(ctx context.Context, model string) (*localllm.PullStream, error)
		Delete(ctx context.Context, model string) error
	}

	// LocalDialer returns the backend serving url.
	LocalDialer func(url string) LocalBackend

	// History records recently used agents.
	History interface {
		Add(ctx context.Context, agent entity.Agent) error
		Update(ctx context.Context, oldName string, agent entity.Agent) error
	}

	LocalState struct {
		URL      string             `json:"url"`
		Enabled  bool               `json:"enabled"`
		Models   []localllm.Model   `json:"models"`
		Selected string             `json:"selected"`
		Status   entity.LocalStatus `json:"status"`
		Error    string             `json:"error,omitempty"`
		Pull     string             `json:"pull,omitempty"`
	}

	Session struct {
		store     memory.Store
		processor Processor
		hosted    HostedClient
		distiller Distiller
		history   History
		dialLocal LocalDialer
		conf      config.SessionConfig
		logger    *slog.Logger

		onLocalConnected func(ctx context.Context, state LocalState)

		mu              sync.RWMutex
		agent           entity.Agent
		loaded          bool
		transcript      []entity.ChatMessage
		mode            entity.Mode
		settings        entity.Settings
		pathway         entity.Pathway
		hostedAvailable bool
		hostedReason    string
		chat            hosted.Chat
		local           LocalState
		suggestions     []string

		busy     atomic.Bool
		commitMu sync.Mutex

		subMu       sync.Mutex
		subscribers map[int]chan Event
		nextSub     int

		bgCtx    context.Context
		bgCancel context.CancelFunc
		bg       sync.WaitGroup
	}
)

const (
	ReasonMissingKey = "API key not configured."
	ReasonOffline    = "Application is offline."
)

func New(store memory.Store, processor Processor, opts ...Option) *Session {
	s := &Session{
		store:       store,
		processor:   processor,
		conf:        *config.NewSessionConfig(),
		logger:      mylog.Discard(),
		mode:        entity.ModeChat,
		settings:    entity.DefaultSettings(),
		pathway:     entity.PathwayNative,
		subscribers: make(map[int]chan Event),
		local: LocalState{
			URL:     config.DefaultOllamaURL,
			Enabled: true,
			Status:  entity.LocalStatusDisconnected,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialLocal == nil {
		logger := s.logger
		s.dialLocal = func(url string) LocalBackend {
			return localllm.NewClient(localllm.Config{URL: url}, logger)
		}
	}
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	return s
}

// Init decides whether the hosted pathway can be used and connects to the
// local backend. Hosted is preferred; the pathway falls back to native when
// hosted is unavailable.
func (s *Session) Init(ctx context.Context, offline bool) error {
	s.mu.Lock()
	switch {
	case s.hosted == nil:
		s.hostedAvailable, s.hostedReason = false, ReasonMissingKey
	case offline:
		s.hostedAvailable, s.hostedReason = false, ReasonOffline
	default:
		s.hostedAvailable, s.hostedReason = true, ""
	}
	if s.hostedAvailable {
		s.pathway = entity.PathwayHosted
	} else {
		s.pathway = entity.PathwayNative
		s.chat = nil
	}
	s.mu.Unlock()
	s.rebuildChat(ctx)

	if err := s.ConnectLocal(ctx); err != nil {
		s.logger.Warn("local backend not reachable", slog.String("url", s.LocalState().URL), slog.Any("error", err))
	}
	return nil
}

// HostedAvailable reports whether the hosted pathway can be selected and,
// when it cannot, why.
func (s *Session) HostedAvailable() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostedAvailable, s.hostedReason
}

func (s *Session) Pathway() entity.Pathway {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pathway
}

func (s *Session) Mode() entity.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) Settings() entity.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Agent returns a copy of the loaded agent, including the knowledge mirror.
func (s *Session) Agent() (entity.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAgent(s.agent), s.loaded
}

func (s *Session) Knowledge() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.agent.KnowledgeBase...)
}

func (s *Session) Transcript() []entity.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.ChatMessage{}, s.transcript...)
}

func (s *Session) Suggestions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.suggestions...)
}

func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Wait blocks until background consolidation finishes.
func (s *Session) Wait() {
	s.bg.Wait()
}

// Close cancels background work, waits for it and closes every subscription.
func (s *Session) Close() {
	s.bgCancel()
	s.bg.Wait()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *Session) requireAgent() (entity.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return entity.Agent{}, errors.Wrapf(errors.ErrInvalidParams, "no agent loaded")
	}
	return copyAgent(s.agent), nil
}

func copyAgent(a entity.Agent) entity.Agent {
	out := a
	out.Capabilities = append([]entity.Mode(nil), a.Capabilities...)
	out.KnowledgeBase = append([]string{}, a.KnowledgeBase...)
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
