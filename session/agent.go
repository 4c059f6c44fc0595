package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/memory"
)

type Setting string

const (
	SettingTemperature Setting = "temperature"
	SettingTopP        Setting = "topP"
	SettingTopK        Setting = "topK"
)

// LoadAgent makes agent the active agent. Knowledge shipped with the agent
// replaces the stored knowledge, the transcript restarts and the hosted
// chat is rebuilt.
func (s *Session) LoadAgent(ctx context.Context, agent entity.Agent) error {
	if !s.busy.CompareAndSwap(false, true) {
		return errors.ErrBusy
	}
	defer s.busy.Store(false)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	agent = agent.Normalize()

	if len(agent.KnowledgeBase) > 0 {
		if err := s.store.Reconcile(ctx, agent.Name, agent.KnowledgeBase); err != nil {
			return errors.Wrapf(err, "failed to sync knowledge of %s", agent.Name)
		}
	}
	records, err := s.store.List(ctx, agent.Name)
	if err != nil {
		return errors.Wrapf(err, "failed to load knowledge of %s", agent.Name)
	}
	agent.KnowledgeBase = memory.Contents(records)

	welcome := entity.NewChatMessage(entity.SenderSystem, fmt.Sprintf("%s has been loaded.", agent.Name), entity.MessageTypeSystem)

	s.mu.Lock()
	s.agent = agent
	s.loaded = true
	s.transcript = []entity.ChatMessage{welcome}
	s.mode = agent.DefaultMode()
	s.suggestions = nil
	s.mu.Unlock()

	s.publish(Event{Type: EventReset, Message: welcome})
	s.logger.Info("agent loaded", slog.String("agent", agent.Name), slog.Int("knowledge", len(agent.KnowledgeBase)))

	if s.history != nil {
		if err := s.history.Add(ctx, agent); err != nil {
			s.logger.Warn("failed to record agent history", slog.Any("error", err))
		}
	}
	s.rebuildChat(ctx)
	return nil
}

// UpdateAgent replaces the active agent. A rename moves its memories to the
// new namespace. A nil KnowledgeBase keeps the stored knowledge as it is.
func (s *Session) UpdateAgent(ctx context.Context, updated entity.Agent) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	current, err := s.requireAgent()
	if err != nil {
		return err
	}
	keepKnowledge := updated.KnowledgeBase == nil
	updated = updated.Normalize()

	if current.Name != updated.Name {
		if err := s.store.Migrate(ctx, current.Name, updated.Name); err != nil {
			return errors.Wrapf(err, "failed to rename %s to %s", current.Name, updated.Name)
		}
	}
	return s.commitAgent(ctx, current.Name, updated, keepKnowledge)
}

// commitAgent stores knowledge for agent (unless keep is set), swaps the
// mirror and rebuilds everything derived from the agent. Callers hold
// commitMu.
func (s *Session) commitAgent(ctx context.Context, oldName string, agent entity.Agent, keep bool) error {
	if !keep {
		if err := s.store.Reconcile(ctx, agent.Name, agent.KnowledgeBase); err != nil {
			return errors.Wrapf(err, "failed to store knowledge of %s", agent.Name)
		}
	}
	records, err := s.store.List(ctx, agent.Name)
	if err != nil {
		return errors.Wrapf(err, "failed to load knowledge of %s", agent.Name)
	}
	agent.KnowledgeBase = memory.Contents(records)

	s.mu.Lock()
	s.agent = agent
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.Update(ctx, oldName, agent); err != nil {
			s.logger.Warn("failed to update agent history", slog.Any("error", err))
		}
	}
	s.rebuildChat(ctx)
	return nil
}

// applyKnowledge replaces the knowledge of agentName wholesale when it is
// still the active agent. Only the knowledge of the mirror changes; the
// rest of the agent stays whatever it is at swap time.
func (s *Session) applyKnowledge(ctx context.Context, agentName string, knowledge []string) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.activeName() != agentName {
		return nil
	}
	if err := s.store.Reconcile(ctx, agentName, knowledge); err != nil {
		return errors.Wrapf(err, "failed to store knowledge of %s", agentName)
	}
	swapped, err := s.swapKnowledge(ctx, agentName)
	if err != nil {
		return err
	}
	if !swapped {
		return nil
	}

	agent, _ := s.Agent()
	if s.history != nil {
		if err := s.history.Update(ctx, agentName, agent); err != nil {
			s.logger.Warn("failed to update agent history", slog.Any("error", err))
		}
	}
	s.rebuildChat(ctx)
	return nil
}

// refreshKnowledge reloads the mirror of agentName from the store.
func (s *Session) refreshKnowledge(ctx context.Context, agentName string) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	_, err := s.swapKnowledge(ctx, agentName)
	return err
}

// swapKnowledge lists the stored knowledge of agentName and installs it in
// the mirror if agentName is still active.
func (s *Session) swapKnowledge(ctx context.Context, agentName string) (bool, error) {
	records, err := s.store.List(ctx, agentName)
	if err != nil {
		return false, errors.Wrapf(err, "failed to load knowledge of %s", agentName)
	}
	knowledge := memory.Contents(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agent.Name != agentName {
		return false, nil
	}
	s.agent.KnowledgeBase = knowledge
	return true, nil
}

func (s *Session) activeName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent.Name
}

// SetPathway selects where messages are answered. Any existing hosted chat
// is dropped; selecting hosted builds a fresh one.
func (s *Session) SetPathway(ctx context.Context, p entity.Pathway) error {
	switch p {
	case entity.PathwayHosted, entity.PathwayNative:
	default:
		return errors.Wrapf(errors.ErrInvalidParams, "unknown pathway %q", p)
	}

	s.mu.Lock()
	if p == entity.PathwayHosted && !s.hostedAvailable {
		reason := s.hostedReason
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrUnavailable, "hosted pathway: %s", reason)
	}
	s.pathway = p
	s.chat = nil
	s.mu.Unlock()

	s.rebuildChat(ctx)
	return nil
}

func (s *Session) SetMode(ctx context.Context, mode entity.Mode) error {
	if !mode.Valid() {
		return errors.Wrapf(errors.ErrInvalidParams, "unknown mode %q", mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.rebuildChat(ctx)
	return nil
}

func (s *Session) SetSetting(ctx context.Context, setting Setting, value float32) error {
	s.mu.Lock()
	switch setting {
	case SettingTemperature:
		s.settings.Temperature = value
	case SettingTopP:
		s.settings.TopP = value
	case SettingTopK:
		s.settings.TopK = value
	default:
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInvalidParams, "unknown setting %q", setting)
	}
	s.mu.Unlock()

	s.rebuildChat(ctx)
	return nil
}

// rebuildChat starts a new hosted chat from the current persona, mode and
// settings. It does nothing unless the hosted pathway is active.
func (s *Session) rebuildChat(ctx context.Context) {
	s.mu.RLock()
	active := s.loaded && s.hostedAvailable && s.pathway == entity.PathwayHosted
	agent, mode, settings := copyAgent(s.agent), s.mode, s.settings
	s.mu.RUnlock()

	if !active {
		return
	}

	chat, err := s.hosted.NewChat(ctx, agent, mode, settings)
	if err != nil {
		s.logger.Warn("failed to start hosted chat", slog.String("agent", agent.Name), slog.Any("error", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pathway == entity.PathwayHosted && s.agent.Name == agent.Name {
		s.chat = chat
	}
}
