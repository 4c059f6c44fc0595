package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/stringslices"
	"github.com/habiliai/nativeagent/memory"
	"github.com/samber/lo"
)

const noteAnalysisFailed = "Failed to analyze conversation."

// ImportKnowledge stores every non-empty line of text as a memory of the
// active agent and reports how many were new.
func (s *Session) ImportKnowledge(ctx context.Context, text, fileName string) (int, error) {
	agent, err := s.requireAgent()
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	added, err := s.store.Import(ctx, agent.Name, text)
	if err != nil {
		return added, errors.Wrapf(err, "failed to import %s", fileName)
	}
	if err := s.refreshKnowledge(ctx, agent.Name); err != nil {
		return added, err
	}
	s.addSystem(fmt.Sprintf("Imported %d new concepts from %s.", added, fileName), entity.MessageTypeSystem)
	return added, nil
}

// AnalyzeConversation asks the hosted extractor for memories worth keeping.
// They are held as suggestions until approved or rejected.
func (s *Session) AnalyzeConversation(ctx context.Context) ([]string, error) {
	if _, err := s.requireAgent(); err != nil {
		return nil, err
	}
	if s.hosted == nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "conversation analysis needs the hosted model")
	}

	suggestions, err := s.hosted.ExtractKnowledge(ctx, s.Transcript())
	if err != nil {
		s.logger.Warn("conversation analysis failed", slog.Any("error", err))
		s.addSystem(noteAnalysisFailed, entity.MessageTypeError)
		return nil, err
	}
	suggestions = stringslices.UniqueIgnoreCase(suggestions)

	s.mu.Lock()
	s.suggestions = append([]string(nil), suggestions...)
	s.mu.Unlock()
	return suggestions, nil
}

// ApproveMemory stores a suggestion and drops it from the suggestions.
func (s *Session) ApproveMemory(ctx context.Context, content string) error {
	agent, err := s.requireAgent()
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "empty memory")
	}
	if _, _, err := s.store.Add(ctx, agent.Name, content); err != nil {
		return err
	}
	if err := s.refreshKnowledge(ctx, agent.Name); err != nil {
		return err
	}
	s.RejectMemory(content)
	return nil
}

func (s *Session) RejectMemory(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = lo.Without(s.suggestions, content)
}

func (s *Session) ClearSuggestions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = nil
}

func (s *Session) Memories(ctx context.Context) ([]memory.Record, error) {
	agent, err := s.requireAgent()
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, agent.Name)
}

// AddMemory stores content for the active agent. added is false when an
// equal memory already existed.
func (s *Session) AddMemory(ctx context.Context, content string) (record memory.Record, added bool, err error) {
	agent, err := s.requireAgent()
	if err != nil {
		return record, false, err
	}
	if strings.TrimSpace(content) == "" {
		return record, false, errors.Wrapf(errors.ErrInvalidParams, "empty memory")
	}
	if record, added, err = s.store.Add(ctx, agent.Name, content); err != nil {
		return record, false, err
	}
	return record, added, s.refreshKnowledge(ctx, agent.Name)
}

func (s *Session) ForgetMemory(ctx context.Context, id string) error {
	agent, err := s.requireAgent()
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, agent.Name, id); err != nil {
		return err
	}
	return s.refreshKnowledge(ctx, agent.Name)
}

func (s *Session) ClearMemories(ctx context.Context) error {
	agent, err := s.requireAgent()
	if err != nil {
		return err
	}
	if err := s.store.Clear(ctx, agent.Name); err != nil {
		return err
	}
	return s.refreshKnowledge(ctx, agent.Name)
}
