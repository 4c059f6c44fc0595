package session

import (
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/habiliai/nativeagent/entity"
)

const (
	noteConsolidationStarted = "Cognitive consolidation process initiated in the background..."
	noteConsolidationDone    = "Memory successfully consolidated and refined."
	noteConsolidationFailed  = "Cognitive consolidation failed."
)

// maybeConsolidate schedules a background consolidation pass once the
// transcript is past the warmup and its length hits the interval.
func (s *Session) maybeConsolidate() {
	if s.distiller == nil || s.conf.ConsolidationInterval <= 0 {
		return
	}
	s.mu.RLock()
	n := len(s.transcript)
	agent := copyAgent(s.agent)
	s.mu.RUnlock()

	if n <= s.conf.ConsolidationWarmup || n%s.conf.ConsolidationInterval != 0 {
		return
	}
	if len(agent.KnowledgeBase) < s.conf.ConsolidationMinEntries {
		s.logger.Debug("skipping consolidation", slog.Int("knowledge", len(agent.KnowledgeBase)))
		return
	}

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.consolidate(agent)
	}()
}

func (s *Session) consolidate(agent entity.Agent) {
	ctx := s.bgCtx
	s.addSystem(noteConsolidationStarted, entity.MessageTypeCognition)

	raw, err := s.distiller.Distill(ctx, agent.KnowledgeBase)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Warn("consolidation failed", slog.String("agent", agent.Name), slog.Any("error", err))
		s.addSystem(noteConsolidationFailed, entity.MessageTypeError)
		return
	}
	refined, ok := validKnowledge(raw)
	if !ok {
		s.logger.Warn("consolidation returned malformed knowledge", slog.String("agent", agent.Name), slog.String("raw", string(raw)))
		s.addSystem(noteConsolidationFailed, entity.MessageTypeError)
		return
	}

	s.mu.RLock()
	current := copyAgent(s.agent)
	s.mu.RUnlock()
	if current.Name != agent.Name {
		s.logger.Debug("agent changed during consolidation", slog.String("agent", agent.Name))
		return
	}
	if slices.Equal(refined, current.KnowledgeBase) {
		return
	}

	if err := s.applyKnowledge(ctx, agent.Name, refined); err != nil {
		s.logger.Warn("failed to apply consolidated knowledge", slog.String("agent", agent.Name), slog.Any("error", err))
		s.addSystem(noteConsolidationFailed, entity.MessageTypeError)
		return
	}
	s.logger.Info("knowledge consolidated", slog.String("agent", agent.Name), slog.Int("before", len(current.KnowledgeBase)), slog.Int("after", len(refined)))
	s.addSystem(noteConsolidationDone, entity.MessageTypeCognition)
}

// validKnowledge accepts a non-empty JSON array of strings.
func validKnowledge(raw json.RawMessage) ([]string, bool) {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, str)
	}
	return out, true
}
