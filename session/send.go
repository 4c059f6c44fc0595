package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/stringslices"
	"github.com/habiliai/nativeagent/pipeline"
)

var errNoChat = errors.New("Chat session not initialized.")

// SendMessage answers text on the active pathway. It returns ErrBusy while a
// previous message has not reached a terminal state. Failures while
// answering are reported in the transcript, not returned.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "empty message")
	}
	if !s.busy.CompareAndSwap(false, true) {
		return errors.ErrBusy
	}
	defer s.busy.Store(false)

	agent, err := s.requireAgent()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.suggestions = nil
	pathway := s.pathway
	s.mu.Unlock()

	user := s.appendMessage(entity.NewChatMessage(entity.SenderUser, text, entity.MessageTypeStandard))

	if pathway == entity.PathwayNative {
		s.sendNative(ctx, agent, user)
	} else {
		s.sendHosted(ctx, agent, user)
	}

	s.maybeConsolidate()
	return nil
}

func (s *Session) localOptions() pipeline.LocalOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pipeline.LocalOptions{
		URL:     s.local.URL,
		Model:   s.local.Selected,
		Enabled: s.local.Enabled && s.local.Status == entity.LocalStatusConnected,
	}
}

func (s *Session) sendNative(ctx context.Context, agent entity.Agent, user entity.ChatMessage) {
	placeholder := entity.NewChatMessage(entity.SenderAgent, "", entity.MessageTypeStandard)
	placeholder.IsProcessing = true

	history := s.Transcript()
	s.appendMessage(placeholder)

	res := s.processor.ProcessMessage(ctx, &pipeline.Request{
		Text:    user.Text,
		Agent:   agent,
		History: history,
		Local:   s.localOptions(),
	})

	if !res.IsStream() {
		out := res.Outcome()
		s.updateMessage(placeholder.ID, func(m *entity.ChatMessage) {
			m.Text = out.Response
			m.Type = out.Kind.MessageType()
			m.IsProcessing = false
		})
		if out.HasUpdate() {
			if err := s.applyKnowledge(ctx, agent.Name, out.UpdatedKnowledge); err != nil {
				s.logger.Error("failed to apply knowledge update", slog.String("agent", agent.Name), slog.Any("error", err))
			}
		}
		return
	}

	stream := res.Stream()
	defer stream.Close()

	s.updateMessage(placeholder.ID, func(m *entity.ChatMessage) {
		m.Type = entity.MessageTypeLocal
	})
	for stream.Next() {
		fragment := stream.Fragment()
		s.updateMessage(placeholder.ID, func(m *entity.ChatMessage) {
			m.Text += fragment
		})
	}

	failed := stream.State() == pipeline.StateErrorRespond
	errText := stream.ErrorText()
	s.updateMessage(placeholder.ID, func(m *entity.ChatMessage) {
		if failed {
			m.Text = joinFailure(m.Text, errText)
			m.Type = entity.MessageTypeError
		}
		m.IsProcessing = false
	})
}

func joinFailure(partial, errText string) string {
	if partial == "" {
		return errText
	}
	return partial + "\n\n" + errText
}

func (s *Session) sendHosted(ctx context.Context, agent entity.Agent, user entity.ChatMessage) {
	s.mu.RLock()
	chat := s.chat
	s.mu.RUnlock()

	var (
		reply string
		err   = errNoChat
	)
	if chat != nil {
		reply, err = chat.Send(ctx, user.Text)
	}
	if err != nil {
		s.logger.Warn("hosted chat failed", slog.String("agent", agent.Name), slog.Any("error", err))
		explanation := s.hosted.AnalyzeFailure(ctx, user.Text, err)
		s.appendMessage(entity.NewChatMessage(entity.SenderAgent, explanation, entity.MessageTypeError))
		return
	}

	answer := s.appendMessage(entity.NewChatMessage(entity.SenderAgent, reply, entity.MessageTypeStandard))

	learning, err := s.hosted.SummarizeLearnings(ctx, user, answer)
	if err != nil {
		s.logger.Warn("failed to summarize learnings", slog.Any("error", err))
		return
	}
	if learning == "" || stringslices.ContainsIgnoreCase(s.Knowledge(), learning) {
		return
	}
	if _, _, err := s.store.Add(ctx, agent.Name, learning); err != nil {
		s.logger.Warn("failed to store learning", slog.Any("error", err))
		return
	}
	if err := s.refreshKnowledge(ctx, agent.Name); err != nil {
		s.logger.Warn("failed to refresh knowledge", slog.Any("error", err))
	}
	s.logger.Debug("learned", slog.String("agent", agent.Name), slog.String("memory", fmt.Sprintf("%.60s", learning)))
}
