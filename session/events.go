package session

import (
	"log/slog"

	"github.com/habiliai/nativeagent/entity"
)

type EventType string

const (
	EventMessageAdded   EventType = "message_added"
	EventMessageUpdated EventType = "message_updated"
	EventReset          EventType = "transcript_reset"
)

const subscriberBuffer = 64

// Event is one transcript change. Message is a copy taken when the change
// was made.
type Event struct {
	Type    EventType          `json:"type"`
	Message entity.ChatMessage `json:"message"`
}

// Subscribe returns a channel of transcript events and a function that ends
// the subscription. Slow subscribers miss events rather than stall the session.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subscribers[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if ch, ok := s.subscribers[id]; ok {
			close(ch)
			delete(s.subscribers, id)
		}
	}
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("dropped transcript event", slog.String("type", string(ev.Type)))
		}
	}
}

func (s *Session) appendMessage(msg entity.ChatMessage) entity.ChatMessage {
	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	s.mu.Unlock()

	s.publish(Event{Type: EventMessageAdded, Message: msg})
	return msg
}

func (s *Session) addSystem(text string, typ entity.MessageType) {
	s.appendMessage(entity.NewChatMessage(entity.SenderSystem, text, typ))
}

// updateMessage applies fn to the transcript message with id. It is a no-op
// when the transcript was reset in the meantime.
func (s *Session) updateMessage(id string, fn func(m *entity.ChatMessage)) {
	s.mu.Lock()
	var (
		updated entity.ChatMessage
		found   bool
	)
	for i := range s.transcript {
		if s.transcript[i].ID == id {
			fn(&s.transcript[i])
			updated, found = s.transcript[i], true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.publish(Event{Type: EventMessageUpdated, Message: updated})
	}
}
