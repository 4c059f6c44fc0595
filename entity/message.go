package entity

import (
	"time"

	"github.com/google/uuid"
)

type (
	Sender      string
	MessageType string
)

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"

	MessageTypeStandard        MessageType = "standard"
	MessageTypeLocal           MessageType = "local"
	MessageTypeNativeInference MessageType = "native_inference"
	MessageTypeSystem          MessageType = "system"
	MessageTypeCognition       MessageType = "cognition"
	MessageTypeError           MessageType = "error"
)

type ChatMessage struct {
	ID           string      `json:"id"`
	Sender       Sender      `json:"sender"`
	Text         string      `json:"text"`
	Timestamp    time.Time   `json:"timestamp"`
	Type         MessageType `json:"type,omitempty"`
	IsProcessing bool        `json:"isProcessing,omitempty"`
}

func NewChatMessage(sender Sender, text string, typ MessageType) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
		Type:      typ,
	}
}
