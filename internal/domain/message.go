package domain

import (
	"fmt"
	"strings"
	"time"
)

const MaxTextLen = 4000

type MessageKind string

const (
	MessageText  MessageKind = "TEXT"
	MessageImage MessageKind = "IMAGE"
	MessageFile  MessageKind = "FILE"
)

func ParseMessageKind(raw string) (MessageKind, error) {
	switch k := MessageKind(strings.ToUpper(strings.TrimSpace(raw))); k {
	case "":
		return MessageText, nil
	case MessageText, MessageImage, MessageFile:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, raw)
	}
}

type TargetKind string

const (
	TargetUser  TargetKind = "USER"
	TargetGroup TargetKind = "GROUP"
)

type ChatMessage struct {
	ID             string       `json:"id"`
	Sender         IdentityCode `json:"senderCode"`
	RecipientUser  IdentityCode `json:"recipientUserCode,omitempty"`
	RecipientGroup GroupCode    `json:"recipientGroupCode,omitempty"`
	Kind           MessageKind  `json:"messageType"`
	Content        string       `json:"content,omitempty"`
	FileName       string       `json:"fileName,omitempty"`
	FileData       string       `json:"fileData,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

func (m ChatMessage) IsDirect() bool { return m.RecipientUser != "" }

// Validate checks the payload against the message kind. TEXT carries only content,
// IMAGE and FILE carry an attachment.
func (m ChatMessage) Validate() error {
	switch m.Kind {
	case MessageText:
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: text is required", ErrInvalidMessage)
		}
		if len(m.Content) > MaxTextLen {
			return fmt.Errorf("%w: text too long", ErrInvalidMessage)
		}
	case MessageImage, MessageFile:
		if m.FileData == "" {
			return fmt.Errorf("%w: attachment is required", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, m.Kind)
	}
	if (m.RecipientUser == "") == (m.RecipientGroup == "") {
		return fmt.Errorf("%w: exactly one recipient is required", ErrInvalidMessage)
	}
	return nil
}

// Normalize drops fields the kind does not carry.
func (m ChatMessage) Normalize() ChatMessage {
	if m.Kind == MessageText {
		m.FileData = ""
		m.FileName = ""
	} else {
		m.Content = ""
	}
	return m
}

type Notification struct {
	ID        string       `json:"id"`
	Recipient IdentityCode `json:"userCode"`
	Message   string       `json:"message"`
	Read      bool         `json:"read"`
	CreatedAt time.Time    `json:"createdAt"`
}
