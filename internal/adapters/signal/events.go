package signal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Inbound event names.
const (
	EventJoinGroup  = "joinGroup"
	EventLeaveGroup = "leaveGroup"
	EventPing       = "ping"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type envelope struct {
	Type string          `json:"type" validate:"required,max=32"`
	Data json.RawMessage `json:"data"`
}

type JoinGroupEvent struct {
	GroupCode string `json:"groupCode" validate:"required,max=64"`
}

type LeaveGroupEvent struct {
	GroupCode string `json:"groupCode" validate:"required,max=64"`
}

// CallSignalEvent carries an opaque negotiation payload for the peer.
// A client supplied fromCode is not part of the schema and is dropped.
type CallSignalEvent struct {
	SessionCode string          `json:"sessionCode" validate:"required,max=64"`
	TargetCode  string          `json:"targetCode" validate:"omitempty,max=64"`
	Data        json.RawMessage `json:"data" validate:"required"`
	CallType    string          `json:"callType" validate:"omitempty,oneof=VOICE VIDEO voice video"`
}

type TypingEvent struct {
	TargetCode string `json:"targetCode" validate:"required_without=GroupCode,max=64"`
	GroupCode  string `json:"groupCode" validate:"max=64"`
}

type PingEvent struct{}

// Decode parses one inbound frame into its typed variant. Anything outside
// the closed set, or failing its schema, is an invalid input.
func Decode(frame []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame", domain.ErrInvalidInput)
	}
	if err := validate.Struct(env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	switch env.Type {
	case EventPing:
		return PingEvent{}, nil
	case EventJoinGroup:
		return decodeData[JoinGroupEvent](env)
	case EventLeaveGroup:
		return decodeData[LeaveGroupEvent](env)
	case core.EventCallSignal:
		ev, err := decodeData[CallSignalEvent](env)
		if err != nil {
			return nil, err
		}
		if d := bytes.TrimSpace(ev.Data); len(d) == 0 || bytes.Equal(d, []byte("null")) {
			return nil, fmt.Errorf("%w: data is required", domain.ErrInvalidSignal)
		}
		return ev, nil
	case core.EventTyping:
		return decodeData[TypingEvent](env)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", domain.ErrInvalidInput, env.Type)
	}
}

func decodeData[T any](env envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, fmt.Errorf("%w: %s requires data", domain.ErrInvalidInput, env.Type)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, env.Type, err)
	}
	if err := validate.Struct(v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, env.Type, err)
	}
	return v, nil
}
