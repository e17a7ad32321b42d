package core

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

const (
	EventMessageNew        = "message:new"
	EventFriendsUpdated    = "friends:updated"
	EventGroupMemberJoined = "groups:member-joined"
	EventCallSignal        = "call:signal"
	EventCallEnded         = "call:ended"
	EventTyping            = "message:typing"
	EventReady             = "ready"
	EventPong              = "pong"
	EventError             = "error"
)

// Event is an outbound payload; EventName is the envelope type.
type Event interface {
	EventName() string
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Encode wraps ev into the {"type","data"} envelope.
func Encode(ev Event) (Frame, error) {
	return json.Marshal(envelope{Type: ev.EventName(), Data: ev})
}

type MessageNew struct {
	Message domain.ChatMessage `json:"message"`
}

func (MessageNew) EventName() string { return EventMessageNew }

type FriendsUpdated struct{}

func (FriendsUpdated) EventName() string { return EventFriendsUpdated }

type GroupMember struct {
	UserCode domain.IdentityCode `json:"userCode"`
	Name     string              `json:"name,omitempty"`
}

type GroupMemberJoined struct {
	GroupCode domain.GroupCode `json:"groupCode"`
	Member    GroupMember      `json:"member"`
}

func (GroupMemberJoined) EventName() string { return EventGroupMemberJoined }

// CallSignal carries an opaque negotiation payload. FromCode is always set by the relay.
type CallSignal struct {
	SessionCode domain.SessionCode  `json:"sessionCode"`
	FromCode    domain.IdentityCode `json:"fromCode"`
	Data        json.RawMessage     `json:"data"`
	CallType    domain.MediaKind    `json:"callType"`
}

func (CallSignal) EventName() string { return EventCallSignal }

type CallEnded struct {
	SessionCode domain.SessionCode  `json:"sessionCode"`
	EndedBy     domain.IdentityCode `json:"endedBy,omitempty"`
	Reason      domain.EndReason    `json:"reason"`
}

func (CallEnded) EventName() string { return EventCallEnded }

type Typing struct {
	From        domain.IdentityCode `json:"from"`
	GroupCode   domain.GroupCode    `json:"groupCode,omitempty"`
	TimestampMs int64               `json:"timestamp"`
}

func NewTyping(from domain.IdentityCode, group domain.GroupCode, at time.Time) Typing {
	return Typing{From: from, GroupCode: group, TimestampMs: at.UnixMilli()}
}

func (Typing) EventName() string { return EventTyping }

type Ready struct {
	UserCode domain.IdentityCode `json:"userCode"`
	ConnID   ConnID              `json:"connId"`
}

func (Ready) EventName() string { return EventReady }

type Pong struct{}

func (Pong) EventName() string { return EventPong }

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Error) EventName() string { return EventError }
