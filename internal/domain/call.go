package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaVoice MediaKind = "VOICE"
	MediaVideo MediaKind = "VIDEO"
)

// ParseMediaKind defaults an empty kind to VOICE.
func ParseMediaKind(raw string) (MediaKind, error) {
	switch k := MediaKind(strings.ToUpper(strings.TrimSpace(raw))); k {
	case "":
		return MediaVoice, nil
	case MediaVoice, MediaVideo:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown call type %q", ErrInvalidInput, raw)
	}
}

type CallStatus string

const (
	CallInitiated CallStatus = "INITIATED"
	CallActive    CallStatus = "ACTIVE"
	CallEnded     CallStatus = "ENDED"
)

func (s CallStatus) rank() int {
	switch s {
	case CallInitiated:
		return 1
	case CallActive:
		return 2
	case CallEnded:
		return 3
	}
	return 0
}

// CanMoveTo reports whether next is reachable from s. Status never regresses and
// ENDED is terminal; ACTIVE→ACTIVE is allowed so a repeated answer is accepted.
func (s CallStatus) CanMoveTo(next CallStatus) bool {
	if s == CallEnded || next.rank() == 0 || s.rank() == 0 {
		return false
	}
	return next.rank() >= s.rank()
}

func (s CallStatus) Terminal() bool { return s == CallEnded }

// StatusesBefore lists every status from which next can be reached.
func StatusesBefore(next CallStatus) []CallStatus {
	var out []CallStatus
	for _, s := range []CallStatus{CallInitiated, CallActive, CallEnded} {
		if s.CanMoveTo(next) {
			out = append(out, s)
		}
	}
	return out
}

type SessionCode string

// NewSessionCode returns 122 random bits hex encoded.
func NewSessionCode() SessionCode {
	return SessionCode(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

type CallSession struct {
	Code      SessionCode  `json:"sessionCode"`
	Initiator IdentityCode `json:"initiatorCode"`
	Recipient IdentityCode `json:"recipientCode"`
	Kind      MediaKind    `json:"type"`
	Status    CallStatus   `json:"status"`
	Offer     string       `json:"offer,omitempty"`
	Answer    string       `json:"answer,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
}

func (c CallSession) IsParticipant(id IdentityCode) bool {
	return id != "" && (id == c.Initiator || id == c.Recipient)
}

// Peer returns the other participant.
func (c CallSession) Peer(id IdentityCode) (IdentityCode, bool) {
	switch id {
	case c.Initiator:
		return c.Recipient, true
	case c.Recipient:
		return c.Initiator, true
	}
	return "", false
}

// CallTransition is a conditional update: it applies only while the stored status
// is one of From.
type CallTransition struct {
	Code   SessionCode
	From   []CallStatus
	To     CallStatus
	Offer  *string
	Answer *string
	At     time.Time
}

func Advance(code SessionCode, to CallStatus, at time.Time) CallTransition {
	return CallTransition{Code: code, From: StatusesBefore(to), To: to, At: at}
}

func (t CallTransition) WithOffer(offer string) CallTransition {
	t.Offer = &offer
	return t
}

func (t CallTransition) WithAnswer(answer string) CallTransition {
	t.Answer = &answer
	return t
}

type EndReason string

const (
	EndHangup           EndReason = "hangup"
	EndPeerDisconnected EndReason = "peer_disconnected"
	EndTimeout          EndReason = "timeout"
)
