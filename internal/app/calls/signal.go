package calls

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Signal is one relay hop of negotiation data between the two participants.
type Signal struct {
	SessionCode domain.SessionCode
	From        domain.IdentityCode
	To          domain.IdentityCode
	Payload     json.RawMessage
	Conn        core.ConnID
}

type signalClass string

const (
	classOffer     signalClass = "offer"
	classAnswer    signalClass = "answer"
	classCandidate signalClass = "candidate"
	classOther     signalClass = "opaque"
)

type signalProbe struct {
	Type      string          `json:"type"`
	SDP       string          `json:"sdp"`
	Candidate json.RawMessage `json:"candidate"`
}

// classify inspects a payload without interpreting it beyond what state
// tracking needs. Unknown shapes are relayed as opaque.
func classify(payload json.RawMessage) (signalClass, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("%w: empty payload", domain.ErrInvalidSignal)
	}
	if trimmed[0] != '{' {
		return classOther, nil
	}
	var p signalProbe
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSignal, err)
	}

	if p.SDP != "" {
		typ := webrtc.NewSDPType(p.Type)
		if typ == webrtc.SDPTypeUnknown {
			log.Debug().Str("module", "calls").Str("type", p.Type).Msg("unknown description type, relaying as opaque")
			return classOther, nil
		}
		var parsed sdp.SessionDescription
		if err := parsed.UnmarshalString(p.SDP); err != nil {
			log.Debug().Str("module", "calls").Err(err).Msg("unparsable sdp, relaying as opaque")
			return classOther, nil
		}
		switch typ {
		case webrtc.SDPTypeOffer:
			return classOffer, nil
		case webrtc.SDPTypeAnswer:
			return classAnswer, nil
		}
		return classOther, nil
	}

	if len(p.Candidate) > 0 {
		var cand webrtc.ICECandidateInit
		switch p.Candidate[0] {
		case '{':
			if err := json.Unmarshal(p.Candidate, &cand); err != nil {
				return "", fmt.Errorf("%w: malformed candidate: %v", domain.ErrInvalidSignal, err)
			}
		case '"':
			if err := json.Unmarshal(trimmed, &cand); err != nil {
				return "", fmt.Errorf("%w: malformed candidate: %v", domain.ErrInvalidSignal, err)
			}
		}
		return classCandidate, nil
	}
	return classOther, nil
}

// hasVideo reports whether an SDP payload negotiates a video section.
func hasVideo(payload json.RawMessage) bool {
	var p signalProbe
	if json.Unmarshal(payload, &p) != nil || p.SDP == "" {
		return false
	}
	var parsed sdp.SessionDescription
	if parsed.UnmarshalString(p.SDP) != nil {
		return false
	}
	for _, m := range parsed.MediaDescriptions {
		if m.MediaName.Media == "video" {
			return true
		}
	}
	return false
}
