// Package calls runs the one-to-one call state machine and relays negotiation
// payloads between the two participants of a session.
package calls

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const teardownTimeout = 5 * time.Second

type Options struct {
	// RingTimeout ends sessions still INITIATED after this long. Zero disables expiry.
	RingTimeout time.Duration
	Metrics     *observability.Metrics
	Now         func() time.Time
}

// liveCall is the in-memory correlation for a non terminal session.
type liveCall struct {
	initiator domain.IdentityCode
	recipient domain.IdentityCode
	status    domain.CallStatus
	createdAt time.Time
	conns     map[core.ConnID]domain.IdentityCode
}

// Coordinator owns no durable state; the store is authoritative and every
// transition is a conditional update against it.
type Coordinator struct {
	store    SessionStore
	rooms    Broadcaster
	presence Presence
	metrics  *observability.Metrics
	now      func() time.Time
	ring     time.Duration

	mu         sync.Mutex
	live       map[domain.SessionCode]*liveCall
	byIdentity map[domain.IdentityCode]map[domain.SessionCode]struct{}
}

func NewCoordinator(store SessionStore, rooms Broadcaster, presence Presence, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		store:      store,
		rooms:      rooms,
		presence:   presence,
		metrics:    opts.Metrics,
		now:        opts.Now,
		ring:       opts.RingTimeout,
		live:       make(map[domain.SessionCode]*liveCall),
		byIdentity: make(map[domain.IdentityCode]map[domain.SessionCode]struct{}),
	}
}

func (c *Coordinator) StartCall(ctx context.Context, initiator domain.IdentityCode, recipientRaw, kindRaw string) (domain.CallSession, error) {
	if initiator == "" {
		return domain.CallSession{}, domain.ErrUnauthenticated
	}
	kind, err := domain.ParseMediaKind(kindRaw)
	if err != nil {
		return domain.CallSession{}, err
	}
	recipient, err := domain.ParseIdentityCode(recipientRaw)
	if err != nil {
		return domain.CallSession{}, err
	}

	exists, err := c.store.IdentityExists(ctx, recipient)
	if err != nil {
		return domain.CallSession{}, fmt.Errorf("lookup recipient: %w", err)
	}
	if !exists {
		return domain.CallSession{}, domain.ErrTargetNotFound
	}
	if recipient == initiator {
		return domain.CallSession{}, domain.ErrSelfTarget
	}
	friends, err := c.store.AreFriends(ctx, initiator, recipient)
	if err != nil {
		return domain.CallSession{}, fmt.Errorf("check friendship: %w", err)
	}
	if !friends {
		return domain.CallSession{}, domain.ErrNotFriends
	}

	now := c.now()
	session := domain.CallSession{
		Code:      domain.NewSessionCode(),
		Initiator: initiator,
		Recipient: recipient,
		Kind:      kind,
		Status:    domain.CallInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.CreateCallSession(ctx, session); err != nil {
		return domain.CallSession{}, fmt.Errorf("create call session: %w", err)
	}
	c.track(session)
	c.metrics.CallStarted(string(kind))
	log.Info().Str("module", "calls").Str("session", string(session.Code)).
		Str("from", string(initiator)).Str("to", string(recipient)).Str("type", string(kind)).Msg("call started")

	c.notify(ctx, recipient, fmt.Sprintf("Incoming %s call from %s", kind, initiator))
	return session, nil
}

// RecordOffer stores the initiator's offer while the session is still ringing.
func (c *Coordinator) RecordOffer(ctx context.Context, code domain.SessionCode, caller domain.IdentityCode, offer string) (domain.CallSession, error) {
	if offer == "" {
		return domain.CallSession{}, fmt.Errorf("%w: offer is required", domain.ErrInvalidInput)
	}
	session, err := c.participantSession(ctx, code, caller)
	if err != nil {
		return session, err
	}
	if caller != session.Initiator {
		return session, domain.ErrNotInitiator
	}
	session, applied, err := c.store.AdvanceCallSession(ctx, domain.Advance(code, domain.CallInitiated, c.now()).WithOffer(offer))
	if err != nil {
		return session, fmt.Errorf("record offer: %w", err)
	}
	if !applied {
		return session, rejectFor(session.Status)
	}
	return session, nil
}

// RecordAnswer moves the session to ACTIVE. A repeated answer is stored again
// and the status stays ACTIVE.
func (c *Coordinator) RecordAnswer(ctx context.Context, code domain.SessionCode, caller domain.IdentityCode, answer string) (domain.CallSession, error) {
	if answer == "" {
		return domain.CallSession{}, fmt.Errorf("%w: answer is required", domain.ErrInvalidInput)
	}
	session, err := c.participantSession(ctx, code, caller)
	if err != nil {
		return session, err
	}
	if caller != session.Recipient {
		return session, domain.ErrNotRecipient
	}
	return c.activate(ctx, session, answer)
}

func (c *Coordinator) activate(ctx context.Context, session domain.CallSession, answer string) (domain.CallSession, error) {
	prev := session.Status
	session, applied, err := c.store.AdvanceCallSession(ctx, domain.Advance(session.Code, domain.CallActive, c.now()).WithAnswer(answer))
	if err != nil {
		return session, fmt.Errorf("record answer: %w", err)
	}
	if !applied {
		return session, rejectFor(session.Status)
	}
	c.setStatus(session.Code, domain.CallActive)
	if prev != domain.CallActive {
		log.Info().Str("module", "calls").Str("session", string(session.Code)).Msg("call active")
	}
	return session, nil
}

// RelaySignal delivers a negotiation payload to the peer's identity room. A
// peer without live connections silently misses it.
func (c *Coordinator) RelaySignal(ctx context.Context, sig Signal) error {
	if sig.SessionCode == "" {
		return fmt.Errorf("%w: session code is required", domain.ErrInvalidSignal)
	}
	class, err := classify(sig.Payload)
	if err != nil {
		return err
	}
	session, err := c.participantSession(ctx, sig.SessionCode, sig.From)
	if err != nil {
		return err
	}
	peer, _ := session.Peer(sig.From)
	if sig.To != "" && sig.To != peer {
		return domain.ErrNotParticipant
	}
	if session.Status.Terminal() {
		return domain.ErrCallEnded
	}

	switch {
	case class == classAnswer && sig.From == session.Recipient:
		if session, err = c.activate(ctx, session, string(sig.Payload)); err != nil {
			return err
		}
	case class == classOffer && sig.From == session.Initiator && session.Status == domain.CallInitiated:
		if session.Kind == domain.MediaVoice && hasVideo(sig.Payload) {
			log.Debug().Str("module", "calls").Str("session", string(session.Code)).Msg("voice call offers video")
		}
		if _, _, err := c.store.AdvanceCallSession(ctx, domain.Advance(session.Code, domain.CallInitiated, c.now()).WithOffer(string(sig.Payload))); err != nil {
			return fmt.Errorf("record offer: %w", err)
		}
	}
	c.bind(session, sig.Conn, sig.From)

	res := c.rooms.Broadcast(domain.UserRoom(peer), core.CallSignal{
		SessionCode: session.Code,
		FromCode:    sig.From,
		Data:        sig.Payload,
		CallType:    session.Kind,
	}, "")
	c.metrics.SignalRelayed(string(class))
	log.Debug().Str("module", "calls").Str("session", string(session.Code)).Str("class", string(class)).
		Str("to", string(peer)).Int("sent_to", res.SendTo).Msg("signal relayed")
	return nil
}

// EndCall is idempotent: ending an ENDED session returns it without error.
func (c *Coordinator) EndCall(ctx context.Context, code domain.SessionCode, caller domain.IdentityCode) (domain.CallSession, error) {
	session, err := c.participantSession(ctx, code, caller)
	if err != nil {
		return session, err
	}
	return c.end(ctx, domain.Advance(session.Code, domain.CallEnded, c.now()), caller, domain.EndHangup)
}

func (c *Coordinator) GetSession(ctx context.Context, code domain.SessionCode, caller domain.IdentityCode) (domain.CallSession, error) {
	return c.participantSession(ctx, code, caller)
}

// end moves the session to ENDED. Only the caller that wins the transition
// emits call:ended.
func (c *Coordinator) end(ctx context.Context, t domain.CallTransition, by domain.IdentityCode, reason domain.EndReason) (domain.CallSession, error) {
	code := t.Code
	session, applied, err := c.store.AdvanceCallSession(ctx, t)
	if err != nil {
		return session, fmt.Errorf("end call: %w", err)
	}
	if !applied {
		if session.Status.Terminal() {
			c.forget(code)
		} else {
			c.setStatus(code, session.Status)
		}
		return session, nil
	}
	c.forget(code)
	c.metrics.CallEnded(string(reason))
	log.Info().Str("module", "calls").Str("session", string(code)).Str("by", string(by)).Str("reason", string(reason)).Msg("call ended")

	ev := core.CallEnded{SessionCode: code, EndedBy: by, Reason: reason}
	c.rooms.Broadcast(domain.UserRoom(session.Initiator), ev, "")
	c.rooms.Broadcast(domain.UserRoom(session.Recipient), ev, "")
	return session, nil
}

func (c *Coordinator) participantSession(ctx context.Context, code domain.SessionCode, caller domain.IdentityCode) (domain.CallSession, error) {
	if caller == "" {
		return domain.CallSession{}, domain.ErrUnauthenticated
	}
	if code == "" {
		return domain.CallSession{}, fmt.Errorf("%w: session code is required", domain.ErrInvalidInput)
	}
	session, err := c.store.GetCallSession(ctx, code)
	if err != nil {
		return domain.CallSession{}, err
	}
	if !session.IsParticipant(caller) {
		return domain.CallSession{}, domain.ErrNotParticipant
	}
	return session, nil
}

func rejectFor(status domain.CallStatus) error {
	if status == domain.CallEnded {
		return domain.ErrCallEnded
	}
	return domain.ErrCallNotRinging
}

func (c *Coordinator) notify(ctx context.Context, to domain.IdentityCode, msg string) {
	err := c.store.CreateNotification(ctx, domain.Notification{
		ID:        uuid.NewString(),
		Recipient: to,
		Message:   msg,
		CreatedAt: c.now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "calls").Str("user", string(to)).Msg("notification failed")
	}
}

// OnConnectionClosed ends every open session the connection was negotiating,
// and every open session of an identity left with no connections at all.
func (c *Coordinator) OnConnectionClosed(identity domain.IdentityCode, conn core.Conn) {
	gone := c.presence.ConnectionCount(identity) == 0
	var toEnd []domain.SessionCode
	c.mu.Lock()
	for code := range c.byIdentity[identity] {
		lc := c.live[code]
		if lc == nil {
			continue
		}
		if _, bound := lc.conns[conn.ID()]; bound || gone {
			toEnd = append(toEnd, code)
		}
	}
	c.mu.Unlock()

	for _, code := range toEnd {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		if _, err := c.end(ctx, domain.Advance(code, domain.CallEnded, c.now()), identity, domain.EndPeerDisconnected); err != nil {
			log.Error().Err(err).Str("module", "calls").Str("session", string(code)).Msg("end on disconnect failed")
		}
		cancel()
	}
}

// ExpireStale ends sessions that rang longer than the ring timeout.
func (c *Coordinator) ExpireStale(ctx context.Context) int {
	if c.ring <= 0 {
		return 0
	}
	cutoff := c.now().Add(-c.ring)
	var stale []domain.SessionCode
	c.mu.Lock()
	for code, lc := range c.live {
		if lc.status == domain.CallInitiated && !lc.createdAt.After(cutoff) {
			stale = append(stale, code)
		}
	}
	c.mu.Unlock()

	ended := 0
	for _, code := range stale {
		t := domain.CallTransition{
			Code: code,
			From: []domain.CallStatus{domain.CallInitiated},
			To:   domain.CallEnded,
			At:   c.now(),
		}
		s, err := c.end(ctx, t, "", domain.EndTimeout)
		if err != nil {
			log.Error().Err(err).Str("module", "calls").Str("session", string(code)).Msg("expire failed")
			continue
		}
		if s.Status == domain.CallEnded {
			ended++
		}
	}
	return ended
}

// Run sweeps for stale sessions until ctx is done.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if c.ring <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := c.ExpireStale(ctx); n > 0 {
				log.Info().Str("module", "calls").Int("expired", n).Msg("ring timeout sweep")
			}
		}
	}
}

// Live reports the number of non terminal sessions tracked in memory.
func (c *Coordinator) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func (c *Coordinator) track(s domain.CallSession) *liveCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trackLocked(s)
}

func (c *Coordinator) trackLocked(s domain.CallSession) *liveCall {
	if lc, ok := c.live[s.Code]; ok {
		return lc
	}
	lc := &liveCall{
		initiator: s.Initiator,
		recipient: s.Recipient,
		status:    s.Status,
		createdAt: s.CreatedAt,
		conns:     make(map[core.ConnID]domain.IdentityCode),
	}
	c.live[s.Code] = lc
	for _, id := range []domain.IdentityCode{s.Initiator, s.Recipient} {
		set, ok := c.byIdentity[id]
		if !ok {
			set = make(map[domain.SessionCode]struct{})
			c.byIdentity[id] = set
		}
		set[s.Code] = struct{}{}
	}
	return lc
}

// bind attaches conn to a session still tracked as live. A session forgotten
// by a concurrent end stays forgotten.
func (c *Coordinator) bind(s domain.CallSession, conn core.ConnID, identity domain.IdentityCode) {
	if conn == "" || s.Status.Terminal() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lc, ok := c.live[s.Code]
	if !ok {
		return
	}
	lc.conns[conn] = identity
}

func (c *Coordinator) setStatus(code domain.SessionCode, status domain.CallStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lc, ok := c.live[code]; ok {
		lc.status = status
	}
}

func (c *Coordinator) forget(code domain.SessionCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lc, ok := c.live[code]
	if !ok {
		return
	}
	delete(c.live, code)
	for _, id := range []domain.IdentityCode{lc.initiator, lc.recipient} {
		if set := c.byIdentity[id]; set != nil {
			delete(set, code)
			if len(set) == 0 {
				delete(c.byIdentity, id)
			}
		}
	}
}
