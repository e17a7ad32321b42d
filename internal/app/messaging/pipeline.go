// Package messaging turns an authored chat message into a durable record and
// then a realtime fanout, never the other way round.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type SendRequest struct {
	Sender      domain.IdentityCode
	Kind        string
	TargetCode  string
	MessageType string
	Content     string
	FileName    string
	FileData    string
}

type ListQuery struct {
	Kind       string
	TargetCode string
	Limit      int
}

type Pipeline struct {
	store   MessageStore
	rooms   Broadcaster
	metrics *observability.Metrics
	now     func() time.Time
	locks   keyedMutex
}

func NewPipeline(store MessageStore, rooms Broadcaster, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{store: store, rooms: rooms, metrics: metrics, now: time.Now}
}

type target struct {
	kind  domain.TargetKind
	user  domain.IdentityCode
	group domain.GroupCode
}

// key names the conversation; sends within one conversation are serialized
// from persist through fanout.
func (t target) key(sender domain.IdentityCode) string {
	if t.kind == domain.TargetGroup {
		return "group:" + string(t.group)
	}
	a, b := string(sender), string(t.user)
	if a > b {
		a, b = b, a
	}
	return "direct:" + a + "|" + b
}

func parseTarget(kindRaw, codeRaw string) (target, error) {
	switch domain.TargetKind(strings.ToUpper(strings.TrimSpace(kindRaw))) {
	case "", domain.TargetUser:
		code, err := domain.ParseIdentityCode(codeRaw)
		return target{kind: domain.TargetUser, user: code}, err
	case domain.TargetGroup:
		code, err := domain.ParseGroupCode(codeRaw)
		return target{kind: domain.TargetGroup, group: code}, err
	default:
		return target{}, fmt.Errorf("%w: unknown target kind %q", domain.ErrInvalidInput, kindRaw)
	}
}

// authorize checks the sender may address t.
func (p *Pipeline) authorize(ctx context.Context, sender domain.IdentityCode, t target) error {
	if t.kind == domain.TargetGroup {
		ok, err := p.store.GroupExists(ctx, t.group)
		if err != nil {
			return fmt.Errorf("lookup group: %w", err)
		}
		if !ok {
			return domain.ErrGroupNotFound
		}
		member, err := p.store.IsGroupMember(ctx, t.group, sender)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return domain.ErrNotGroupMember
		}
		return nil
	}

	ok, err := p.store.IdentityExists(ctx, t.user)
	if err != nil {
		return fmt.Errorf("lookup recipient: %w", err)
	}
	if !ok {
		return domain.ErrTargetNotFound
	}
	if t.user == sender {
		return domain.ErrSelfTarget
	}
	friends, err := p.store.AreFriends(ctx, sender, t.user)
	if err != nil {
		return fmt.Errorf("check friendship: %w", err)
	}
	if !friends {
		return domain.ErrNotFriends
	}
	return nil
}

// Send returns once the message is durable. Fanout is best effort and never
// fails the call.
func (p *Pipeline) Send(ctx context.Context, req SendRequest) (domain.ChatMessage, error) {
	if req.Sender == "" {
		return domain.ChatMessage{}, domain.ErrUnauthenticated
	}
	t, err := parseTarget(req.Kind, req.TargetCode)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if err := p.authorize(ctx, req.Sender, t); err != nil {
		return domain.ChatMessage{}, err
	}

	kind, err := domain.ParseMessageKind(req.MessageType)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	msg := domain.ChatMessage{
		ID:             uuid.NewString(),
		Sender:         req.Sender,
		RecipientUser:  t.user,
		RecipientGroup: t.group,
		Kind:           kind,
		Content:        req.Content,
		FileName:       req.FileName,
		FileData:       req.FileData,
	}
	if err := msg.Validate(); err != nil {
		return domain.ChatMessage{}, err
	}
	msg = msg.Normalize()

	unlock := p.locks.Lock(t.key(req.Sender))
	defer unlock()

	msg.CreatedAt = p.now().UTC().Truncate(time.Millisecond)
	if err := p.store.SaveMessage(ctx, msg); err != nil {
		log.Error().Err(err).Str("module", "messaging").Str("from", string(req.Sender)).Msg("persist failed")
		return domain.ChatMessage{}, fmt.Errorf("save message: %w", err)
	}

	p.notify(ctx, msg, t)

	ev := core.MessageNew{Message: msg}
	var res core.PublishResult
	if t.kind == domain.TargetGroup {
		res = p.rooms.Broadcast(domain.GroupRoom(t.group), ev, "")
	} else {
		res = p.rooms.Broadcast(domain.UserRoom(t.user), ev, "")
		res.Merge(p.rooms.Broadcast(domain.UserRoom(msg.Sender), ev, ""))
	}
	p.metrics.MessageSent(string(t.kind), string(kind))
	log.Debug().Str("module", "messaging").Str("msg_id", msg.ID).Str("from", string(msg.Sender)).
		Str("target", string(t.kind)).Int("sent_to", res.SendTo).Msg("message delivered")
	return msg, nil
}

func (p *Pipeline) notify(ctx context.Context, msg domain.ChatMessage, t target) {
	recipients := []domain.IdentityCode{t.user}
	text := fmt.Sprintf("New message from %s", msg.Sender)
	if t.kind == domain.TargetGroup {
		members, err := p.store.ListGroupMembers(ctx, t.group)
		if err != nil {
			log.Warn().Err(err).Str("module", "messaging").Str("group", string(t.group)).Msg("list members failed")
			return
		}
		recipients = recipients[:0]
		for _, m := range members {
			if m != msg.Sender {
				recipients = append(recipients, m)
			}
		}
		text = fmt.Sprintf("New message from %s in %s", msg.Sender, t.group)
	}
	for _, to := range recipients {
		err := p.store.CreateNotification(ctx, domain.Notification{
			ID:        uuid.NewString(),
			Recipient: to,
			Message:   text,
			CreatedAt: msg.CreatedAt,
		})
		if err != nil {
			log.Warn().Err(err).Str("module", "messaging").Str("user", string(to)).Msg("notification failed")
		}
	}
}

// List returns the latest messages of a conversation the caller belongs to,
// oldest first.
func (p *Pipeline) List(ctx context.Context, caller domain.IdentityCode, q ListQuery) ([]domain.ChatMessage, error) {
	if caller == "" {
		return nil, domain.ErrUnauthenticated
	}
	t, err := parseTarget(q.Kind, q.TargetCode)
	if err != nil {
		return nil, err
	}
	if err := p.authorize(ctx, caller, t); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var out []domain.ChatMessage
	if t.kind == domain.TargetGroup {
		out, err = p.store.ListGroupMessages(ctx, t.group, limit)
	} else {
		out, err = p.store.ListDirectMessages(ctx, caller, t.user, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if out == nil {
		out = []domain.ChatMessage{}
	}
	return out, nil
}
