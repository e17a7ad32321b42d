package orch

import (
	"fmt"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect admits conn for identity and joins it to the identity room.
func (o *Orchestrator) Connect(identity domain.IdentityCode, conn core.Conn) error {
	if err := o.Registry.Register(identity, conn); err != nil {
		return err
	}
	if err := o.Rooms.Join(conn.ID(), domain.UserRoom(identity)); err != nil {
		o.Registry.Unregister(conn.ID())
		return err
	}
	o.Registry.Deliver([]core.Conn{conn}, core.Ready{UserCode: identity, ConnID: conn.ID()})
	return nil
}

// Disconnect is the cleanup path for a connection that went away.
func (o *Orchestrator) Disconnect(id core.ConnID) {
	o.Registry.Unregister(id)
}

// Logout tears down every live connection of identity.
func (o *Orchestrator) Logout(identity domain.IdentityCode) int {
	conns := o.Registry.ConnectionsOf(identity)
	for _, c := range conns {
		o.Registry.Kick(c)
	}
	log.Info().Str("module", "orch").Str("user", string(identity)).Int("closed", len(conns)).Msg("logged out")
	return len(conns)
}

func (o *Orchestrator) JoinGroup(id core.ConnID, group domain.GroupCode) error {
	if group == "" {
		return fmt.Errorf("%w: group code is required", domain.ErrInvalidInput)
	}
	return o.Rooms.Join(id, domain.GroupRoom(group))
}

func (o *Orchestrator) LeaveGroup(id core.ConnID, group domain.GroupCode) {
	o.Rooms.Leave(id, domain.GroupRoom(group))
}

// Typing relays a typing indicator to a user, or to a group without echo.
func (o *Orchestrator) Typing(id core.ConnID, target domain.IdentityCode, group domain.GroupCode) error {
	from, ok := o.identityOf(id)
	if !ok {
		return domain.ErrUnauthenticated
	}
	ev := core.NewTyping(from, group, o.now())
	switch {
	case group != "":
		if !o.Rooms.IsMember(id, domain.GroupRoom(group)) {
			return domain.ErrNotGroupMember
		}
		o.Rooms.Broadcast(domain.GroupRoom(group), ev, id)
	case target != "":
		if target == from {
			return domain.ErrSelfTarget
		}
		o.Rooms.Broadcast(domain.UserRoom(target), ev, "")
	default:
		return fmt.Errorf("%w: typing target is required", domain.ErrInvalidInput)
	}
	return nil
}
