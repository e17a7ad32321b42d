package orch

import (
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/calls"
	"github.com/dkeye/Relay/internal/app/messaging"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the single entry point the transports talk to.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Calls    *calls.Coordinator
	Messages *messaging.Pipeline

	now func() time.Time
}

// New wires call teardown into the registry cleanup path.
func New(reg *app.Registry, rooms *app.RoomManager, coord *calls.Coordinator, pipe *messaging.Pipeline) *Orchestrator {
	reg.OnTeardown(coord.OnConnectionClosed)
	return &Orchestrator{Registry: reg, Rooms: rooms, Calls: coord, Messages: pipe, now: time.Now}
}

func (o *Orchestrator) identityOf(id core.ConnID) (domain.IdentityCode, bool) {
	identity, _, ok := o.Registry.Lookup(id)
	return identity, ok
}

// NotifyFriendsUpdated tells both sides of a friendship mutation to refresh.
func (o *Orchestrator) NotifyFriendsUpdated(codes ...domain.IdentityCode) int {
	sent := 0
	for _, code := range codes {
		sent += o.Rooms.Broadcast(domain.UserRoom(code), core.FriendsUpdated{}, "").SendTo
	}
	return sent
}

func (o *Orchestrator) NotifyGroupMemberJoined(group domain.GroupCode, member core.GroupMember) int {
	res := o.Rooms.Broadcast(domain.GroupRoom(group), core.GroupMemberJoined{GroupCode: group, Member: member}, "")
	log.Info().Str("module", "orch").Str("group", string(group)).Str("member", string(member.UserCode)).Int("sent_to", res.SendTo).Msg("member joined")
	return res.SendTo
}

// Shutdown closes every connection through the regular cleanup path.
func (o *Orchestrator) Shutdown() {
	n := o.Registry.Len()
	o.Registry.CloseAll()
	log.Info().Str("module", "orch").Int("closed", n).Msg("relay shut down")
}
