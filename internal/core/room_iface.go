package core

import "github.com/dkeye/Relay/internal/domain"

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []Conn
}

func (r *PublishResult) Merge(other PublishResult) {
	r.SendTo += other.SendTo
	r.Dropped = append(r.Dropped, other.Dropped...)
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}
