//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../../mocks/mock_session_store.go -package=mocks
package calls

import (
	"context"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// SessionStore is the external store as seen by the coordinator.
type SessionStore interface {
	IdentityExists(ctx context.Context, code domain.IdentityCode) (bool, error)
	AreFriends(ctx context.Context, a, b domain.IdentityCode) (bool, error)
	CreateCallSession(ctx context.Context, c domain.CallSession) error
	GetCallSession(ctx context.Context, code domain.SessionCode) (domain.CallSession, error)
	// AdvanceCallSession must apply the transition atomically and only while
	// the stored status is one of t.From.
	AdvanceCallSession(ctx context.Context, t domain.CallTransition) (domain.CallSession, bool, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
}

type Broadcaster interface {
	Broadcast(room domain.RoomName, ev core.Event, exclude core.ConnID) core.PublishResult
}

type Presence interface {
	ConnectionCount(identity domain.IdentityCode) int
}
