//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../../mocks/mock_message_store.go -package=mocks
package messaging

import (
	"context"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// MessageStore is the external store as seen by the pipeline.
type MessageStore interface {
	IdentityExists(ctx context.Context, code domain.IdentityCode) (bool, error)
	AreFriends(ctx context.Context, a, b domain.IdentityCode) (bool, error)
	GroupExists(ctx context.Context, code domain.GroupCode) (bool, error)
	IsGroupMember(ctx context.Context, group domain.GroupCode, user domain.IdentityCode) (bool, error)
	ListGroupMembers(ctx context.Context, group domain.GroupCode) ([]domain.IdentityCode, error)
	SaveMessage(ctx context.Context, m domain.ChatMessage) error
	ListDirectMessages(ctx context.Context, a, b domain.IdentityCode, limit int) ([]domain.ChatMessage, error)
	ListGroupMessages(ctx context.Context, group domain.GroupCode, limit int) ([]domain.ChatMessage, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
}

type Broadcaster interface {
	Broadcast(room domain.RoomName, ev core.Event, exclude core.ConnID) core.PublishResult
}
