// Package domain contains the relay entities: identities, rooms, call sessions and chat messages.
package domain

import (
	"fmt"
	"strings"
)

const (
	MaxCodeLen = 64

	userRoomPrefix  = "user:"
	groupRoomPrefix = "group:"
)

// IdentityCode names a person for addressing purposes. Opaque to the relay.
type IdentityCode string

// GroupCode names a group.
type GroupCode string

type RoomName string

func UserRoom(code IdentityCode) RoomName { return RoomName(userRoomPrefix + string(code)) }

func GroupRoom(code GroupCode) RoomName { return RoomName(groupRoomPrefix + string(code)) }

func (r RoomName) IsUserRoom() bool  { return strings.HasPrefix(string(r), userRoomPrefix) }
func (r RoomName) IsGroupRoom() bool { return strings.HasPrefix(string(r), groupRoomPrefix) }

// ParseIdentityCode trims and bounds a client supplied code.
func ParseIdentityCode(raw string) (IdentityCode, error) {
	code, err := parseCode(raw)
	return IdentityCode(code), err
}

func ParseGroupCode(raw string) (GroupCode, error) {
	code, err := parseCode(raw)
	return GroupCode(code), err
}

func parseCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if len(code) > MaxCodeLen {
		return "", fmt.Errorf("%w: code too long", ErrInvalidInput)
	}
	return code, nil
}
