package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the relay operations wraps one of them.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

var (
	ErrNotFriends      = fmt.Errorf("%w: not friends", ErrForbidden)
	ErrNotParticipant  = fmt.Errorf("%w: not a participant of this call", ErrForbidden)
	ErrNotRecipient    = fmt.Errorf("%w: only the recipient can answer", ErrForbidden)
	ErrNotInitiator    = fmt.Errorf("%w: only the initiator can send the offer", ErrForbidden)
	ErrNotGroupMember  = fmt.Errorf("%w: not a group member", ErrForbidden)
	ErrSelfTarget      = fmt.Errorf("%w: cannot target yourself", ErrConflict)
	ErrCallEnded       = fmt.Errorf("%w: call already ended", ErrConflict)
	ErrCallNotRinging  = fmt.Errorf("%w: call is no longer ringing", ErrConflict)
	ErrTargetNotFound  = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrGroupNotFound   = fmt.Errorf("%w: group not found", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("%w: session not found", ErrNotFound)
	ErrInvalidMessage  = fmt.Errorf("%w: invalid message", ErrInvalidInput)
	ErrInvalidSignal   = fmt.Errorf("%w: invalid signal", ErrInvalidInput)
)

// KindOf returns the taxonomy kind err wraps, or nil for errors outside it.
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidInput, ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
