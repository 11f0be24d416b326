package domain

import (
	"strings"

	"github.com/google/uuid"
)

type ConnectionID string
type UserID string
type CallID string
type MeetingID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New().String())
}

// NewCallID returns a short random id, the same length the browser client generates.
func NewCallID() CallID {
	return CallID(shortID(8))
}

// NewExternalUserID builds the attendee id handed to the conferencing provider.
func NewExternalUserID(role Role) string {
	return string(role) + "-" + shortID(13)
}

func shortID(n int) string {
	s := strings.ReplaceAll(uuid.New().String(), "-", "")
	return s[:n]
}

func (id ConnectionID) String() string {
	return string(id)
}

func (id UserID) String() string {
	return string(id)
}

func (id CallID) String() string {
	return string(id)
}

func (id MeetingID) String() string {
	return string(id)
}
