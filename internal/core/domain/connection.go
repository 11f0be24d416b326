package domain

import (
	"errors"
	"time"
)

type Role string

const (
	RoleNone     Role = ""
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

var ErrInvalidRole = errors.New("role must be agent or customer")

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return RoleNone, ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	return r == RoleAgent || r == RoleCustomer
}

// Connection is one live signaling session. Role and UserID stay empty until
// the client sends register.
type Connection struct {
	ID       ConnectionID `json:"id"`
	Role     Role         `json:"role,omitempty"`
	UserID   UserID       `json:"userId,omitempty"`
	JoinedAt time.Time    `json:"joinedAt"`
}

func NewConnection(id ConnectionID, now time.Time) *Connection {
	return &Connection{
		ID:       id,
		JoinedAt: now,
	}
}
