// Package model defines the core domain types for radiolink.
package model

import (
	"fmt"
	"time"
)

// Role represents a user's permission level as reported by the backend.
type Role int

const (
	RoleOperator Role = iota // Can dial frequencies and talk
	RoleAdmin                // Staff: can also read the join log
)

func (r Role) String() string {
	switch r {
	case RoleOperator:
		return "operator"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOperator || r == RoleAdmin
}

// Permission represents a specific action that can be checked against a role.
type Permission int

const (
	PermTransmit Permission = iota
	PermViewJoinLogs
)

// Identity is the authenticated user's profile as returned by /api/auth/me.
type Identity struct {
	ID       FlexibleID `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email,omitempty"`
	IsAdmin  bool       `json:"is_admin,omitempty"`
}

// Role derives the role from the staff flag.
func (i *Identity) Role() Role {
	if i != nil && i.IsAdmin {
		return RoleAdmin
	}
	return RoleOperator
}

// JoinLog is one entry of the backend's room-join report.
type JoinLog struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Frequency float64   `json:"frequency"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Participant is another identity present in the same open session.
type Participant struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	HasAudio bool   `json:"has_audio"`
}

// DisplayName prefers the human name over the identity.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Identity
}

// FormatFrequency renders a frequency the way room names and logs show it.
func FormatFrequency(f float64) string {
	return fmt.Sprintf("%.2f MHz", f)
}
