package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player is a known puzzle player, either a guest or a registered account
type Player struct {
	ID          PlayerID
	DisplayName string
	IsGuest     bool // true for unregistered players
	CreatedAt   time.Time
}

// OwnerID returns the session owner identity for this player
func (p *Player) OwnerID() OwnerID {
	return OwnerID(p.ID)
}

// RegisteredPlayer extends Player with authentication data
// Stored separately so password hashes never travel with auth tokens
type RegisteredPlayer struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
