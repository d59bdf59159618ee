package storage

import (
	"strconv"
	"strings"
	"time"
)

// Game represents a game users can register interest in
type Game struct {
	ID        int64
	Name      string
	ImageURL  string // empty when no image was provided
	CreatedAt time.Time
}

// Alias is an alternate name that resolves to a Game
type Alias struct {
	ID     int64
	GameID int64
	Alias  string
}

// Registration links a Discord user to a game
type Registration struct {
	ID           int64
	UserID       string
	GameID       int64
	RegisteredAt time.Time
}

// GameCount is the number of registrations held by a game
type GameCount struct {
	GameID int64
	Name   string
	Count  int
}

// ConfigValue is a raw value from the config table
type ConfigValue string

// Int64 returns the value as an integer when it is made of digits only
func (v ConfigValue) Int64() (int64, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String returns the raw value
func (v ConfigValue) String() string {
	return string(v)
}

// RSVPStatus is a member's answer to an event
type RSVPStatus string

const (
	RSVPAttending RSVPStatus = "attending"
	RSVPDeclined  RSVPStatus = "declined"
	RSVPMaybe     RSVPStatus = "maybe"
	RSVPPending   RSVPStatus = "pending"
)

// Valid reports whether s is one of the known statuses
func (s RSVPStatus) Valid() bool {
	switch s {
	case RSVPAttending, RSVPDeclined, RSVPMaybe, RSVPPending:
		return true
	}
	return false
}

// Event is a community game event
type Event struct {
	ID          int64
	Title       string
	Description string
	CreatorID   string
	StartTime   *time.Time
	CreatedAt   time.Time
}

// RSVP is a member's response to an event
type RSVP struct {
	EventID   int64
	UserID    string
	Status    RSVPStatus
	UpdatedAt time.Time
}
