// Package presence turns periodic presence snapshots into game start events.
package presence

import (
	"time"
)

// Member is one guild member as seen in a presence snapshot
type Member struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Bot         bool
	Game        string // empty when the member is not playing
}

// StartEvent is emitted when a member starts playing a game
type StartEvent struct {
	Member    Member
	Game      string
	StartedAt time.Time
}

// Tracker remembers the last game seen for each member. It is not safe for
// concurrent use; the poller is its only caller.
type Tracker struct {
	playing map[string]string

	// ForgetUnobserved drops members missing from a snapshot, so they are
	// announced again when they reappear playing the same game
	ForgetUnobserved bool

	now func() time.Time
}

// NewTracker creates an empty tracker
func NewTracker(forgetUnobserved bool) *Tracker {
	return &Tracker{
		playing:          make(map[string]string),
		ForgetUnobserved: forgetUnobserved,
		now:              time.Now,
	}
}

// Observe diffs a snapshot against the tracked state and returns the start
// events it contains. Stopping produces no event; switching games produces
// one event for the new game.
func (t *Tracker) Observe(members []Member) []StartEvent {
	var events []StartEvent
	seen := make(map[string]bool, len(members))
	now := t.now()

	for _, m := range members {
		if m.Bot || m.UserID == "" {
			continue
		}
		seen[m.UserID] = true

		last, tracked := t.playing[m.UserID]
		if m.Game == "" {
			if tracked {
				delete(t.playing, m.UserID)
			}
			continue
		}
		if tracked && last == m.Game {
			continue
		}

		t.playing[m.UserID] = m.Game
		events = append(events, StartEvent{Member: m, Game: m.Game, StartedAt: now})
	}

	if t.ForgetUnobserved {
		for userID := range t.playing {
			if !seen[userID] {
				delete(t.playing, userID)
			}
		}
	}

	return events
}

// Playing returns the game tracked for userID
func (t *Tracker) Playing(userID string) (string, bool) {
	game, ok := t.playing[userID]
	return game, ok
}

// Len returns the number of members tracked as playing
func (t *Tracker) Len() int {
	return len(t.playing)
}
