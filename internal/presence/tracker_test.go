package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixedTracker(forget bool) *Tracker {
	tr := NewTracker(forget)
	tr.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC) }
	return tr
}

func games(events []StartEvent) []string {
	var out []string
	for _, e := range events {
		out = append(out, e.Game)
	}
	return out
}

func TestObserveTransitions(t *testing.T) {
	tr := newFixedTracker(false)
	alice := Member{UserID: "1", DisplayName: "alice"}

	var all []StartEvent
	for _, game := range []string{"", "A", "A", "B", ""} {
		m := alice
		m.Game = game
		all = append(all, tr.Observe([]Member{m})...)
	}

	assert.Equal(t, []string{"A", "B"}, games(all))
	_, tracked := tr.Playing("1")
	assert.False(t, tracked)
}

func TestObserveEventCarriesMember(t *testing.T) {
	tr := newFixedTracker(false)
	m := Member{UserID: "1", DisplayName: "alice", AvatarURL: "https://cdn/a.png", Game: "Chess"}

	events := tr.Observe([]Member{m})
	require.Len(t, events, 1)
	assert.Equal(t, m, events[0].Member)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC), events[0].StartedAt)
}

func TestObserveRestartAfterStop(t *testing.T) {
	tr := newFixedTracker(false)

	assert.Len(t, tr.Observe([]Member{{UserID: "1", Game: "A"}}), 1)
	assert.Empty(t, tr.Observe([]Member{{UserID: "1"}}))
	assert.Len(t, tr.Observe([]Member{{UserID: "1", Game: "A"}}), 1)
}

func TestObserveSkipsBots(t *testing.T) {
	tr := newFixedTracker(false)

	events := tr.Observe([]Member{{UserID: "1", Bot: true, Game: "A"}})
	assert.Empty(t, events)
	assert.Equal(t, 0, tr.Len())
}

func TestObserveMultipleMembers(t *testing.T) {
	tr := newFixedTracker(false)

	events := tr.Observe([]Member{
		{UserID: "1", Game: "Chess"},
		{UserID: "2", Game: "Chess"},
		{UserID: "3"},
	})
	assert.Equal(t, []string{"Chess", "Chess"}, games(events))
	assert.Equal(t, 2, tr.Len())
}

func TestObserveUnobservedKeepsStateByDefault(t *testing.T) {
	tr := newFixedTracker(false)

	tr.Observe([]Member{{UserID: "1", Game: "A"}})
	assert.Empty(t, tr.Observe(nil))

	game, tracked := tr.Playing("1")
	assert.True(t, tracked)
	assert.Equal(t, "A", game)

	// reappearing in the same game is not a new start
	assert.Empty(t, tr.Observe([]Member{{UserID: "1", Game: "A"}}))
}

func TestObserveForgetUnobserved(t *testing.T) {
	tr := newFixedTracker(true)

	tr.Observe([]Member{{UserID: "1", Game: "A"}, {UserID: "2", Game: "B"}})
	tr.Observe([]Member{{UserID: "2", Game: "B"}})

	_, tracked := tr.Playing("1")
	assert.False(t, tracked)
	assert.Equal(t, 1, tr.Len())

	events := tr.Observe([]Member{{UserID: "1", Game: "A"}, {UserID: "2", Game: "B"}})
	assert.Equal(t, []string{"A"}, games(events))
}
