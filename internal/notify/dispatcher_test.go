package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eufr4sio/minas-discord-bot/internal/artwork"
	"github.com/eufr4sio/minas-discord-bot/internal/game"
	"github.com/eufr4sio/minas-discord-bot/internal/presence"
	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

type fakeRegistrants map[string][]string

func (f fakeRegistrants) ListForGame(ctx context.Context, name string) ([]string, error) {
	if name == "explode" {
		return nil, errors.New("db closed")
	}
	return f[name], nil
}

type fakeGames map[string]string // name -> stored image

func (f fakeGames) Lookup(ctx context.Context, name string) (*game.Entry, error) {
	img, ok := f[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &game.Entry{Game: &storage.Game{Name: name, ImageURL: img}}, nil
}

type fakeConfig map[string]string

func (f fakeConfig) GetConfig(ctx context.Context, key string) (storage.ConfigValue, error) {
	v, ok := f[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return storage.ConfigValue(v), nil
}

type sent struct {
	channel string
	n       Notification
}

type fakeSender struct {
	channels map[string]bool
	resolves int
	sent     []sent
	sendErr  error
}

func (f *fakeSender) ResolveChannel(ctx context.Context, channelID string) error {
	f.resolves++
	if !f.channels[channelID] {
		return errors.New("unknown channel")
	}
	return nil
}

func (f *fakeSender) Send(ctx context.Context, channelID string, n Notification) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{channel: channelID, n: n})
	return nil
}

func startEvent(userID, name, gameName string) presence.StartEvent {
	return presence.StartEvent{
		Member:    presence.Member{UserID: userID, DisplayName: name, AvatarURL: "https://cdn/" + userID + ".png", Game: gameName},
		Game:      gameName,
		StartedAt: time.Date(2026, 3, 4, 20, 15, 0, 0, time.UTC),
	}
}

func newTestDispatcher(regs fakeRegistrants, sender *fakeSender, opts Options) *Dispatcher {
	if opts.DefaultChannel == "" {
		opts.DefaultChannel = "100"
	}
	return NewDispatcher(regs, fakeGames{"Chess": ""}, fakeConfig{}, sender, opts)
}

func TestDispatchChessScenario(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}}
	d := newTestDispatcher(fakeRegistrants{"Chess": {"u1", "u2"}}, sender, Options{})

	ok := d.Dispatch(context.Background(), startEvent("u3", "carol", "Chess"))
	require.True(t, ok)
	require.Len(t, sender.sent, 1)

	got := sender.sent[0]
	assert.Equal(t, "100", got.channel)
	assert.Equal(t, "Chess", got.n.Game)
	assert.Equal(t, "u3", got.n.PlayerID)
	assert.Equal(t, "carol", got.n.PlayerName)
	assert.Equal(t, "https://cdn/u3.png", got.n.AvatarURL)
	assert.Equal(t, []string{"u1", "u2"}, got.n.Pings)
	assert.NotContains(t, got.n.Pings, "u3")
}

func TestDispatchSelfExclusion(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}}
	d := newTestDispatcher(fakeRegistrants{"Chess": {"u1"}}, sender, Options{})

	assert.False(t, d.Dispatch(context.Background(), startEvent("u1", "alice", "Chess")))
	assert.Empty(t, sender.sent)
}

func TestDispatchPlayerNeverPinged(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}}
	d := newTestDispatcher(fakeRegistrants{"Chess": {"u1", "u2", "u1", "u2"}}, sender, Options{})

	require.True(t, d.Dispatch(context.Background(), startEvent("u1", "alice", "Chess")))
	assert.Equal(t, []string{"u2"}, sender.sent[0].n.Pings)
}

func TestDispatchNoRegistrantsSkipsChannelLookup(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}}
	d := newTestDispatcher(fakeRegistrants{}, sender, Options{})

	assert.False(t, d.Dispatch(context.Background(), startEvent("u1", "alice", "Chess")))
	assert.Equal(t, 0, sender.resolves)
	assert.Empty(t, sender.sent)
}

func TestDispatchLookupFailureDrops(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}}
	d := newTestDispatcher(fakeRegistrants{}, sender, Options{})

	assert.False(t, d.Dispatch(context.Background(), startEvent("u1", "alice", "explode")))
	assert.Empty(t, sender.sent)
}

func TestDispatchAlertChannelResolution(t *testing.T) {
	tests := []struct {
		name        string
		stored      map[string]string
		def         string
		wantChannel string
	}{
		{"config store overrides default", map[string]string{ConfigKeyAlertChannel: "200"}, "100", "200"},
		{"default when unset", nil, "100", "100"},
		{"non-numeric falls back", map[string]string{ConfigKeyAlertChannel: "general"}, "100", "100"},
		{"zero falls back", map[string]string{ConfigKeyAlertChannel: "0"}, "100", "100"},
		{"nothing configured", nil, "", ""},
		{"bad default", nil, "abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{channels: map[string]bool{"100": true, "200": true}}
			d := NewDispatcher(fakeRegistrants{"Chess": {"u1"}}, fakeGames{}, fakeConfig(tt.stored), sender,
				Options{DefaultChannel: tt.def})

			ok := d.Dispatch(context.Background(), startEvent("u9", "ivan", "Chess"))
			if tt.wantChannel == "" {
				assert.False(t, ok)
				assert.Equal(t, 0, sender.resolves)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantChannel, sender.sent[0].channel)
		})
	}
}

func TestDispatchUnresolvableChannel(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{}}
	d := newTestDispatcher(fakeRegistrants{"Chess": {"u1"}}, sender, Options{})

	assert.False(t, d.Dispatch(context.Background(), startEvent("u2", "bob", "Chess")))
	assert.Equal(t, 1, sender.resolves)
	assert.Empty(t, sender.sent)
}

func TestDispatchSendFailure(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}, sendErr: errors.New("discord down")}
	d := newTestDispatcher(fakeRegistrants{"Chess": {"u1"}}, sender, Options{})

	assert.False(t, d.Dispatch(context.Background(), startEvent("u2", "bob", "Chess")))
}

func TestDispatchImageFailureIgnored(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}}
	failing := artwork.FinderFunc(func(ctx context.Context, name string) (string, error) {
		return "", artwork.ErrUnavailable
	})
	d := newTestDispatcher(fakeRegistrants{"Chess": {"u1"}}, sender, Options{Images: failing})

	require.True(t, d.Dispatch(context.Background(), startEvent("u2", "bob", "Chess")))
	assert.Empty(t, sender.sent[0].n.ImageURL)
}

func TestDispatchImageFromFinder(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}}
	finder := artwork.FinderFunc(func(ctx context.Context, name string) (string, error) {
		return "https://img/" + name + ".jpg", nil
	})
	d := newTestDispatcher(fakeRegistrants{"Chess": {"u1"}}, sender, Options{Images: finder})

	require.True(t, d.Dispatch(context.Background(), startEvent("u2", "bob", "Chess")))
	assert.Equal(t, "https://img/Chess.jpg", sender.sent[0].n.ImageURL)
}

func TestDispatchPrefersStoredImage(t *testing.T) {
	sender := &fakeSender{channels: map[string]bool{"100": true}}
	finder := artwork.FinderFunc(func(ctx context.Context, name string) (string, error) {
		t.Fatal("finder should not be called when an image is stored")
		return "", nil
	})
	d := NewDispatcher(fakeRegistrants{"Chess": {"u1"}}, fakeGames{"Chess": "https://stored/chess.png"},
		fakeConfig{}, sender, Options{DefaultChannel: "100", Images: finder})

	require.True(t, d.Dispatch(context.Background(), startEvent("u2", "bob", "Chess")))
	assert.Equal(t, "https://stored/chess.png", sender.sent[0].n.ImageURL)
}

func TestPingList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, PingList([]string{"b", "p", "a", "b", ""}, "p"))
	assert.Empty(t, PingList([]string{"p", "p"}, "p"))
	assert.Empty(t, PingList(nil, "p"))
}
