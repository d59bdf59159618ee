// Package notify turns game start events into channel notifications.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/eufr4sio/minas-discord-bot/internal/artwork"
	"github.com/eufr4sio/minas-discord-bot/internal/game"
	"github.com/eufr4sio/minas-discord-bot/internal/metrics"
	"github.com/eufr4sio/minas-discord-bot/internal/presence"
	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

// ConfigKeyAlertChannel is the Config Store key holding the alert channel ID
const ConfigKeyAlertChannel = "ALERT_CHANNEL_ID"

// Notification is everything a Sender needs to announce a game start
type Notification struct {
	Game       string
	PlayerID   string
	PlayerName string
	AvatarURL  string
	StartedAt  time.Time
	Pings      []string // user IDs, never including PlayerID
	ImageURL   string   // empty when no image was found
}

// Registrants lists the users registered for a game
type Registrants interface {
	ListForGame(ctx context.Context, nameOrAlias string) ([]string, error)
}

// Games resolves a game name to its stored record
type Games interface {
	Lookup(ctx context.Context, nameOrAlias string) (*game.Entry, error)
}

// ConfigReader reads runtime settings
type ConfigReader interface {
	GetConfig(ctx context.Context, key string) (storage.ConfigValue, error)
}

// Sender delivers notifications to a chat channel
type Sender interface {
	// ResolveChannel returns an error when channelID is not a usable channel
	ResolveChannel(ctx context.Context, channelID string) error
	Send(ctx context.Context, channelID string, n Notification) error
}

// Dispatcher sends at most one notification per start event. Failures are
// logged and the event dropped; nothing is retried.
type Dispatcher struct {
	registrants    Registrants
	games          Games
	config         ConfigReader
	sender         Sender
	images         artwork.Finder
	defaultChannel string
	metrics        *metrics.Metrics
}

// Options holds the optional collaborators of a Dispatcher
type Options struct {
	// Images enriches notifications when the game has no stored image
	Images artwork.Finder
	// DefaultChannel is used when the Config Store has no alert channel
	DefaultChannel string
	Metrics        *metrics.Metrics
}

// NewDispatcher creates a dispatcher
func NewDispatcher(registrants Registrants, games Games, config ConfigReader, sender Sender, opts Options) *Dispatcher {
	return &Dispatcher{
		registrants:    registrants,
		games:          games,
		config:         config,
		sender:         sender,
		images:         opts.Images,
		defaultChannel: opts.DefaultChannel,
		metrics:        opts.Metrics,
	}
}

// Dispatch handles one start event and reports whether a notification was sent
func (d *Dispatcher) Dispatch(ctx context.Context, ev presence.StartEvent) bool {
	log := slog.With("game", ev.Game, "player", ev.Member.UserID)

	users, err := d.registrants.ListForGame(ctx, ev.Game)
	if err != nil {
		log.Error("Failed to look up registrants", "error", err)
		d.metrics.NotificationDropped(metrics.DropLookupFailed)
		return false
	}
	if len(users) == 0 {
		log.Debug("No registrants for game")
		d.metrics.NotificationDropped(metrics.DropNoRegistrants)
		return false
	}

	pings := PingList(users, ev.Member.UserID)
	if len(pings) == 0 {
		log.Debug("Only the player is registered for game")
		d.metrics.NotificationDropped(metrics.DropOnlySelf)
		return false
	}

	channelID := d.alertChannel(ctx)
	if channelID == "" {
		log.Warn("No alert channel configured, dropping notification")
		d.metrics.NotificationDropped(metrics.DropNoChannel)
		return false
	}
	if err := d.sender.ResolveChannel(ctx, channelID); err != nil {
		log.Warn("Alert channel not found, dropping notification", "channel", channelID, "error", err)
		d.metrics.NotificationDropped(metrics.DropNoChannel)
		return false
	}

	n := Notification{
		Game:       ev.Game,
		PlayerID:   ev.Member.UserID,
		PlayerName: ev.Member.DisplayName,
		AvatarURL:  ev.Member.AvatarURL,
		StartedAt:  ev.StartedAt,
		Pings:      pings,
		ImageURL:   d.image(ctx, ev.Game),
	}

	if err := d.sender.Send(ctx, channelID, n); err != nil {
		log.Error("Failed to send notification", "channel", channelID, "error", err)
		d.metrics.NotificationDropped(metrics.DropSendFailed)
		return false
	}

	log.Info("Sent game notification", "channel", channelID, "pings", len(pings))
	d.metrics.NotificationSent()
	return true
}

// alertChannel returns the runtime alert channel, falling back to the startup
// default. Values that are not positive numeric IDs count as unconfigured.
func (d *Dispatcher) alertChannel(ctx context.Context) string {
	value, err := d.config.GetConfig(ctx, ConfigKeyAlertChannel)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("Failed to read alert channel setting", "error", err)
	}
	if err == nil {
		if id, ok := value.Int64(); ok && id > 0 {
			return value.String()
		}
	}

	if id, ok := storage.ConfigValue(d.defaultChannel).Int64(); ok && id > 0 {
		return d.defaultChannel
	}
	return ""
}

// image prefers the game's stored image and falls back to the finder
func (d *Dispatcher) image(ctx context.Context, name string) string {
	if entry, err := d.games.Lookup(ctx, name); err == nil && entry.Game.ImageURL != "" {
		d.metrics.ImageLookup(metrics.ImageStored)
		return entry.Game.ImageURL
	}
	if d.images == nil {
		d.metrics.ImageLookup(metrics.ImageUnavailable)
		return ""
	}

	url, err := d.images.FindImage(ctx, name)
	if err != nil || url == "" {
		slog.Debug("No image for game", "game", name, "error", err)
		d.metrics.ImageLookup(metrics.ImageUnavailable)
		return ""
	}
	d.metrics.ImageLookup(metrics.ImageFound)
	return url
}

// PingList removes duplicates and the player from users, sorted for stable output
func PingList(users []string, playerID string) []string {
	seen := make(map[string]bool, len(users))
	pings := make([]string, 0, len(users))
	for _, u := range users {
		if u == "" || u == playerID || seen[u] {
			continue
		}
		seen[u] = true
		pings = append(pings, u)
	}
	sort.Strings(pings)
	return pings
}
