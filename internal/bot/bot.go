package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eufr4sio/minas-discord-bot/internal/artwork"
	"github.com/eufr4sio/minas-discord-bot/internal/config"
	"github.com/eufr4sio/minas-discord-bot/internal/game"
	"github.com/eufr4sio/minas-discord-bot/internal/metrics"
	"github.com/eufr4sio/minas-discord-bot/internal/notify"
	"github.com/eufr4sio/minas-discord-bot/internal/poller"
	"github.com/eufr4sio/minas-discord-bot/internal/presence"
	"github.com/eufr4sio/minas-discord-bot/internal/steam"
	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

// Bot represents the Discord bot instance
type Bot struct {
	config        *config.Config
	session       *discordgo.Session
	repo          *storage.Repository
	registry      *game.Registry
	registrations *game.Registrations
	images        *artwork.Cache
	poller        *poller.Poller
	confirms      *confirmations
	commands      []*discordgo.ApplicationCommand
	startedAt     time.Time
}

// New creates a new Bot instance. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Presence polling needs the privileged member and presence intents
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMessages
	session.State.TrackMembers = true
	session.State.TrackPresences = true

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := game.NewRegistry(repo)
	registrations := game.NewRegistrations(repo, registry, cfg.AutoProvisionGames)

	// Artwork: Steam first, then IGDB when credentials are configured
	finders := []artwork.Finder{steam.NewClient(cfg.SteamStoreURL)}
	if cfg.IGDBEnabled() {
		finders = append(finders, artwork.NewIGDB(cfg.IGDBClientID, cfg.IGDBAccessToken))
	}
	images := artwork.NewCache(artwork.NewChain(cfg.ImageLookupTimeout, finders...), cfg.ImageCacheTTL)

	b := &Bot{
		config:        cfg,
		session:       session,
		repo:          repo,
		registry:      registry,
		registrations: registrations,
		images:        images,
		confirms:      newConfirmations(confirmTTL),
	}

	dispatcher := notify.NewDispatcher(registrations, registry, repo, &channelSender{session: session}, notify.Options{
		Images:         images,
		DefaultChannel: cfg.AlertChannelID,
		Metrics:        m,
	})
	tracker := presence.NewTracker(cfg.ForgetUnobserved)
	source := &memberSource{session: session, guildID: cfg.GuildID}
	b.poller = poller.New(source, tracker, dispatcher, m, cfg.PollingInterval())

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.startedAt = time.Now()

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.images.StartJanitor(ctx, time.Hour)
	b.confirms.StartJanitor(ctx, time.Minute)

	// Start the presence poller
	b.poller.Start(ctx)

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop the poller
	if b.poller != nil {
		b.poller.Stop()
	}

	// Close storage
	if b.repo != nil {
		if err := b.repo.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
	b.session.AddHandler(b.handleGuildCreate)
}

// handleGuildCreate asks for the full member list with presences, since the
// gateway only sends a partial list for large guilds
func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.config.GuildID != "" && g.ID != b.config.GuildID {
		return
	}
	if err := s.RequestGuildMembers(g.ID, "", 0, "", true); err != nil {
		slog.Error("Failed to request guild members", "guild", g.ID, "error", err)
		return
	}
	slog.Info("Requested guild members", "guild", g.Name, "members", g.MemberCount)
}

// handleInteraction routes every interaction type
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Interaction handler panicked", "panic", r)
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	case discordgo.InteractionModalSubmit:
		b.handleModal(s, i)
	}
}

// handleCommand dispatches slash commands
func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	switch data.Name {
	case "game":
		b.handleGameCommand(s, i)
	case "admin":
		if !isAdmin(i) {
			respondEphemeral(s, i, "❌ You need the Administrator permission to use this command.")
			return
		}
		b.handleAdminCommand(s, i)
	case "event":
		b.handleEventCommand(s, i)
	case "ping":
		b.handlePing(s, i)
	case "info":
		b.handleInfo(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}

// requestContext bounds the storage work of one interaction
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
