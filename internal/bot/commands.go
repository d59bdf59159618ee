package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eufr4sio/minas-discord-bot/internal/game"
	"github.com/eufr4sio/minas-discord-bot/internal/notify"
	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

// maxChoices is Discord's limit for autocomplete choices and select options
const maxChoices = 25

var adminPermission int64 = discordgo.PermissionAdministrator

func gameOption(description string, autocomplete bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         "game",
		Description:  description,
		Required:     true,
		Autocomplete: autocomplete,
	}
}

// Slash command definitions
func commandDefinitions() []*discordgo.ApplicationCommand {
	dmPermission := false

	return []*discordgo.ApplicationCommand{
		{
			Name:         "game",
			Description:  "Game notification commands",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "register",
					Description: "Get pinged when someone starts playing a game",
					Options:     []*discordgo.ApplicationCommandOption{gameOption("Game name or alias", true)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "unregister",
					Description: "Stop notifications for a game",
					Options:     []*discordgo.ApplicationCommandOption{gameOption("Game name or alias", true)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List the games you are registered for",
				},
			},
		},
		{
			Name:                     "admin",
			Description:              "Bot administration commands",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "listregistrations",
					Description: "List all users registered for a game",
					Options:     []*discordgo.ApplicationCommandOption{gameOption("Game name or alias", true)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "removeuser",
					Description: "Remove a user's registration for a game",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        "user",
							Description: "The user to remove",
							Required:    true,
						},
						gameOption("Game name or alias", true),
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "addgame",
					Description: "Add a game to the list",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Canonical game name, e.g. Battlefield 6",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "image_url",
							Description: "Image shown in notifications",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "aliases",
							Description: "Comma-separated aliases, e.g. BF6, BF",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "addalias",
					Description: "Add aliases to an existing game",
					Options: []*discordgo.ApplicationCommandOption{
						gameOption("Game name or alias", true),
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "aliases",
							Description: "Comma-separated aliases",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "deletegame",
					Description: "Delete a game and all its registrations",
					Options:     []*discordgo.ApplicationCommandOption{gameOption("Game name or alias", true)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "setchannel",
					Description: "Set the channel for game notifications",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "The channel to send notifications to",
							Required:     true,
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "controlpanel",
					Description: "Post the admin control panel in the control channel, or here",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "userpanel",
					Description: "Post the shared registration panel in this channel",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "stats",
					Description: "Show registration counts per game",
				},
			},
		},
		eventCommandDefinition(dmPermission),
		{
			Name:        "ping",
			Description: "Check that the bot is alive",
		},
		{
			Name:        "info",
			Description: "Show what this bot does",
		},
	}
}

// registerCommands registers all slash commands with Discord, scoped to
// the configured guild when there is one
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands", "guild", b.config.GuildID)

	registered, err := b.session.ApplicationCommandBulkOverwrite(
		b.session.State.User.ID,
		b.config.GuildID, // Empty string = global commands
		commandDefinitions(),
	)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.commands = registered
	slog.Info("Slash commands registered", "count", len(registered))
	return nil
}

// subcommand splits a command into its subcommand name and options
func subcommand(i *discordgo.InteractionCreate) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return "", nil
	}
	sub := data.Options[0]
	return sub.Name, optionMap(sub.Options)
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

// handleGameCommand handles /game
func (b *Bot) handleGameCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := invoker(i)
	if user == nil {
		return
	}
	name, opts := subcommand(i)

	ctx, cancel := requestContext()
	defer cancel()

	switch name {
	case "register":
		gameName := stringOption(opts, "game")
		_, existed, _ := b.registry.Resolve(ctx, gameName)

		outcome, err := b.registrations.Register(ctx, user.ID, gameName)
		if err != nil {
			slog.Error("Failed to register user", "user", user.ID, "game", gameName, "error", err)
			respondEphemeral(s, i, "❌ Failed to register. Please try again.")
			return
		}
		respondEmbed(s, i, registerEmbed(outcome, gameName, "Requested by "+user.Username), false)
		if outcome == game.Registered && !existed {
			go b.refreshPanels()
		}

	case "unregister":
		gameName := stringOption(opts, "game")
		outcome, err := b.registrations.Unregister(ctx, user.ID, gameName)
		if err != nil {
			slog.Error("Failed to unregister user", "user", user.ID, "game", gameName, "error", err)
			respondEphemeral(s, i, "❌ Failed to unregister. Please try again.")
			return
		}
		respondEmbed(s, i, unregisterEmbed(outcome, gameName, "Requested by "+user.Username), false)

	case "list":
		games, err := b.registrations.ListForUser(ctx, user.ID)
		if err != nil {
			slog.Error("Failed to list registrations", "user", user.ID, "error", err)
			respondEphemeral(s, i, "❌ Failed to retrieve your registrations.")
			return
		}
		respondEmbed(s, i, registeredGamesEmbed(games), true)
	}
}

func registerEmbed(outcome game.RegisterOutcome, gameName, footer string) *discordgo.MessageEmbed {
	switch outcome {
	case game.Registered:
		return resultEmbed(true, "Game Registration Successful",
			fmt.Sprintf("You've been registered for notifications when someone plays **%s**!", gameName), footer)
	case game.AlreadyRegistered:
		return resultEmbed(false, "Already Registered",
			fmt.Sprintf("You're already registered for **%s** notifications.", gameName), footer)
	case game.UnknownGame:
		return resultEmbed(false, "Unknown Game",
			fmt.Sprintf("**%s** is not in the game list. Ask an admin to add it.", gameName), footer)
	default:
		return resultEmbed(false, "Registration Failed",
			fmt.Sprintf("Could not add **%s** to the game list.", gameName), footer)
	}
}

func unregisterEmbed(outcome game.UnregisterOutcome, gameName, footer string) *discordgo.MessageEmbed {
	if outcome == game.Unregistered {
		return resultEmbed(true, "Game Unregistration Successful",
			fmt.Sprintf("You've been unregistered from **%s** notifications.", gameName), footer)
	}
	return resultEmbed(false, "Not Registered",
		fmt.Sprintf("You weren't registered for **%s** notifications.", gameName), footer)
}

// handleAdminCommand handles /admin. The caller has checked permissions.
func (b *Bot) handleAdminCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name, opts := subcommand(i)

	ctx, cancel := requestContext()
	defer cancel()

	switch name {
	case "listregistrations":
		gameName := stringOption(opts, "game")
		users, err := b.registrations.ListForGame(ctx, gameName)
		if err != nil {
			slog.Error("Failed to list registrations", "game", gameName, "error", err)
			respondEphemeral(s, i, "❌ Failed to retrieve registrations.")
			return
		}
		if len(users) == 0 {
			respondEphemeral(s, i, fmt.Sprintf("❌ No one is registered for **%s**.", gameName))
			return
		}
		respondEmbed(s, i, registrantsEmbed(gameName, users), true)

	case "removeuser":
		target := opts["user"].UserValue(s)
		gameName := stringOption(opts, "game")
		outcome, err := b.registrations.Unregister(ctx, target.ID, gameName)
		if err != nil {
			slog.Error("Failed to remove user", "user", target.ID, "game", gameName, "error", err)
			respondEphemeral(s, i, "❌ Failed to remove the user. Please try again.")
			return
		}
		if outcome == game.Unregistered {
			respondEphemeral(s, i, fmt.Sprintf("✅ Successfully removed %s from **%s** notifications.", mention(target.ID), gameName))
			return
		}
		respondEphemeral(s, i, fmt.Sprintf("❌ %s was not registered for **%s**.", mention(target.ID), gameName))

	case "addgame":
		b.addGame(s, i, stringOption(opts, "name"), stringOption(opts, "image_url"), stringOption(opts, "aliases"))

	case "addalias":
		gameName := stringOption(opts, "game")
		entry, err := b.registry.Lookup(ctx, gameName)
		if err != nil {
			respondEphemeral(s, i, fmt.Sprintf("❌ Could not find **%s**.", gameName))
			return
		}
		added, skipped, err := b.registry.AddAliases(ctx, entry.Game.ID, stringOption(opts, "aliases"))
		if err != nil {
			slog.Error("Failed to add aliases", "game", entry.Game.Name, "error", err)
			respondEphemeral(s, i, "❌ Failed to add aliases.")
			return
		}
		respondEphemeral(s, i, aliasSummary(entry.Game.Name, added, skipped))

	case "deletegame":
		gameName := stringOption(opts, "game")
		entry, err := b.registry.Lookup(ctx, gameName)
		if err != nil {
			respondEphemeral(s, i, fmt.Sprintf("❌ Could not find **%s** in the database.", gameName))
			return
		}
		b.askConfirmation(s, i, pendingAction{
			Kind:       actionDeleteGame,
			TargetID:   fmt.Sprint(entry.Game.ID),
			TargetName: entry.Game.Name,
			UserID:     invoker(i).ID,
		}, fmt.Sprintf("⚠️ Are you sure you want to delete **%s** and all its registrations?", entry.Game.Name))

	case "setchannel":
		channel := opts["channel"].ChannelValue(s)
		if err := b.repo.SetConfig(ctx, notify.ConfigKeyAlertChannel, channel.ID); err != nil {
			slog.Error("Failed to save alert channel", "error", err)
			respondEphemeral(s, i, "❌ Failed to set the alert channel. Please try again.")
			return
		}
		slog.Info("Alert channel changed", "channel", channel.ID, "by", invoker(i).ID)
		respondEphemeral(s, i, fmt.Sprintf("✅ Game notifications will be sent to %s", channelMention(channel.ID)))
		go b.refreshPanels()

	case "controlpanel":
		channelID := b.config.ControlChannelID
		if channelID == "" {
			channelID = i.ChannelID
		}
		b.postPanel(s, i, channelID, configKeyControlPanel, b.controlPanelEmbed(ctx), b.controlPanelComponents(ctx))

	case "userpanel":
		b.postPanel(s, i, i.ChannelID, configKeyUserPanel, userPanelEmbed(), b.userPanelComponents(ctx))

	case "stats":
		counts, err := b.registrations.Counts(ctx)
		if err != nil {
			slog.Error("Failed to count registrations", "error", err)
			respondEphemeral(s, i, "❌ Failed to load statistics.")
			return
		}
		respondEmbed(s, i, statsEmbed(counts), true)
	}
}

// addGame is shared by /admin addgame and the add-game modal
func (b *Bot) addGame(s *discordgo.Session, i *discordgo.InteractionCreate, name, imageURL, aliases string) {
	ctx, cancel := requestContext()
	defer cancel()

	result, err := b.registry.Create(ctx, name, imageURL, aliases)
	if err != nil {
		slog.Error("Failed to add game", "game", name, "error", err)
		respondEphemeral(s, i, "❌ Error adding game. Please try again.")
		return
	}

	switch result.Outcome {
	case game.Created:
		msg := fmt.Sprintf("✅ Successfully added game **%s**!", name)
		if len(result.Aliases) > 0 {
			msg += fmt.Sprintf("\nAliases: %s", strings.Join(result.Aliases, ", "))
		}
		if len(result.Skipped) > 0 {
			msg += fmt.Sprintf("\nSkipped aliases already in use: %s", strings.Join(result.Skipped, ", "))
		}
		respondEphemeral(s, i, msg)
		go b.refreshPanels()
	case game.AlreadyExists:
		respondEphemeral(s, i, fmt.Sprintf("❌ A game named **%s** or an alias with that name already exists.", name))
	default:
		respondEphemeral(s, i, "❌ A game name is required.")
	}
}

func aliasSummary(gameName string, added, skipped []string) string {
	var sb strings.Builder
	if len(added) > 0 {
		sb.WriteString(fmt.Sprintf("✅ Added aliases for **%s**: %s", gameName, strings.Join(added, ", ")))
	} else {
		sb.WriteString(fmt.Sprintf("❌ No new aliases were added for **%s**.", gameName))
	}
	if len(skipped) > 0 {
		sb.WriteString(fmt.Sprintf("\nSkipped (already in use): %s", strings.Join(skipped, ", ")))
	}
	return sb.String()
}

// handlePing handles /ping
func (b *Bot) handlePing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondEphemeral(s, i, fmt.Sprintf("🏓 Pong! Gateway latency: %s", s.HeartbeatLatency().Round(time.Millisecond)))
}

// handleInfo handles /info
func (b *Bot) handleInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title:       "🎮 Game Notification Bot",
		Description: "Register for a game and get pinged when someone in the server starts playing it.",
		Color:       colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Register", Value: "`/game register game:<name>`", Inline: true},
			{Name: "Your games", Value: "`/game list`", Inline: true},
			{Name: "Events", Value: "`/event create` · `/event list`", Inline: true},
			{Name: "Check interval", Value: b.config.PollingInterval().String(), Inline: true},
			{Name: "Uptime", Value: time.Since(b.startedAt).Round(time.Second).String(), Inline: true},
		},
	}
	respondEmbed(s, i, embed, true)
}

// handleAutocomplete suggests game names
func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	var typed string
	for _, opt := range sub.Options {
		if opt.Focused {
			typed = opt.StringValue()
		}
	}

	ctx, cancel := requestContext()
	defer cancel()

	var names []string
	if data.Name == "game" && sub.Name == "unregister" {
		user := invoker(i)
		if user != nil {
			names, _ = b.registrations.ListForUser(ctx, user.ID)
		}
	} else {
		entries, err := b.registry.List(ctx)
		if err != nil {
			slog.Error("Failed to list games for autocomplete", "error", err)
		}
		for _, e := range entries {
			names = append(names, e.Game.Name)
		}
	}

	choices := gameChoices(names, typed)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		slog.Debug("Failed to send autocomplete", "error", err)
	}
}

// gameChoices keeps names containing typed, case-insensitively, up to the choice limit
func gameChoices(names []string, typed string) []*discordgo.ApplicationCommandOptionChoice {
	typed = strings.ToLower(strings.TrimSpace(typed))
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxChoices)
	for _, name := range names {
		if len(choices) == maxChoices {
			break
		}
		if typed != "" && !strings.Contains(strings.ToLower(name), typed) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
	}
	return choices
}

// Helper functions

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	respond(s, i, &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	respond(s, i, data)
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
