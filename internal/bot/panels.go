package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/eufr4sio/minas-discord-bot/internal/game"
	"github.com/eufr4sio/minas-discord-bot/internal/notify"
)

// Config Store keys holding "channelID/messageID" of the posted panels
const (
	configKeyControlPanel = "CONTROL_PANEL_MESSAGE"
	configKeyUserPanel    = "USER_PANEL_MESSAGE"
)

// Component custom IDs. Arguments follow the prefix, separated by ':'.
const (
	idAddGame        = "cp:add_game"
	idAddGameModal   = "cp:add_game_modal"
	idManageUser     = "cp:manage_user"
	idManageModal    = "cp:manage_user_modal"
	idDeleteGame     = "cp:delete_game"
	idViewRegs       = "cp:view_regs"
	idAlertChannel   = "cp:alert_channel"
	idStats          = "cp:stats"
	idUserGame       = "cp:user_game"  // :<userID>
	idUserRegister   = "cp:user_reg"   // :<userID>:<gameID>
	idUserUnregister = "cp:user_unreg" // :<userID>:<gameID>
	idConfirm        = "confirm"       // :<token>
	idCancel         = "cancel"        // :<token>
	idPanelRegister  = "up:register"
	idPanelUnreg     = "up:unregister"
	idPanelMine      = "up:mine"

	fieldGameName  = "game_name"
	fieldImageURL  = "image_url"
	fieldAliases   = "aliases"
	fieldUserIdent = "user"
)

// customID joins a prefix and its arguments
func customID(prefix string, args ...string) string {
	return strings.Join(append([]string{prefix}, args...), ":")
}

// splitCustomID returns the prefix and arguments of a custom ID. Prefixes
// themselves hold one ':' so the first two parts form the prefix.
func splitCustomID(id string) (string, []string) {
	parts := strings.Split(id, ":")
	if len(parts) >= 2 && (parts[0] == "cp" || parts[0] == "up") {
		return parts[0] + ":" + parts[1], parts[2:]
	}
	return parts[0], parts[1:]
}

// gameSelectOptions turns games into at most 25 select options
func gameSelectOptions(entries []game.Entry) []discordgo.SelectMenuOption {
	options := make([]discordgo.SelectMenuOption, 0, maxChoices)
	for _, e := range entries {
		if len(options) == maxChoices {
			break
		}
		options = append(options, discordgo.SelectMenuOption{
			Label: truncateLabel(e.Game.Name),
			Value: strconv.FormatInt(e.Game.ID, 10),
		})
	}
	return options
}

// truncateLabel fits Discord's 100 character limit for option labels
func truncateLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= 100 {
		return s
	}
	return string(runes[:97]) + "..."
}

func (b *Bot) listGames(ctx context.Context) []game.Entry {
	entries, err := b.registry.List(ctx)
	if err != nil {
		slog.Error("Failed to list games", "error", err)
	}
	return entries
}

func (b *Bot) controlPanelEmbed(ctx context.Context) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🛠️ Bot Control Panel",
		Description: "Use the components below to manage the bot.",
		Color:       colorGold,
	}
	if value, err := b.repo.GetConfig(ctx, notify.ConfigKeyAlertChannel); err == nil {
		if _, ok := value.Int64(); ok {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "Current Alert Channel",
				Value: channelMention(value.String()),
			})
		}
	} else if b.config.AlertChannelID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Current Alert Channel",
			Value: channelMention(b.config.AlertChannelID) + " (default)",
		})
	}
	return embed
}

func (b *Bot) controlPanelComponents(ctx context.Context) []discordgo.MessageComponent {
	return controlPanelComponents(b.listGames(ctx))
}

func controlPanelComponents(entries []game.Entry) []discordgo.MessageComponent {
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "➕ Add Game", Style: discordgo.SuccessButton, CustomID: idAddGame},
			discordgo.Button{Label: "👤 Manage User", Style: discordgo.PrimaryButton, CustomID: idManageUser},
			discordgo.Button{Label: "📊 Statistics", Style: discordgo.SecondaryButton, CustomID: idStats},
		}},
	}

	if options := gameSelectOptions(entries); len(options) > 0 {
		components = append(components,
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    idDeleteGame,
					Placeholder: "🗑️ Delete a Game...",
					Options:     options,
				},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    idViewRegs,
					Placeholder: "👥 View Registrations...",
					Options:     options,
				},
			}},
		)
	}

	components = append(components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.SelectMenu{
			MenuType:     discordgo.ChannelSelectMenu,
			CustomID:     idAlertChannel,
			Placeholder:  "📢 Set Alert Channel...",
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		},
	}})
	return components
}

func userPanelEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎮 Game Notification Center",
		Description: "Pick a game from a dropdown to manage your subscriptions.",
		Color:       colorBlue,
		Footer:      &discordgo.MessageEmbedFooter{Text: "All actions are private and only you can see the confirmation."},
	}
}

func (b *Bot) userPanelComponents(ctx context.Context) []discordgo.MessageComponent {
	return userPanelComponents(b.listGames(ctx))
}

func userPanelComponents(entries []game.Entry) []discordgo.MessageComponent {
	options := gameSelectOptions(entries)
	if len(options) == 0 {
		return []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "No games available", Style: discordgo.SecondaryButton, CustomID: "up:none", Disabled: true},
			}},
		}
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    idPanelRegister,
				Placeholder: "➕ Select a game to register for...",
				Options:     options,
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    idPanelUnreg,
				Placeholder: "❌ Select a game to unregister from...",
				Options:     options,
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "📋 Check My Registrations", Style: discordgo.SecondaryButton, CustomID: idPanelMine},
		}},
	}
}

// postPanel sends a panel to channelID and remembers where it is
func (b *Bot) postPanel(s *discordgo.Session, i *discordgo.InteractionCreate, channelID, key string, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	msg, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		slog.Error("Failed to post panel", "panel", key, "error", err)
		respondEphemeral(s, i, "❌ Failed to post the panel. Check my permissions in this channel.")
		return
	}

	ctx, cancel := requestContext()
	defer cancel()
	if err := b.repo.SetConfig(ctx, key, msg.ChannelID+"/"+msg.ID); err != nil {
		slog.Error("Failed to remember panel location", "panel", key, "error", err)
	}
	respondEphemeral(s, i, "✅ Panel posted in "+channelMention(msg.ChannelID)+".")
}

// refreshPanels rebuilds both panels after the game list or settings change
func (b *Bot) refreshPanels() {
	ctx, cancel := requestContext()
	defer cancel()

	b.refreshPanel(ctx, configKeyControlPanel, b.controlPanelEmbed(ctx), b.controlPanelComponents(ctx))
	b.refreshPanel(ctx, configKeyUserPanel, userPanelEmbed(), b.userPanelComponents(ctx))
}

func (b *Bot) refreshPanel(ctx context.Context, key string, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	location, err := b.repo.GetConfig(ctx, key)
	if err != nil {
		if !isNotFound(err) {
			slog.Error("Failed to read panel location", "panel", key, "error", err)
		}
		return
	}
	channelID, messageID, ok := strings.Cut(location.String(), "/")
	if !ok {
		slog.Warn("Malformed panel location", "panel", key, "value", location.String())
		return
	}

	embeds := []*discordgo.MessageEmbed{embed}
	_, err = b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		slog.Warn("Failed to refresh panel", "panel", key, "error", err)
	}
}

// askConfirmation replies with Confirm/Cancel buttons bound to a one-shot token
func (b *Bot) askConfirmation(s *discordgo.Session, i *discordgo.InteractionCreate, action pendingAction, prompt string) {
	token := b.confirms.Add(action)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: prompt,
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Confirm", Style: discordgo.DangerButton, CustomID: customID(idConfirm, token)},
					discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: customID(idCancel, token)},
				}},
			},
		},
	})
	if err != nil {
		slog.Error("Failed to ask for confirmation", "error", err)
	}
}

// updateMessage replaces the message that carried the clicked component
func updateMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		slog.Error("Failed to update message", "error", err)
	}
}

// handleComponent routes button and select interactions
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	prefix, args := splitCustomID(data.CustomID)
	slog.Debug("Received component", "id", data.CustomID)

	// Everything on the control panel is admin only
	if strings.HasPrefix(prefix, "cp:") || prefix == idConfirm || prefix == idCancel {
		if !isAdmin(i) {
			respondEphemeral(s, i, "❌ You need the Administrator permission to use this panel.")
			return
		}
	}

	ctx, cancel := requestContext()
	defer cancel()

	switch prefix {
	case idAddGame:
		showModal(s, i, idAddGameModal, "Add a New Game",
			textInput(fieldGameName, "Game Name", "e.g., Battlefield 6", true),
			textInput(fieldImageURL, "Image URL (Optional)", "https://...", false),
			textInput(fieldAliases, "Aliases (Optional)", "e.g., BF6, BF (comma-separated)", false),
		)

	case idManageUser:
		showModal(s, i, idManageModal, "Manage a User",
			textInput(fieldUserIdent, "User (ID, @mention, or name)", "e.g., @Mina or 123456789012345678", true),
		)

	case idStats:
		counts, err := b.registrations.Counts(ctx)
		if err != nil {
			slog.Error("Failed to count registrations", "error", err)
			respondEphemeral(s, i, "❌ Failed to load statistics.")
			return
		}
		respondEmbed(s, i, statsEmbed(counts), true)

	case idDeleteGame:
		entry := b.selectedGame(ctx, s, i, data.Values)
		if entry == nil {
			return
		}
		b.askConfirmation(s, i, pendingAction{
			Kind:       actionDeleteGame,
			TargetID:   strconv.FormatInt(entry.Game.ID, 10),
			TargetName: entry.Game.Name,
			UserID:     invoker(i).ID,
		}, fmt.Sprintf("Are you sure you want to delete **%s**?", entry.Game.Name))

	case idViewRegs:
		entry := b.selectedGame(ctx, s, i, data.Values)
		if entry == nil {
			return
		}
		users, err := b.registrations.ListForGameID(ctx, entry.Game.ID)
		if err != nil {
			slog.Error("Failed to list registrations", "game", entry.Game.Name, "error", err)
			respondEphemeral(s, i, "❌ Failed to retrieve registrations.")
			return
		}
		if len(users) == 0 {
			respondEphemeral(s, i, fmt.Sprintf("No users are registered for **%s**.", entry.Game.Name))
			return
		}
		respondEmbed(s, i, registrantsEmbed(entry.Game.Name, users), true)

	case idAlertChannel:
		if len(data.Values) == 0 {
			return
		}
		channelID := data.Values[0]
		b.askConfirmation(s, i, pendingAction{
			Kind:       actionSetAlertChannel,
			TargetID:   channelID,
			TargetName: channelMention(channelID),
			UserID:     invoker(i).ID,
		}, fmt.Sprintf("Set %s as the new alert channel?", channelMention(channelID)))

	case idUserGame:
		if len(args) != 1 || len(data.Values) == 0 {
			return
		}
		b.showUserActions(s, i, args[0], data.Values[0])

	case idUserRegister, idUserUnregister:
		if len(args) != 2 {
			return
		}
		b.manageUserRegistration(ctx, s, i, prefix == idUserRegister, args[0], args[1])

	case idConfirm:
		if len(args) == 1 {
			b.runConfirmed(ctx, s, i, args[0])
		}

	case idCancel:
		if len(args) == 1 {
			b.confirms.Take(args[0], invoker(i).ID)
		}
		updateMessage(s, i, "Action cancelled.")

	case idPanelRegister, idPanelUnreg:
		b.panelRegistration(ctx, s, i, prefix == idPanelRegister, data.Values)

	case idPanelMine:
		user := invoker(i)
		games, err := b.registrations.ListForUser(ctx, user.ID)
		if err != nil {
			slog.Error("Failed to list registrations", "user", user.ID, "error", err)
			respondEphemeral(s, i, "❌ Failed to retrieve your registrations.")
			return
		}
		respondEmbed(s, i, registeredGamesEmbed(games), true)

	default:
		slog.Warn("Unknown component", "id", data.CustomID)
	}
}

// selectedGame loads the game picked in a select menu
func (b *Bot) selectedGame(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, values []string) *game.Entry {
	if len(values) == 0 {
		respondEphemeral(s, i, "❌ Please select a game from the dropdown first.")
		return nil
	}
	id, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		respondEphemeral(s, i, "❌ Unknown game.")
		return nil
	}
	entry, err := b.registry.Get(ctx, id)
	if err != nil {
		respondEphemeral(s, i, "❌ That game no longer exists.")
		return nil
	}
	return entry
}

// runConfirmed executes a confirmed destructive action
func (b *Bot) runConfirmed(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, token string) {
	action, ok := b.confirms.Take(token, invoker(i).ID)
	if !ok {
		updateMessage(s, i, "❌ This confirmation has expired. Please start again.")
		return
	}

	switch action.Kind {
	case actionDeleteGame:
		id, err := strconv.ParseInt(action.TargetID, 10, 64)
		if err != nil {
			updateMessage(s, i, "❌ Unknown game.")
			return
		}
		deleted, err := b.registry.Delete(ctx, id)
		if err != nil {
			slog.Error("Failed to delete game", "game", action.TargetName, "error", err)
			updateMessage(s, i, fmt.Sprintf("❌ Error deleting **%s**.", action.TargetName))
			return
		}
		if !deleted {
			updateMessage(s, i, fmt.Sprintf("❌ Could not find **%s**.", action.TargetName))
			return
		}
		updateMessage(s, i, fmt.Sprintf("✅ Game **%s** has been deleted.", action.TargetName))

	case actionSetAlertChannel:
		if err := b.repo.SetConfig(ctx, notify.ConfigKeyAlertChannel, action.TargetID); err != nil {
			slog.Error("Failed to save alert channel", "error", err)
			updateMessage(s, i, "❌ Failed to set the alert channel.")
			return
		}
		updateMessage(s, i, fmt.Sprintf("✅ Alert channel set to %s.", action.TargetName))
	}

	go b.refreshPanels()
}

// showUserActions offers Register/Unregister buttons for the chosen user and game
func (b *Bot) showUserActions(s *discordgo.Session, i *discordgo.InteractionCreate, userID, gameID string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Components: userActionComponents(userID, gameID),
		},
	})
	if err != nil {
		slog.Error("Failed to show user actions", "error", err)
	}
}

func userActionComponents(userID, gameID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "✅ Register User", Style: discordgo.SuccessButton, CustomID: customID(idUserRegister, userID, gameID)},
			discordgo.Button{Label: "❌ Unregister User", Style: discordgo.DangerButton, CustomID: customID(idUserUnregister, userID, gameID)},
		}},
	}
}

// manageUserRegistration registers or unregisters another member for a game
func (b *Bot) manageUserRegistration(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, register bool, userID, gameID string) {
	entry := b.selectedGame(ctx, s, i, []string{gameID})
	if entry == nil {
		return
	}
	name := entry.Game.Name

	if register {
		outcome, err := b.registrations.Register(ctx, userID, name)
		switch {
		case err != nil:
			slog.Error("Failed to register user", "user", userID, "game", name, "error", err)
			respondEphemeral(s, i, "❌ Failed to register the user.")
		case outcome == game.Registered:
			respondEphemeral(s, i, fmt.Sprintf("✅ Registered %s for **%s**.", mention(userID), name))
		default:
			respondEphemeral(s, i, fmt.Sprintf("❌ %s is already registered for **%s**.", mention(userID), name))
		}
		return
	}

	outcome, err := b.registrations.Unregister(ctx, userID, name)
	switch {
	case err != nil:
		slog.Error("Failed to unregister user", "user", userID, "game", name, "error", err)
		respondEphemeral(s, i, "❌ Failed to unregister the user.")
	case outcome == game.Unregistered:
		respondEphemeral(s, i, fmt.Sprintf("✅ Unregistered %s from **%s**.", mention(userID), name))
	default:
		respondEphemeral(s, i, fmt.Sprintf("❌ %s was not registered for **%s**.", mention(userID), name))
	}
}

// panelRegistration handles the shared user panel selects
func (b *Bot) panelRegistration(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, register bool, values []string) {
	entry := b.selectedGame(ctx, s, i, values)
	if entry == nil {
		return
	}
	user := invoker(i)
	name := entry.Game.Name

	if register {
		outcome, err := b.registrations.Register(ctx, user.ID, name)
		if err != nil {
			slog.Error("Failed to register user", "user", user.ID, "game", name, "error", err)
			respondEphemeral(s, i, "❌ Failed to register. Please try again.")
			return
		}
		if outcome == game.Registered {
			respondEphemeral(s, i, fmt.Sprintf("✅ You have been registered for **%s**!", name))
			return
		}
		respondEphemeral(s, i, fmt.Sprintf("❌ You are already registered for **%s**.", name))
		return
	}

	outcome, err := b.registrations.Unregister(ctx, user.ID, name)
	if err != nil {
		slog.Error("Failed to unregister user", "user", user.ID, "game", name, "error", err)
		respondEphemeral(s, i, "❌ Failed to unregister. Please try again.")
		return
	}
	if outcome == game.Unregistered {
		respondEphemeral(s, i, fmt.Sprintf("✅ You have been unregistered from **%s**.", name))
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("❌ You were not registered for **%s**.", name))
}

func textInput(id, label, placeholder string, required bool) discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.TextInput{
			CustomID:    id,
			Label:       label,
			Style:       discordgo.TextInputShort,
			Placeholder: placeholder,
			Required:    required,
			MaxLength:   200,
		},
	}}
}

func showModal(s *discordgo.Session, i *discordgo.InteractionCreate, id, title string, rows ...discordgo.MessageComponent) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   id,
			Title:      title,
			Components: rows,
		},
	})
	if err != nil {
		slog.Error("Failed to show modal", "modal", id, "error", err)
	}
}

// modalValues collects text input values by custom ID
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, row := range data.Components {
		actions, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range actions.Components {
			if input, ok := c.(*discordgo.TextInput); ok {
				values[input.CustomID] = strings.TrimSpace(input.Value)
			}
		}
	}
	return values
}

// handleModal routes modal submissions
func (b *Bot) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respondEphemeral(s, i, "❌ You need the Administrator permission to do that.")
		return
	}

	data := i.ModalSubmitData()
	values := modalValues(data)

	switch data.CustomID {
	case idAddGameModal:
		b.addGame(s, i, values[fieldGameName], values[fieldImageURL], values[fieldAliases])

	case idManageModal:
		member := findMember(s, i.GuildID, ParseUserIdentifier(values[fieldUserIdent]))
		if member == nil || member.User == nil {
			respondEphemeral(s, i, "❌ Could not find a user from your input. Please check the ID/mention/name.")
			return
		}
		b.showUserGameSelect(s, i, member)

	default:
		slog.Warn("Unknown modal", "id", data.CustomID)
	}
}

// showUserGameSelect asks which game to manage for member
func (b *Bot) showUserGameSelect(s *discordgo.Session, i *discordgo.InteractionCreate, member *discordgo.Member) {
	ctx, cancel := requestContext()
	defer cancel()

	options := gameSelectOptions(b.listGames(ctx))
	if len(options) == 0 {
		respondEphemeral(s, i, "❌ No games found in bot.")
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Managing " + displayName(member),
				Description: "Select a game, then choose an action.",
				Color:       colorBlue,
			}},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    customID(idUserGame, member.User.ID),
						Placeholder: "Select a game for this user...",
						Options:     options,
					},
				}},
			},
		},
	})
	if err != nil {
		slog.Error("Failed to show user game select", "error", err)
	}
}
