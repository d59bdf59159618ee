package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/eufr4sio/minas-discord-bot/internal/notify"
	"github.com/eufr4sio/minas-discord-bot/internal/presence"
)

// memberSource reads member presence from the session state cache
type memberSource struct {
	session *discordgo.Session
	guildID string
}

// Members implements poller.MemberSource
func (m *memberSource) Members(ctx context.Context) ([]presence.Member, error) {
	state := m.session.State
	state.RLock()
	defer state.RUnlock()

	guild, err := m.guild(state)
	if err != nil {
		return nil, err
	}
	return membersFromGuild(guild), nil
}

// guild picks the configured guild, or the only one the bot is in.
// The caller holds the state lock.
func (m *memberSource) guild(state *discordgo.State) (*discordgo.Guild, error) {
	if m.guildID != "" {
		for _, g := range state.Guilds {
			if g.ID == m.guildID {
				return g, nil
			}
		}
		return nil, fmt.Errorf("guild %s not in state", m.guildID)
	}
	if len(state.Guilds) == 0 {
		return nil, errors.New("bot is not in any guild")
	}
	return state.Guilds[0], nil
}

// membersFromGuild joins the guild's members with their presences
func membersFromGuild(g *discordgo.Guild) []presence.Member {
	games := make(map[string]string, len(g.Presences))
	for _, p := range g.Presences {
		if p.User == nil {
			continue
		}
		games[p.User.ID] = playingGame(p)
	}

	members := make([]presence.Member, 0, len(g.Members))
	for _, m := range g.Members {
		if m.User == nil {
			continue
		}
		members = append(members, presence.Member{
			UserID:      m.User.ID,
			DisplayName: displayName(m),
			AvatarURL:   m.User.AvatarURL(""),
			Bot:         m.User.Bot,
			Game:        games[m.User.ID],
		})
	}
	return members
}

// playingGame returns the name of the first game activity, if any
func playingGame(p *discordgo.Presence) string {
	if p.Status == discordgo.StatusOffline {
		return ""
	}
	for _, a := range p.Activities {
		if a != nil && a.Type == discordgo.ActivityTypeGame && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// displayName returns the guild nickname, then the global name, then the username
func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

// channelSender posts notifications to a text channel
type channelSender struct {
	session *discordgo.Session
}

// ResolveChannel implements notify.Sender
func (c *channelSender) ResolveChannel(ctx context.Context, channelID string) error {
	if ch, err := c.session.State.Channel(channelID); err == nil && ch != nil {
		return nil
	}
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	if ch.Type != discordgo.ChannelTypeGuildText && ch.Type != discordgo.ChannelTypeGuildNews {
		return fmt.Errorf("channel %s is not a text channel", channelID)
	}
	return nil
}

// Send implements notify.Sender
func (c *channelSender) Send(ctx context.Context, channelID string, n notify.Notification) error {
	_, err := c.session.ChannelMessageSendComplex(channelID, notificationMessage(n), discordgo.WithContext(ctx))
	return err
}

// isAdmin reports whether the invoking member holds the Administrator permission
func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

// invoker returns the user behind an interaction, in a guild or a DM
func invoker(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
