package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eufr4sio/minas-discord-bot/internal/notify"
	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

const (
	colorBlue   = 0x3498DB
	colorGreen  = 0x2ECC71
	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
	colorGold   = 0xF1C40F
	colorPurple = 0x9B59B6
)

// startedLayout renders times like "March 4, 2026 at 20:15"
const startedLayout = "January 2, 2006 at 15:04"

func mention(userID string) string {
	return "<@" + userID + ">"
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// notificationEmbed creates the embed announcing a game start
func notificationEmbed(n notify.Notification) *discordgo.MessageEmbed {
	name := n.PlayerName
	if name == "" {
		name = "Someone"
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎮 " + n.Game,
		Description: fmt.Sprintf("**%s** is now playing!", name),
		Color:       colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "👤 Player",
				Value:  mention(n.PlayerID),
				Inline: true,
			},
			{
				Name:   "📅 Started",
				Value:  n.StartedAt.Format(startedLayout),
				Inline: true,
			},
			{
				Name:   "🔔 Notifying",
				Value:  plural(len(n.Pings), "player"),
				Inline: true,
			},
		},
		Timestamp: n.StartedAt.Format(time.RFC3339),
	}
	if n.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: n.AvatarURL}
	}
	if n.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: n.ImageURL}
	}
	return embed
}

// notificationMessage pings every registrant and only them
func notificationMessage(n notify.Notification) *discordgo.MessageSend {
	mentions := make([]string, 0, len(n.Pings))
	for _, id := range n.Pings {
		mentions = append(mentions, mention(id))
	}
	return &discordgo.MessageSend{
		Content: strings.Join(mentions, " "),
		Embeds:  []*discordgo.MessageEmbed{notificationEmbed(n)},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Users: n.Pings,
		},
	}
}

// resultEmbed is a short success or failure card
func resultEmbed(ok bool, title, description, footer string) *discordgo.MessageEmbed {
	color := colorGreen
	prefix := "✅ "
	if !ok {
		color = colorRed
		prefix = "❌ "
	}
	embed := &discordgo.MessageEmbed{
		Title:       prefix + title,
		Description: description,
		Color:       color,
	}
	if footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	}
	return embed
}

// registeredGamesEmbed lists the games a user is registered for
func registeredGamesEmbed(games []string) *discordgo.MessageEmbed {
	if len(games) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "🎮 No Registered Games",
			Description: "You haven't registered for any game notifications yet. Use `/game register` to get started!",
			Color:       colorOrange,
		}
	}

	var sb strings.Builder
	for _, g := range games {
		sb.WriteString("🔹 " + g + "\n")
	}
	return &discordgo.MessageEmbed{
		Title:       "🎮 Your Registered Games",
		Description: "You'll be notified when someone starts playing:\n\n" + sb.String(),
		Color:       colorBlue,
	}
}

// registrantsEmbed lists the users registered for a game
func registrantsEmbed(gameName string, users []string) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, mention(u))
	}
	return &discordgo.MessageEmbed{
		Title:       "🎮 Registrations for " + gameName,
		Description: strings.Join(lines, "\n"),
		Color:       colorBlue,
		Footer:      &discordgo.MessageEmbedFooter{Text: plural(len(users), "registration")},
	}
}

// statsEmbed shows registration counts per game
func statsEmbed(counts []storage.GameCount) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "📊 Registration Statistics",
		Color: colorGold,
	}
	if len(counts) == 0 {
		embed.Description = "No games have been added yet."
		return embed
	}

	total := 0
	var sb strings.Builder
	for _, c := range counts {
		total += c.Count
		sb.WriteString(fmt.Sprintf("**%s**: %s\n", c.Name, plural(c.Count, "player")))
	}
	embed.Description = sb.String()
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("%s, %s", plural(len(counts), "game"), plural(total, "registration")),
	}
	return embed
}

// eventEmbed describes an event, used for both the reply and the announcement
func eventEmbed(e *storage.Event, creatorAvatar string) *discordgo.MessageEmbed {
	description := e.Description
	if description == "" {
		description = "No description provided"
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎉 New Game Event!",
		Description: fmt.Sprintf("**%s**", e.Title),
		Color:       colorPurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "📝 Description", Value: description},
			{Name: "👤 Creator", Value: mention(e.CreatorID), Inline: true},
			{Name: "🆔 Event ID", Value: fmt.Sprintf("#%d", e.ID), Inline: true},
			{Name: "📅 When", Value: eventTime(e), Inline: true},
			{Name: "📋 RSVP", Value: fmt.Sprintf("Use `/event rsvp event_id:%d`", e.ID)},
		},
		Timestamp: e.CreatedAt.Format(time.RFC3339),
	}
	if creatorAvatar != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: creatorAvatar}
	}
	return embed
}

func eventTime(e *storage.Event) string {
	if e.StartTime == nil {
		return "No time set"
	}
	return fmt.Sprintf("<t:%d:F>", e.StartTime.Unix())
}

// eventListEmbed lists upcoming events
func eventListEmbed(events []*storage.Event) *discordgo.MessageEmbed {
	if len(events) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "📅 No Events",
			Description: "No upcoming events found. Create one with `/event create`!",
			Color:       colorOrange,
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📅 Upcoming Events",
		Description: "Here are the upcoming game events:",
		Color:       colorBlue,
	}
	for idx, e := range events {
		// embeds hold at most 25 fields
		if idx == 25 {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("🎮 %s (#%d)", e.Title, e.ID),
			Value: fmt.Sprintf("📝 %s\n👤 Created by %s\n📅 %s", truncate(e.Description, 50), mention(e.CreatorID), eventTime(e)),
		})
	}
	return embed
}

// rsvpSummary counts answers per status
func rsvpSummary(rsvps []*storage.RSVP) string {
	counts := map[storage.RSVPStatus]int{}
	for _, r := range rsvps {
		counts[r.Status]++
	}
	return fmt.Sprintf("✅ %d attending · 🤔 %d maybe · ❌ %d declined",
		counts[storage.RSVPAttending], counts[storage.RSVPMaybe], counts[storage.RSVPDeclined])
}

// truncate shortens s to n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	if s == "" {
		return "No description provided"
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
