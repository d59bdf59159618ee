package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

// eventTimeLayout is what /event create accepts for the start option
const eventTimeLayout = "2006-01-02 15:04"

func eventCommandDefinition(dmPermission bool) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:         "event",
		Description:  "Community game events",
		DMPermission: &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a new game event",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "title",
						Description: "Event title",
						Required:    true,
						MaxLength:   100,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "description",
						Description: "What the event is about",
						MaxLength:   1000,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "start",
						Description: "Start time in UTC, e.g. 2026-03-04 20:15 or tomorrow at 8pm",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List upcoming events",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "rsvp",
				Description: "Answer an event invitation",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "event_id",
						Description: "The event number",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "status",
						Description: "Your answer",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Attending", Value: string(storage.RSVPAttending)},
							{Name: "Maybe", Value: string(storage.RSVPMaybe)},
							{Name: "Declined", Value: string(storage.RSVPDeclined)},
						},
					},
				},
			},
		},
	}
}

var startParser = newStartParser()

func newStartParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseEventStart reads the optional start option, either in eventTimeLayout
// (UTC) or as English like "tomorrow at 8pm" relative to now. Empty means no
// time set.
func parseEventStart(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(eventTimeLayout, s, time.UTC); err == nil {
		return &t, nil
	}

	r, err := startParser.Parse(strings.ToLower(s), now.UTC())
	if err != nil || r == nil {
		return nil, fmt.Errorf("could not read start time %q, try YYYY-MM-DD HH:MM", s)
	}
	t := r.Time.UTC().Truncate(time.Minute)
	return &t, nil
}

// handleEventCommand handles /event
func (b *Bot) handleEventCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := invoker(i)
	if user == nil {
		return
	}
	name, opts := subcommand(i)

	ctx, cancel := requestContext()
	defer cancel()

	switch name {
	case "create":
		now := time.Now()
		start, err := parseEventStart(stringOption(opts, "start"), now)
		if err != nil {
			respondEphemeral(s, i, "❌ "+err.Error())
			return
		}
		if start != nil && start.Before(now.Truncate(time.Minute)) {
			respondEphemeral(s, i, "❌ The start time is in the past.")
			return
		}

		event := &storage.Event{
			Title:       stringOption(opts, "title"),
			Description: stringOption(opts, "description"),
			CreatorID:   user.ID,
			StartTime:   start,
		}
		if err := b.repo.CreateEvent(ctx, event); err != nil {
			slog.Error("Failed to create event", "title", event.Title, "error", err)
			respondEphemeral(s, i, "❌ Failed to create the event. Please try again.")
			return
		}
		slog.Info("Event created", "id", event.ID, "title", event.Title, "creator", user.ID)

		embed := eventEmbed(event, user.AvatarURL(""))
		respondEmbed(s, i, embed, false)
		b.announceEvent(embed)

	case "list":
		events, err := b.repo.ListUpcomingEvents(ctx, time.Now())
		if err != nil {
			slog.Error("Failed to list events", "error", err)
			respondEphemeral(s, i, "❌ Failed to retrieve events.")
			return
		}
		respondEmbed(s, i, eventListEmbed(events), false)

	case "rsvp":
		opt, ok := opts["event_id"]
		if !ok {
			return
		}
		eventID := opt.IntValue()
		rsvp := &storage.RSVP{
			EventID: eventID,
			UserID:  user.ID,
			Status:  storage.RSVPStatus(stringOption(opts, "status")),
		}
		if err := b.repo.UpsertRSVP(ctx, rsvp); err != nil {
			if isNotFound(err) {
				respondEphemeral(s, i, fmt.Sprintf("❌ Event #%d does not exist.", eventID))
				return
			}
			slog.Error("Failed to save RSVP", "event", eventID, "user", user.ID, "error", err)
			respondEphemeral(s, i, "❌ Failed to save your answer.")
			return
		}

		summary := ""
		if rsvps, err := b.repo.ListRSVPs(ctx, eventID); err == nil {
			summary = "\n" + rsvpSummary(rsvps)
		}
		respondEphemeral(s, i, fmt.Sprintf("✅ Your answer for event #%d is **%s**.%s", eventID, rsvp.Status, summary))
	}
}

// announceEvent posts a new event to the events channel when one is configured
func (b *Bot) announceEvent(embed *discordgo.MessageEmbed) {
	if b.config.EventsChannelID == "" {
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(b.config.EventsChannelID, embed); err != nil {
		slog.Warn("Failed to announce event", "channel", b.config.EventsChannelID, "error", err)
	}
}
