package bot

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// IdentifierKind says how a user identifier was written
type IdentifierKind int

const (
	IdentifierInvalid IdentifierKind = iota
	IdentifierID
	IdentifierMention
	IdentifierName
)

// UserIdentifier is a parsed admin-typed reference to a member
type UserIdentifier struct {
	Kind  IdentifierKind
	Value string // a user ID for IdentifierID and IdentifierMention, otherwise the name
}

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// ParseUserIdentifier reads text as a numeric ID, then a mention, then an exact name
func ParseUserIdentifier(text string) UserIdentifier {
	text = strings.TrimSpace(text)
	if text == "" {
		return UserIdentifier{}
	}
	if isSnowflake(text) {
		return UserIdentifier{Kind: IdentifierID, Value: text}
	}
	if m := mentionPattern.FindStringSubmatch(text); m != nil {
		return UserIdentifier{Kind: IdentifierMention, Value: m[1]}
	}
	return UserIdentifier{Kind: IdentifierName, Value: strings.TrimPrefix(text, "@")}
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// findMemberByName matches a username, username#discriminator, global name or nickname exactly
func findMemberByName(members []*discordgo.Member, name string) *discordgo.Member {
	for _, m := range members {
		if m.User == nil {
			continue
		}
		u := m.User
		if u.Username == name || (u.Discriminator != "" && u.Discriminator != "0" && u.Username+"#"+u.Discriminator == name) {
			return m
		}
	}
	// display names are not unique, so they only count after usernames
	for _, m := range members {
		if m.User == nil {
			continue
		}
		if m.Nick == name || m.User.GlobalName == name {
			return m
		}
	}
	return nil
}

// findMember resolves an identifier against the guild
func findMember(s *discordgo.Session, guildID string, id UserIdentifier) *discordgo.Member {
	switch id.Kind {
	case IdentifierID, IdentifierMention:
		if m, err := s.State.Member(guildID, id.Value); err == nil {
			return m
		}
		m, err := s.GuildMember(guildID, id.Value)
		if err != nil {
			return nil
		}
		return m
	case IdentifierName:
		s.State.RLock()
		defer s.State.RUnlock()
		for _, g := range s.State.Guilds {
			if g.ID == guildID {
				return findMemberByName(g.Members, id.Value)
			}
		}
	}
	return nil
}
