package permissions

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type Manager struct {
	config Config
}

func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
	}
}

// Grants reports whether m may moderate: the guild owner, an administrator,
// a member with ModeratorPermissions, or a holder of the moderator role.
func (m *Manager) Grants(member Member) bool {
	if member.Owner {
		return true
	}

	if member.Permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator {
		return true
	}
	if member.Permissions&ModeratorPermissions == ModeratorPermissions {
		return true
	}

	if m.config.ModeratorRole == "" {
		return false
	}
	for _, name := range member.RoleNames {
		if strings.EqualFold(name, m.config.ModeratorRole) {
			return true
		}
	}
	return false
}

// Lookup gathers the member's owner flag, channel permissions and role names,
// preferring the state cache over REST.
func (m *Manager) Lookup(session *discordgo.Session, guildID, channelID, userID string) (Member, error) {
	guild, err := session.State.Guild(guildID)
	if err != nil {
		guild, err = session.Guild(guildID)
		if err != nil {
			return Member{}, fmt.Errorf("could not get guild: %w", err)
		}
	}

	out := Member{UserID: userID, Owner: guild.OwnerID == userID}
	if out.Owner {
		return out, nil
	}

	perms, err := session.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = session.UserChannelPermissions(userID, channelID)
		if err != nil {
			return Member{}, fmt.Errorf("could not get permissions: %w", err)
		}
	}
	out.Permissions = perms

	member, err := session.State.Member(guildID, userID)
	if err != nil {
		member, err = session.GuildMember(guildID, userID)
		if err != nil {
			return Member{}, fmt.Errorf("could not get member: %w", err)
		}
	}

	roles := guild.Roles
	if len(roles) == 0 {
		roles, err = session.GuildRoles(guildID)
		if err != nil {
			return Member{}, fmt.Errorf("could not get guild roles: %w", err)
		}
	}

	for _, roleID := range member.Roles {
		for _, role := range roles {
			if role.ID == roleID {
				out.RoleNames = append(out.RoleNames, role.Name)
				break
			}
		}
	}
	return out, nil
}

func (m *Manager) IsModerator(session *discordgo.Session, guildID, channelID, userID string) (bool, error) {
	member, err := m.Lookup(session, guildID, channelID, userID)
	if err != nil {
		return false, err
	}
	return m.Grants(member), nil
}
