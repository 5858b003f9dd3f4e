package permissions

import "github.com/bwmarrin/discordgo"

type Config struct {
	// ModeratorRole is matched case-insensitively against role names.
	ModeratorRole string
}

// Member is what a moderator check looks at.
type Member struct {
	UserID      string
	RoleNames   []string
	Owner       bool
	Permissions int64
}

// ModeratorPermissions grant moderation without the moderator role.
const ModeratorPermissions = discordgo.PermissionManageChannels
