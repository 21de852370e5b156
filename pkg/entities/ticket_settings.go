package entities

// GuildTicketSettings is the per-guild ticketing configuration. It is
// written wholesale by the setup command and read on every lifecycle
// operation.
type GuildTicketSettings struct {
	// GuildID is the ID of the guild the settings are for.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// OpenCategoryID is the ID of the category that open tickets are
	// created under.
	OpenCategoryID string `json:"open_category_id" bson:"open_category_id"`

	// ArchiveCategoryID is the ID of the category that closed tickets are
	// moved to.
	ArchiveCategoryID string `json:"archive_category_id" bson:"archive_category_id"`

	// SupportRoleIDs is the set of roles authorized to claim and manage
	// tickets.
	SupportRoleIDs []string `json:"support_role_ids" bson:"support_role_ids"`

	// LogChannelID is the ID of the channel that audit entries are sent
	// to. Empty disables audit output.
	LogChannelID string `json:"log_channel_id" bson:"log_channel_id"`

	// PanelChannelID is the ID of the channel that the open-ticket panel
	// message was posted to.
	PanelChannelID string `json:"panel_channel_id" bson:"panel_channel_id"`

	// PanelMessageID is the ID of the open-ticket panel message.
	PanelMessageID string `json:"panel_message_id" bson:"panel_message_id"`
}

// IsSupportRole reports whether any of the given role IDs is one of the
// configured support roles.
func (s *GuildTicketSettings) IsSupportRole(roleIDs []string) bool {
	for _, have := range roleIDs {
		for _, want := range s.SupportRoleIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}
