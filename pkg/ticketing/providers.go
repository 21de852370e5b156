package ticketing

import "context"

// AccessPolicy describes who can see a ticket channel at creation time.
// The everyone role is denied; members get view+send; roles additionally
// get message history.
type AccessPolicy struct {
	// EveryoneRoleID is the guild's @everyone role, denied all access.
	EveryoneRoleID string

	// MemberIDs are users granted view and send.
	MemberIDs []string

	// RoleIDs are roles granted view, send and history.
	RoleIDs []string
}

// ChannelProvider is the narrow surface of the messaging platform's channel
// and access-control primitives the lifecycle manager needs. Operations are
// fallible and not retried here; errors propagate to the presenter.
type ChannelProvider interface {
	// CreateTicketChannel creates a text channel under the category with
	// the given access policy and returns its ID.
	CreateTicketChannel(ctx context.Context, guildID, name, topic, categoryID string, policy AccessPolicy) (string, error)

	// SetParentCategory re-parents a channel to a category.
	SetParentCategory(ctx context.Context, channelID, categoryID string) error

	// GrantMemberAccess grants a user view, send and history on a channel.
	GrantMemberAccess(ctx context.Context, channelID, userID string) error

	// RevokeMemberAccess removes a user's permission overwrite.
	RevokeMemberAccess(ctx context.Context, channelID, userID string) error

	// DeleteChannel deletes a channel with an audit reason.
	DeleteChannel(ctx context.Context, channelID, reason string) error

	// CategoryExists reports whether a category channel still resolves.
	CategoryExists(ctx context.Context, categoryID string) (bool, error)
}

// LogField is a single name/value pair on an audit entry.
type LogField struct {
	Name  string
	Value string
}

// LogEntry is one audit line for the guild's log channel.
type LogEntry struct {
	Title       string
	Description string
	Color       int
	ActorID     string
	Fields      []LogField
}

// LogSink dispatches audit entries. Implementations silently no-op when the
// guild has no log channel configured; a failed send never fails the
// transition that produced it.
type LogSink interface {
	Send(ctx context.Context, guildID string, entry LogEntry)
}
