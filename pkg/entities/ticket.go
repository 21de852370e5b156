package entities

import (
	"fmt"

	"github.com/wardenhq/warden/pkg/custom"
)

// TicketStatus is the lifecycle status of a ticket. Transitions are
// monotonic: a ticket only ever goes from open to closed, and deletion
// removes the record entirely.
type TicketStatus string

const (
	// StatusOpen is the status of a ticket that is being worked.
	StatusOpen TicketStatus = "open"

	// StatusClosed is the status of a ticket that has been resolved and
	// archived. Closed tickets are never reopened.
	StatusClosed TicketStatus = "closed"
)

// Ticket is a support conversation bound 1:1 to a guild text channel.
// The channel ID is the record key.
type Ticket struct {
	// ChannelID is the ID of the channel that the ticket lives in.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// GuildID is the ID of the guild that the ticket is in.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// CreatorID is the ID of the user that opened the ticket.
	CreatorID string `json:"creator_id" bson:"creator_id"`

	// ClaimedBy is the ID of the support member that claimed the ticket.
	// Empty until claimed; reclaiming overwrites it.
	ClaimedBy string `json:"claimed_by" bson:"claimed_by"`

	// Status is the lifecycle status of the ticket.
	Status TicketStatus `json:"status" bson:"status"`

	// Participants is the set of users with visibility into the ticket
	// channel. Always contains CreatorID.
	Participants []string `json:"participants" bson:"participants"`

	// CreatedAt is the time that the ticket was created.
	CreatedAt custom.Datetime `json:"created_at" bson:"created_at"`
}

// TicketName builds the channel name for a new ticket from the creator's
// handle and a pseudo-random suffix. Collisions are cosmetic only; the
// store key is the channel ID, not the name.
func TicketName(handle string, suffix int) string {
	return fmt.Sprintf("ticket-%s-%04d", handle, suffix)
}

// HasParticipant reports whether the user has visibility into the ticket.
func (t *Ticket) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// WithParticipant returns the participant set with the user appended.
// Returns the set unchanged if the user is already present.
func (t *Ticket) WithParticipant(userID string) []string {
	if t.HasParticipant(userID) {
		return t.Participants
	}
	out := make([]string, 0, len(t.Participants)+1)
	out = append(out, t.Participants...)
	return append(out, userID)
}

// WithoutParticipant returns the participant set with the user removed.
func (t *Ticket) WithoutParticipant(userID string) []string {
	out := make([]string, 0, len(t.Participants))
	for _, p := range t.Participants {
		if p != userID {
			out = append(out, p)
		}
	}
	return out
}
