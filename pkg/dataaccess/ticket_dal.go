package dataaccess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wardenhq/warden/pkg/dataaccess/monitoring"
	"github.com/wardenhq/warden/pkg/entities"
	"github.com/wardenhq/warden/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ticketDalName = "ticket_dal"

// TicketPatch is a merge-patch for a ticket record. Only non-nil fields
// are written.
type TicketPatch struct {
	// ClaimedBy overwrites the claimant when set.
	ClaimedBy *string

	// Status overwrites the lifecycle status when set.
	Status *entities.TicketStatus

	// Participants overwrites the participant set when set.
	Participants *[]string
}

// TicketDal is the data access layer for ticket records.
type TicketDal interface {
	// CreateTicket inserts a new ticket record. Returns ErrDuplicate if a
	// ticket already exists for the channel.
	//
	// Creation is intentionally not idempotent: if the insert commits
	// server-side but the client times out, a retried call would race the
	// caller's duplicate-ticket check. The window is accepted, so creation
	// is the one write excluded from the retry loop's transient handling
	// (a duplicate-key result on any attempt is returned as-is).
	CreateTicket(ctx context.Context, ticket *entities.Ticket) error

	// GetTicket gets a ticket by channel ID. Returns ErrNotFound if no
	// ticket exists for the channel.
	GetTicket(ctx context.Context, channelID string) (*entities.Ticket, error)

	// UpdateTicket applies a merge-patch to a ticket and returns the
	// updated record. Returns ErrNotFound if no ticket exists.
	UpdateTicket(ctx context.Context, channelID string, patch TicketPatch) (*entities.Ticket, error)

	// DeleteTicket removes a ticket record and returns the deleted record
	// for use in logging. Returns ErrNotFound if no ticket exists.
	DeleteTicket(ctx context.Context, channelID string) (*entities.Ticket, error)

	// ListTicketsByGuild lists all tickets in a guild.
	ListTicketsByGuild(ctx context.Context, guildID string) ([]*entities.Ticket, error)

	// ListOpenTickets lists the open tickets in a guild.
	ListOpenTickets(ctx context.Context, guildID string) ([]*entities.Ticket, error)

	// ListClosedTickets lists the closed tickets in a guild.
	ListClosedTickets(ctx context.Context, guildID string) ([]*entities.Ticket, error)

	// ListTicketsByUser lists the tickets in a guild that the user created
	// or participates in.
	ListTicketsByUser(ctx context.Context, guildID, userID string) ([]*entities.Ticket, error)
}

type ticketDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewTicketDal creates a new ticket data access layer.
func NewTicketDal() TicketDal {
	l := slog.Default().With(slog.String(logging.KeyDal, ticketDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &ticketDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *ticketDalImpl) collection() *mongo.Collection {
	return d.client.Database(mongoDatabase).Collection(collectionTickets)
}

// observe starts the prometheus metrics for a query and returns the timer.
func (d *ticketDalImpl) observe(query string) *prometheus.Timer {
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, query, mongoDatabase, collectionTickets).Inc()
	return prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, query, mongoDatabase, collectionTickets))
}

func (d *ticketDalImpl) CreateTicket(ctx context.Context, ticket *entities.Ticket) error {
	defer d.observe("create_ticket").ObserveDuration()

	_, err := withRetry(ctx, d.l, ticketDalName, "create_ticket", func(ctx context.Context) (struct{}, error) {
		// Guard the unique key ourselves as well as via the index; a
		// concurrent insert between the check and the insert still
		// surfaces as a duplicate-key error.
		count, err := d.collection().CountDocuments(ctx, bson.M{"channel_id": ticket.ChannelID})
		if err != nil {
			return struct{}{}, fmt.Errorf("error checking for existing ticket: %w", mapMongoErr(err))
		}
		if count > 0 {
			return struct{}{}, ErrDuplicate
		}

		if _, err := d.collection().InsertOne(ctx, ticket); err != nil {
			return struct{}{}, fmt.Errorf("error inserting ticket: %w", mapMongoErr(err))
		}
		return struct{}{}, nil
	})
	return err
}

func (d *ticketDalImpl) GetTicket(ctx context.Context, channelID string) (*entities.Ticket, error) {
	defer d.observe("get_ticket").ObserveDuration()

	return withRetry(ctx, d.l, ticketDalName, "get_ticket", func(ctx context.Context) (*entities.Ticket, error) {
		ticket := new(entities.Ticket)
		err := d.collection().FindOne(ctx, bson.M{"channel_id": channelID}).Decode(ticket)
		if err != nil {
			return nil, fmt.Errorf("error getting ticket: %w", mapMongoErr(err))
		}
		return ticket, nil
	})
}

func (d *ticketDalImpl) UpdateTicket(ctx context.Context, channelID string, patch TicketPatch) (*entities.Ticket, error) {
	defer d.observe("update_ticket").ObserveDuration()

	set := bson.M{}
	if patch.ClaimedBy != nil {
		set["claimed_by"] = *patch.ClaimedBy
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Participants != nil {
		set["participants"] = *patch.Participants
	}

	return withRetry(ctx, d.l, ticketDalName, "update_ticket", func(ctx context.Context) (*entities.Ticket, error) {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		ticket := new(entities.Ticket)
		err := d.collection().FindOneAndUpdate(ctx, bson.M{"channel_id": channelID}, bson.M{"$set": set}, opts).Decode(ticket)
		if err != nil {
			return nil, fmt.Errorf("error updating ticket: %w", mapMongoErr(err))
		}
		return ticket, nil
	})
}

func (d *ticketDalImpl) DeleteTicket(ctx context.Context, channelID string) (*entities.Ticket, error) {
	defer d.observe("delete_ticket").ObserveDuration()

	return withRetry(ctx, d.l, ticketDalName, "delete_ticket", func(ctx context.Context) (*entities.Ticket, error) {
		ticket := new(entities.Ticket)
		err := d.collection().FindOneAndDelete(ctx, bson.M{"channel_id": channelID}).Decode(ticket)
		if err != nil {
			return nil, fmt.Errorf("error deleting ticket: %w", mapMongoErr(err))
		}
		return ticket, nil
	})
}

func (d *ticketDalImpl) ListTicketsByGuild(ctx context.Context, guildID string) ([]*entities.Ticket, error) {
	defer d.observe("list_tickets_by_guild").ObserveDuration()
	return d.list(ctx, "list_tickets_by_guild", bson.M{"guild_id": guildID})
}

func (d *ticketDalImpl) ListOpenTickets(ctx context.Context, guildID string) ([]*entities.Ticket, error) {
	defer d.observe("list_open_tickets").ObserveDuration()
	return d.list(ctx, "list_open_tickets", bson.M{"guild_id": guildID, "status": entities.StatusOpen})
}

func (d *ticketDalImpl) ListClosedTickets(ctx context.Context, guildID string) ([]*entities.Ticket, error) {
	defer d.observe("list_closed_tickets").ObserveDuration()
	return d.list(ctx, "list_closed_tickets", bson.M{"guild_id": guildID, "status": entities.StatusClosed})
}

func (d *ticketDalImpl) ListTicketsByUser(ctx context.Context, guildID, userID string) ([]*entities.Ticket, error) {
	defer d.observe("list_tickets_by_user").ObserveDuration()
	return d.list(ctx, "list_tickets_by_user", bson.M{
		"guild_id": guildID,
		"$or": bson.A{
			bson.M{"creator_id": userID},
			bson.M{"participants": userID},
		},
	})
}

func (d *ticketDalImpl) list(ctx context.Context, query string, filter bson.M) ([]*entities.Ticket, error) {
	return withRetry(ctx, d.l, ticketDalName, query, func(ctx context.Context) ([]*entities.Ticket, error) {
		cursor, err := d.collection().Find(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("error listing tickets: %w", mapMongoErr(err))
		}

		var tickets []*entities.Ticket
		if err := cursor.All(ctx, &tickets); err != nil {
			return nil, fmt.Errorf("error decoding tickets: %w", mapMongoErr(err))
		}
		return tickets, nil
	})
}
