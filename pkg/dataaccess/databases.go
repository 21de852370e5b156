package dataaccess

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDB is the Mongo client. This is a connection pool, connected once at
// startup and shared for the process lifetime.
var MongoDB *mongo.Client

const (
	mongoDatabase = "warden"

	// collectionSettings holds one GuildTicketSettings document per guild.
	collectionSettings = "ticketsettings"

	// collectionTickets holds one Ticket document per ticket channel.
	collectionTickets = "tickets"
)
