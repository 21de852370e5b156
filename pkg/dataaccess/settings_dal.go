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

const settingsDalName = "settings_dal"

// SettingsDal is the data access layer for per-guild ticketing settings.
type SettingsDal interface {
	// GetSettings gets the ticketing settings for a guild. Returns
	// ErrNotFound if the guild has never been set up.
	GetSettings(ctx context.Context, guildID string) (*entities.GuildTicketSettings, error)

	// SetSettings replaces the ticketing settings for a guild wholesale
	// (upsert). There is no partial update.
	SetSettings(ctx context.Context, settings *entities.GuildTicketSettings) error
}

type settingsDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewSettingsDal creates a new settings data access layer.
func NewSettingsDal() SettingsDal {
	l := slog.Default().With(slog.String(logging.KeyDal, settingsDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &settingsDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *settingsDalImpl) GetSettings(ctx context.Context, guildID string) (*entities.GuildTicketSettings, error) {
	collection := d.client.Database(mongoDatabase).Collection(collectionSettings)

	monitoring.MongoTotalRequests.WithLabelValues(settingsDalName, "get_settings", mongoDatabase, collectionSettings).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(settingsDalName, "get_settings", mongoDatabase, collectionSettings))
	defer t.ObserveDuration()

	return withRetry(ctx, d.l, settingsDalName, "get_settings", func(ctx context.Context) (*entities.GuildTicketSettings, error) {
		settings := new(entities.GuildTicketSettings)
		err := collection.FindOne(ctx, bson.M{"guild_id": guildID}).Decode(settings)
		if err != nil {
			return nil, fmt.Errorf("error getting settings: %w", mapMongoErr(err))
		}
		return settings, nil
	})
}

func (d *settingsDalImpl) SetSettings(ctx context.Context, settings *entities.GuildTicketSettings) error {
	collection := d.client.Database(mongoDatabase).Collection(collectionSettings)

	monitoring.MongoTotalRequests.WithLabelValues(settingsDalName, "set_settings", mongoDatabase, collectionSettings).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(settingsDalName, "set_settings", mongoDatabase, collectionSettings))
	defer t.ObserveDuration()

	_, err := withRetry(ctx, d.l, settingsDalName, "set_settings", func(ctx context.Context) (struct{}, error) {
		opts := options.Replace().SetUpsert(true)
		_, err := collection.ReplaceOne(ctx, bson.M{"guild_id": settings.GuildID}, settings, opts)
		if err != nil {
			return struct{}{}, fmt.Errorf("error replacing settings: %w", mapMongoErr(err))
		}
		return struct{}{}, nil
	})
	return err
}
