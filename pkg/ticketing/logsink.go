package ticketing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenhq/warden/pkg/dataaccess"
	"github.com/wardenhq/warden/pkg/logging"
	"golang.org/x/time/rate"
)

// discordLogSink sends audit embeds to the guild's configured log channel.
// Sends are rate limited so a burst of transitions cannot trip the Discord
// message rate limit, and happen off the caller's goroutine so a slow send
// never delays a transition.
type discordLogSink struct {
	l        *slog.Logger
	s        *discordgo.Session
	settings dataaccess.SettingsDal
	limiter  *rate.Limiter
}

// NewDiscordLogSink creates a LogSink backed by the guild log channel.
func NewDiscordLogSink(l *slog.Logger, s *discordgo.Session, settings dataaccess.SettingsDal) LogSink {
	return &discordLogSink{
		l:        l,
		s:        s,
		settings: settings,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (d *discordLogSink) Send(_ context.Context, guildID string, entry LogEntry) {
	go d.send(guildID, entry)
}

func (d *discordLogSink) send(guildID string, entry LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	settings, err := d.settings.GetSettings(ctx, guildID)
	if errors.Is(err, dataaccess.ErrNotFound) {
		return
	} else if err != nil {
		d.l.Warn("Could not resolve log channel, dropping audit entry",
			slog.String(logging.KeyGuild, guildID),
			slog.String(logging.KeyError, err.Error()),
		)
		return
	}

	if settings.LogChannelID == "" {
		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(entry.Fields)+1)
	if entry.ActorID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Actor",
			Value:  "<@" + entry.ActorID + ">",
			Inline: true,
		})
	}
	for _, f := range entry.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       entry.Title,
		Description: entry.Description,
		Color:       entry.Color,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	if _, err := d.s.ChannelMessageSendEmbed(settings.LogChannelID, embed); err != nil {
		d.l.Warn("Error sending audit entry",
			slog.String(logging.KeyGuild, guildID),
			slog.String(logging.KeyChannel, settings.LogChannelID),
			slog.String(logging.KeyError, err.Error()),
		)
	}
}
