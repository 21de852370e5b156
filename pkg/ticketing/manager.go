package ticketing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/wardenhq/warden/pkg/custom"
	"github.com/wardenhq/warden/pkg/dataaccess"
	"github.com/wardenhq/warden/pkg/entities"
	"github.com/wardenhq/warden/pkg/logging"
)

// deleteDelay is the user-visible pause between a delete being confirmed
// and the channel disappearing, so the closing message has time to render.
const deleteDelay = 5 * time.Second

// Audit embed colours.
const (
	colourCreated = 0x2ecc71
	colourClaimed = 0x3498db
	colourClosed  = 0xe67e22
	colourDeleted = 0xe74c3c
	colourMember  = 0x95a5a6
)

// CreateRequest is the input for opening a ticket.
type CreateRequest struct {
	// GuildID is the guild the ticket is opened in.
	GuildID string

	// CreatorID is the user opening the ticket.
	CreatorID string

	// CreatorHandle is the creator's username, used for the channel name.
	CreatorHandle string

	// Issue is the free-text issue description from the open-ticket form.
	Issue string
}

// Manager owns all writes to ticket and settings records and drives the
// channel/permission provider through each lifecycle transition.
type Manager struct {
	// l is the logger.
	l *slog.Logger

	// settings is the per-guild settings store.
	settings dataaccess.SettingsDal

	// tickets is the ticket record store.
	tickets dataaccess.TicketDal

	// channels is the external channel/permission provider.
	channels ChannelProvider

	// logs is the audit sink.
	logs LogSink

	// locks serializes transitions per ticket channel, and creation per
	// guild+creator. This only covers a single process; two bot
	// instances can still race.
	locks *keyedLocks

	// now and suffix are swappable for tests.
	now    func() time.Time
	suffix func() int

	// delay is the channel deletion delay.
	delay time.Duration
}

// NewManager creates a new ticket lifecycle manager.
func NewManager(l *slog.Logger, settings dataaccess.SettingsDal, tickets dataaccess.TicketDal, channels ChannelProvider, logs LogSink) *Manager {
	return &Manager{
		l:        l,
		settings: settings,
		tickets:  tickets,
		channels: channels,
		logs:     logs,
		locks:    newKeyedLocks(),
		now:      time.Now,
		suffix:   func() int { return rand.Intn(10000) },
		delay:    deleteDelay,
	}
}

// Create opens a ticket: allocates the channel under the open category,
// persists the record and emits an audit entry. The record is only written
// once the channel exists, so a channel-creation failure leaves no state.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*entities.Ticket, error) {
	unlock := m.locks.lock("create:" + req.GuildID + ":" + req.CreatorID)
	defer unlock()

	settings, err := m.guildSettings(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}

	exists, err := m.channels.CategoryExists(ctx, settings.OpenCategoryID)
	if err != nil {
		return nil, providerError(err)
	}
	if !exists {
		return nil, ErrOpenCategoryMissing
	}

	// One open ticket per creator per guild, checked at creation time.
	existing, err := m.tickets.ListTicketsByUser(ctx, req.GuildID, req.CreatorID)
	if err != nil {
		return nil, storeError(err)
	}
	for _, t := range existing {
		if t.CreatorID == req.CreatorID && t.Status == entities.StatusOpen {
			return nil, ErrOpenTicketExists
		}
	}

	name := entities.TicketName(req.CreatorHandle, m.suffix())
	topic := fmt.Sprintf("Ticket opened by %s", req.CreatorHandle)

	channelID, err := m.channels.CreateTicketChannel(ctx, req.GuildID, name, topic, settings.OpenCategoryID, AccessPolicy{
		EveryoneRoleID: req.GuildID,
		MemberIDs:      []string{req.CreatorID},
		RoleIDs:        settings.SupportRoleIDs,
	})
	if err != nil {
		return nil, providerError(err)
	}

	ticket := &entities.Ticket{
		ChannelID:    channelID,
		GuildID:      req.GuildID,
		CreatorID:    req.CreatorID,
		Status:       entities.StatusOpen,
		Participants: []string{req.CreatorID},
		CreatedAt:    custom.Datetime(m.now().UTC()),
	}

	if err := m.tickets.CreateTicket(ctx, ticket); err != nil {
		// The channel exists but the record does not; log the
		// inconsistency rather than masking the failure.
		m.l.Warn("Ticket channel created but record write failed",
			slog.String(logging.KeyGuild, req.GuildID),
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()),
		)
		return nil, storeError(err)
	}

	m.logs.Send(ctx, req.GuildID, LogEntry{
		Title:       "Ticket opened",
		Description: req.Issue,
		Color:       colourCreated,
		ActorID:     req.CreatorID,
		Fields: []LogField{
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", channelID)},
		},
	})

	return ticket, nil
}

// Claim assigns the ticket to the acting support member. Reclaiming
// overwrites the previous claimant; no history is kept.
func (m *Manager) Claim(ctx context.Context, channelID, actorID string, actorRoles []string) (*entities.Ticket, error) {
	unlock := m.locks.lock(channelID)
	defer unlock()

	ticket, err := m.ticket(ctx, channelID)
	if err != nil {
		return nil, err
	}

	settings, err := m.guildSettings(ctx, ticket.GuildID)
	if err != nil {
		return nil, err
	}

	if !settings.IsSupportRole(actorRoles) {
		return nil, ErrMissingSupportRole
	}

	updated, err := m.tickets.UpdateTicket(ctx, channelID, dataaccess.TicketPatch{
		ClaimedBy: &actorID,
	})
	if err != nil {
		return nil, storeError(err)
	}

	m.logs.Send(ctx, ticket.GuildID, LogEntry{
		Title:   "Ticket claimed",
		Color:   colourClaimed,
		ActorID: actorID,
		Fields: []LogField{
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", channelID)},
		},
	})

	return updated, nil
}

// Close archives the ticket. Anyone with access to the channel may close
// it, and closing an already-closed ticket is a no-op in effect: the status
// is re-set and the channel re-parented without error.
func (m *Manager) Close(ctx context.Context, channelID, actorID string) (*entities.Ticket, error) {
	unlock := m.locks.lock(channelID)
	defer unlock()

	ticket, err := m.ticket(ctx, channelID)
	if err != nil {
		return nil, err
	}

	settings, err := m.guildSettings(ctx, ticket.GuildID)
	if err != nil {
		return nil, err
	}

	if err := m.channels.SetParentCategory(ctx, channelID, settings.ArchiveCategoryID); err != nil {
		return nil, providerError(err)
	}

	closed := entities.StatusClosed
	updated, err := m.tickets.UpdateTicket(ctx, channelID, dataaccess.TicketPatch{
		Status: &closed,
	})
	if err != nil {
		return nil, storeError(err)
	}

	m.logs.Send(ctx, ticket.GuildID, LogEntry{
		Title:   "Ticket closed",
		Color:   colourClosed,
		ActorID: actorID,
		Fields: []LogField{
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", channelID)},
		},
	})

	return updated, nil
}

// Delete removes the ticket record and schedules the channel deletion
// after a short delay. The audit entry is emitted before the record goes,
// since afterwards the channel reference is invalid. The delayed deletion
// is fire and forget; if it fails the orphaned channel is logged, not
// retried.
func (m *Manager) Delete(ctx context.Context, channelID, actorID string, actorRoles []string) error {
	unlock := m.locks.lock(channelID)
	defer unlock()

	ticket, err := m.ticket(ctx, channelID)
	if err != nil {
		return err
	}

	settings, err := m.guildSettings(ctx, ticket.GuildID)
	if err != nil {
		return err
	}

	if !settings.IsSupportRole(actorRoles) && ticket.ClaimedBy != actorID {
		return ErrNotClaimantOrSupport
	}

	m.logs.Send(ctx, ticket.GuildID, LogEntry{
		Title:   "Ticket deleted",
		Color:   colourDeleted,
		ActorID: actorID,
		Fields: []LogField{
			{Name: "Creator", Value: fmt.Sprintf("<@%s>", ticket.CreatorID)},
			{Name: "Opened", Value: ticket.CreatedAt.String()},
		},
	})

	if _, err := m.tickets.DeleteTicket(ctx, channelID); err != nil {
		return storeError(err)
	}

	reason := fmt.Sprintf("Ticket deleted by %s", actorID)
	guildID := ticket.GuildID
	time.AfterFunc(m.delay, func() {
		if err := m.channels.DeleteChannel(context.Background(), channelID, reason); err != nil {
			m.l.Error("Delayed ticket channel deletion failed, channel is orphaned",
				slog.String(logging.KeyGuild, guildID),
				slog.String(logging.KeyChannel, channelID),
				slog.String(logging.KeyError, err.Error()),
			)
		}
	})

	return nil
}

// AddParticipant grants a user visibility into the ticket channel.
func (m *Manager) AddParticipant(ctx context.Context, channelID, actorID, targetID string) (*entities.Ticket, error) {
	unlock := m.locks.lock(channelID)
	defer unlock()

	ticket, err := m.ticket(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if ticket.HasParticipant(targetID) {
		return nil, ErrAlreadyParticipant
	}

	if err := m.channels.GrantMemberAccess(ctx, channelID, targetID); err != nil {
		return nil, providerError(err)
	}

	participants := ticket.WithParticipant(targetID)
	updated, err := m.tickets.UpdateTicket(ctx, channelID, dataaccess.TicketPatch{
		Participants: &participants,
	})
	if err != nil {
		return nil, storeError(err)
	}

	m.logs.Send(ctx, ticket.GuildID, LogEntry{
		Title:   "Participant added",
		Color:   colourMember,
		ActorID: actorID,
		Fields: []LogField{
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", channelID)},
			{Name: "User", Value: fmt.Sprintf("<@%s>", targetID)},
		},
	})

	return updated, nil
}

// RemoveParticipant revokes a user's visibility into the ticket channel.
// The creator can never be removed.
func (m *Manager) RemoveParticipant(ctx context.Context, channelID, actorID, targetID string) (*entities.Ticket, error) {
	unlock := m.locks.lock(channelID)
	defer unlock()

	ticket, err := m.ticket(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if targetID == ticket.CreatorID {
		return nil, ErrCannotRemoveCreator
	}
	if !ticket.HasParticipant(targetID) {
		return nil, ErrNotParticipant
	}

	if err := m.channels.RevokeMemberAccess(ctx, channelID, targetID); err != nil {
		return nil, providerError(err)
	}

	participants := ticket.WithoutParticipant(targetID)
	updated, err := m.tickets.UpdateTicket(ctx, channelID, dataaccess.TicketPatch{
		Participants: &participants,
	})
	if err != nil {
		return nil, storeError(err)
	}

	m.logs.Send(ctx, ticket.GuildID, LogEntry{
		Title:   "Participant removed",
		Color:   colourMember,
		ActorID: actorID,
		Fields: []LogField{
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", channelID)},
			{Name: "User", Value: fmt.Sprintf("<@%s>", targetID)},
		},
	})

	return updated, nil
}

// Ticket looks up the ticket bound to a channel.
func (m *Manager) Ticket(ctx context.Context, channelID string) (*entities.Ticket, error) {
	return m.ticket(ctx, channelID)
}

func (m *Manager) ticket(ctx context.Context, channelID string) (*entities.Ticket, error) {
	ticket, err := m.tickets.GetTicket(ctx, channelID)
	switch {
	case errors.Is(err, dataaccess.ErrNotFound):
		return nil, ErrNotTicketChannel
	case err != nil:
		return nil, storeError(err)
	}
	return ticket, nil
}

func (m *Manager) guildSettings(ctx context.Context, guildID string) (*entities.GuildTicketSettings, error) {
	settings, err := m.settings.GetSettings(ctx, guildID)
	switch {
	case errors.Is(err, dataaccess.ErrNotFound):
		return nil, ErrNotConfigured
	case err != nil:
		return nil, storeError(err)
	}
	return settings, nil
}
