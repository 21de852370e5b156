package ticketing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/pkg/dataaccess"
	"github.com/wardenhq/warden/pkg/entities"
	"github.com/wardenhq/warden/pkg/logging"
)

type fakeSettingsDal struct {
	mu sync.Mutex
	m  map[string]*entities.GuildTicketSettings
}

func (f *fakeSettingsDal) GetSettings(_ context.Context, guildID string) (*entities.GuildTicketSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[guildID]
	if !ok {
		return nil, dataaccess.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSettingsDal) SetSettings(_ context.Context, settings *entities.GuildTicketSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *settings
	f.m[settings.GuildID] = &cp
	return nil
}

type fakeTicketDal struct {
	mu sync.Mutex
	m  map[string]*entities.Ticket
}

func (f *fakeTicketDal) CreateTicket(_ context.Context, ticket *entities.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[ticket.ChannelID]; ok {
		return dataaccess.ErrDuplicate
	}
	cp := *ticket
	f.m[ticket.ChannelID] = &cp
	return nil
}

func (f *fakeTicketDal) GetTicket(_ context.Context, channelID string) (*entities.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.m[channelID]
	if !ok {
		return nil, dataaccess.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTicketDal) UpdateTicket(_ context.Context, channelID string, patch dataaccess.TicketPatch) (*entities.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.m[channelID]
	if !ok {
		return nil, dataaccess.ErrNotFound
	}
	if patch.ClaimedBy != nil {
		t.ClaimedBy = *patch.ClaimedBy
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Participants != nil {
		t.Participants = append([]string(nil), *patch.Participants...)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTicketDal) DeleteTicket(_ context.Context, channelID string) (*entities.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.m[channelID]
	if !ok {
		return nil, dataaccess.ErrNotFound
	}
	delete(f.m, channelID)
	return t, nil
}

func (f *fakeTicketDal) ListTicketsByGuild(_ context.Context, guildID string) ([]*entities.Ticket, error) {
	return f.list(func(t *entities.Ticket) bool { return t.GuildID == guildID })
}

func (f *fakeTicketDal) ListOpenTickets(_ context.Context, guildID string) ([]*entities.Ticket, error) {
	return f.list(func(t *entities.Ticket) bool {
		return t.GuildID == guildID && t.Status == entities.StatusOpen
	})
}

func (f *fakeTicketDal) ListClosedTickets(_ context.Context, guildID string) ([]*entities.Ticket, error) {
	return f.list(func(t *entities.Ticket) bool {
		return t.GuildID == guildID && t.Status == entities.StatusClosed
	})
}

func (f *fakeTicketDal) ListTicketsByUser(_ context.Context, guildID, userID string) ([]*entities.Ticket, error) {
	return f.list(func(t *entities.Ticket) bool {
		return t.GuildID == guildID && (t.CreatorID == userID || t.HasParticipant(userID))
	})
}

func (f *fakeTicketDal) list(match func(*entities.Ticket) bool) ([]*entities.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Ticket
	for _, t := range f.m {
		if match(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type createdChannel struct {
	guildID    string
	name       string
	categoryID string
	policy     AccessPolicy
}

type fakeChannelProvider struct {
	mu sync.Mutex

	nextID     int
	created    []createdChannel
	parents    map[string]string
	granted    []string
	revoked    []string
	deleted    []string
	categories map[string]bool

	createErr error
	deleteErr error
}

func newFakeChannelProvider(categories ...string) *fakeChannelProvider {
	cats := make(map[string]bool, len(categories))
	for _, c := range categories {
		cats[c] = true
	}
	return &fakeChannelProvider{
		parents:    make(map[string]string),
		categories: cats,
	}
}

func (f *fakeChannelProvider) CreateTicketChannel(_ context.Context, guildID, name, _, categoryID string, policy AccessPolicy) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("chan-%d", f.nextID)
	f.created = append(f.created, createdChannel{guildID: guildID, name: name, categoryID: categoryID, policy: policy})
	f.parents[id] = categoryID
	return id, nil
}

func (f *fakeChannelProvider) SetParentCategory(_ context.Context, channelID, categoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parents[channelID] = categoryID
	return nil
}

func (f *fakeChannelProvider) GrantMemberAccess(_ context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, channelID+":"+userID)
	return nil
}

func (f *fakeChannelProvider) RevokeMemberAccess(_ context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, channelID+":"+userID)
	return nil
}

func (f *fakeChannelProvider) DeleteChannel(_ context.Context, channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakeChannelProvider) CategoryExists(_ context.Context, categoryID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.categories[categoryID], nil
}

func (f *fakeChannelProvider) deletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeLogSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (f *fakeLogSink) Send(_ context.Context, _ string, entry LogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeLogSink) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Title)
	}
	return out
}

type managerFixture struct {
	manager  *Manager
	settings *fakeSettingsDal
	tickets  *fakeTicketDal
	channels *fakeChannelProvider
	sink     *fakeLogSink
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	settings := &fakeSettingsDal{m: map[string]*entities.GuildTicketSettings{
		"G1": {
			GuildID:           "G1",
			OpenCategoryID:    "catOpen",
			ArchiveCategoryID: "catArch",
			SupportRoleIDs:    []string{"R1"},
			LogChannelID:      "logChan",
		},
	}}
	tickets := &fakeTicketDal{m: make(map[string]*entities.Ticket)}
	channels := newFakeChannelProvider("catOpen", "catArch")
	sink := new(fakeLogSink)

	m := NewManager(l, settings, tickets, channels, sink)
	m.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	m.suffix = func() int { return 42 }
	m.delay = 10 * time.Millisecond

	return &managerFixture{
		manager:  m,
		settings: settings,
		tickets:  tickets,
		channels: channels,
		sink:     sink,
	}
}

func (f *managerFixture) createTicket(t *testing.T) *entities.Ticket {
	t.Helper()
	ticket, err := f.manager.Create(context.Background(), CreateRequest{
		GuildID:       "G1",
		CreatorID:     "U1",
		CreatorHandle: "alice",
		Issue:         "billing issue",
	})
	require.NoError(t, err)
	return ticket
}

func TestManagerCreate(t *testing.T) {
	f := newManagerFixture(t)

	ticket := f.createTicket(t)

	require.Equal(t, "chan-1", ticket.ChannelID)
	require.Equal(t, "G1", ticket.GuildID)
	require.Equal(t, "U1", ticket.CreatorID)
	require.Empty(t, ticket.ClaimedBy)
	require.Equal(t, entities.StatusOpen, ticket.Status)
	require.Equal(t, []string{"U1"}, ticket.Participants)

	// The channel is created under the open category with the creator and
	// the support roles in the policy.
	require.Len(t, f.channels.created, 1)
	created := f.channels.created[0]
	require.Equal(t, "catOpen", created.categoryID)
	require.Equal(t, "ticket-alice-0042", created.name)
	require.Equal(t, "G1", created.policy.EveryoneRoleID)
	require.Equal(t, []string{"U1"}, created.policy.MemberIDs)
	require.Equal(t, []string{"R1"}, created.policy.RoleIDs)

	// Exactly one open ticket for the creator.
	listed, err := f.tickets.ListTicketsByUser(context.Background(), "G1", "U1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, entities.StatusOpen, listed[0].Status)

	require.Equal(t, []string{"Ticket opened"}, f.sink.titles())
}

func TestManagerCreateDuplicateOpenTicket(t *testing.T) {
	f := newManagerFixture(t)
	f.createTicket(t)

	_, err := f.manager.Create(context.Background(), CreateRequest{
		GuildID:       "G1",
		CreatorID:     "U1",
		CreatorHandle: "alice",
		Issue:         "second issue",
	})
	require.ErrorIs(t, err, ErrOpenTicketExists)
	require.Equal(t, KindValidation, KindOf(err))

	// No second record and no second channel.
	require.Len(t, f.tickets.m, 1)
	require.Len(t, f.channels.created, 1)
}

func TestManagerCreateAfterDeleteAllowed(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	require.NoError(t, f.manager.Delete(context.Background(), ticket.ChannelID, "S1", []string{"R1"}))

	next, err := f.manager.Create(context.Background(), CreateRequest{
		GuildID:       "G1",
		CreatorID:     "U1",
		CreatorHandle: "alice",
		Issue:         "another issue",
	})
	require.NoError(t, err)
	require.NotEqual(t, ticket.ChannelID, next.ChannelID)
}

func TestManagerCreateUnconfiguredGuild(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Create(context.Background(), CreateRequest{
		GuildID:       "G2",
		CreatorID:     "U1",
		CreatorHandle: "alice",
		Issue:         "hello",
	})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestManagerCreateMissingCategory(t *testing.T) {
	f := newManagerFixture(t)
	f.channels.categories["catOpen"] = false

	_, err := f.manager.Create(context.Background(), CreateRequest{
		GuildID:       "G1",
		CreatorID:     "U1",
		CreatorHandle: "alice",
		Issue:         "hello",
	})
	require.ErrorIs(t, err, ErrOpenCategoryMissing)
	require.Empty(t, f.tickets.m)
}

func TestManagerCreateChannelFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.channels.createErr = errors.New("boom")

	_, err := f.manager.Create(context.Background(), CreateRequest{
		GuildID:       "G1",
		CreatorID:     "U1",
		CreatorHandle: "alice",
		Issue:         "hello",
	})
	require.Error(t, err)
	require.Equal(t, KindProvider, KindOf(err))

	// No partial record is persisted when channel creation fails.
	require.Empty(t, f.tickets.m)
}

func TestManagerClaim(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	claimed, err := f.manager.Claim(context.Background(), ticket.ChannelID, "S1", []string{"R1", "other"})
	require.NoError(t, err)
	require.Equal(t, "S1", claimed.ClaimedBy)

	// Reclaiming overwrites, last writer wins.
	claimed, err = f.manager.Claim(context.Background(), ticket.ChannelID, "S2", []string{"R1"})
	require.NoError(t, err)
	require.Equal(t, "S2", claimed.ClaimedBy)
}

func TestManagerClaimWithoutSupportRole(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	_, err := f.manager.Claim(context.Background(), ticket.ChannelID, "U2", []string{"other"})
	require.ErrorIs(t, err, ErrMissingSupportRole)
	require.Equal(t, KindPermission, KindOf(err))

	// Claimant unchanged.
	got, err := f.tickets.GetTicket(context.Background(), ticket.ChannelID)
	require.NoError(t, err)
	require.Empty(t, got.ClaimedBy)
}

func TestManagerClaimNotTicketChannel(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Claim(context.Background(), "random-channel", "S1", []string{"R1"})
	require.ErrorIs(t, err, ErrNotTicketChannel)
}

func TestManagerClose(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	closed, err := f.manager.Close(context.Background(), ticket.ChannelID, "U1")
	require.NoError(t, err)
	require.Equal(t, entities.StatusClosed, closed.Status)
	require.Equal(t, "catArch", f.channels.parents[ticket.ChannelID])

	// Closing again is idempotent in observable status, no error.
	closed, err = f.manager.Close(context.Background(), ticket.ChannelID, "S1")
	require.NoError(t, err)
	require.Equal(t, entities.StatusClosed, closed.Status)
}

func TestManagerDelete(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	require.NoError(t, f.manager.Delete(context.Background(), ticket.ChannelID, "S1", []string{"R1"}))

	// The record is gone immediately.
	_, err := f.tickets.GetTicket(context.Background(), ticket.ChannelID)
	require.ErrorIs(t, err, dataaccess.ErrNotFound)

	// The channel goes after the delay.
	require.Empty(t, f.channels.deletedChannels())
	require.Eventually(t, func() bool {
		deleted := f.channels.deletedChannels()
		return len(deleted) == 1 && deleted[0] == ticket.ChannelID
	}, time.Second, 5*time.Millisecond)
}

func TestManagerDeleteByClaimant(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	_, err := f.manager.Claim(context.Background(), ticket.ChannelID, "S1", []string{"R1"})
	require.NoError(t, err)

	// The claimant may delete without passing a support role.
	require.NoError(t, f.manager.Delete(context.Background(), ticket.ChannelID, "S1", nil))
}

func TestManagerDeleteDenied(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	err := f.manager.Delete(context.Background(), ticket.ChannelID, "U1", nil)
	require.ErrorIs(t, err, ErrNotClaimantOrSupport)

	_, err = f.tickets.GetTicket(context.Background(), ticket.ChannelID)
	require.NoError(t, err)
}

func TestManagerDeleteChannelFailureLeavesRecordGone(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)
	f.channels.deleteErr = errors.New("channel already gone")

	require.NoError(t, f.manager.Delete(context.Background(), ticket.ChannelID, "S1", []string{"R1"}))

	// The record stays deleted even though the delayed channel deletion
	// will fail.
	_, err := f.tickets.GetTicket(context.Background(), ticket.ChannelID)
	require.ErrorIs(t, err, dataaccess.ErrNotFound)
}

func TestManagerParticipants(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	added, err := f.manager.AddParticipant(context.Background(), ticket.ChannelID, "S1", "U2")
	require.NoError(t, err)
	require.Equal(t, []string{"U1", "U2"}, added.Participants)
	require.Equal(t, []string{ticket.ChannelID + ":U2"}, f.channels.granted)

	// Adding again is rejected.
	_, err = f.manager.AddParticipant(context.Background(), ticket.ChannelID, "S1", "U2")
	require.ErrorIs(t, err, ErrAlreadyParticipant)

	// Add then remove round-trips back to the prior set.
	removed, err := f.manager.RemoveParticipant(context.Background(), ticket.ChannelID, "S1", "U2")
	require.NoError(t, err)
	require.Equal(t, []string{"U1"}, removed.Participants)
	require.Equal(t, []string{ticket.ChannelID + ":U2"}, f.channels.revoked)
}

func TestManagerRemoveCreatorAlwaysRejected(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	for _, actor := range []string{"U1", "S1", "U2"} {
		_, err := f.manager.RemoveParticipant(context.Background(), ticket.ChannelID, actor, "U1")
		require.ErrorIs(t, err, ErrCannotRemoveCreator, "actor %s", actor)
	}

	got, err := f.tickets.GetTicket(context.Background(), ticket.ChannelID)
	require.NoError(t, err)
	require.Equal(t, []string{"U1"}, got.Participants)
}

func TestManagerRemoveUnknownParticipant(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	_, err := f.manager.RemoveParticipant(context.Background(), ticket.ChannelID, "S1", "U9")
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestManagerConcurrentClaims(t *testing.T) {
	f := newManagerFixture(t)
	ticket := f.createTicket(t)

	// Two rapid claims both succeed; the last writer wins and the record
	// ends up with exactly one of the two claimants.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, actor := range []string{"S1", "S2"} {
		actor := actor
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Claim(context.Background(), ticket.ChannelID, actor, []string{"R1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.tickets.GetTicket(context.Background(), ticket.ChannelID)
	require.NoError(t, err)
	require.Contains(t, []string{"S1", "S2"}, got.ClaimedBy)
}

func TestControlActionString(t *testing.T) {
	require.Equal(t, "claim", ActionClaim.String())
	require.Equal(t, "close", ActionClose.String())
	require.Equal(t, "delete", ActionDelete.String())
	require.Equal(t, "unknown_action_(99)", ControlAction(99).String())
}
