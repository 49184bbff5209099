package clientsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/logging"
	"dm-service/internal/models"
)

type fakeAPI struct {
	mu      sync.Mutex
	history map[string]func(ctx context.Context) ([]models.Message, error)
	users   map[string]models.PublicUser
	sent    []SendInput
	deleted []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		history: make(map[string]func(ctx context.Context) ([]models.Message, error)),
		users:   make(map[string]models.PublicUser),
	}
}

func (f *fakeAPI) History(ctx context.Context, partnerID string) ([]models.Message, error) {
	f.mu.Lock()
	fn := f.history[partnerID]
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (f *fakeAPI) User(_ context.Context, id string) (models.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.PublicUser{}, errors.New("not found")
	}
	return u, nil
}

func (f *fakeAPI) Send(_ context.Context, partnerID string, in SendInput) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	return msg("sent-1", "alice", partnerID, in.Text), nil
}

func (f *fakeAPI) Edit(_ context.Context, messageID, text string) (models.Message, error) {
	m := msg(messageID, "alice", "bob", text)
	m.Edited = true
	return m, nil
}

func (f *fakeAPI) React(_ context.Context, messageID, _ string) (models.Message, error) {
	return msg(messageID, "alice", "bob", ""), nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeAPI) DeleteChat(_ context.Context, partnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, "chat:"+partnerID)
	return nil
}

type memChatList struct {
	mu    sync.Mutex
	users []models.PublicUser
	saves int
}

func (m *memChatList) Load() ([]models.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users, nil
}

func (m *memChatList) Save(users []models.PublicUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = users
	m.saves++
	return nil
}

func (m *memChatList) snapshot() ([]models.PublicUser, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users, m.saves
}

func newTestSyncer(t *testing.T, api *fakeAPI, store *memChatList) *Syncer {
	t.Helper()
	s, err := NewSyncer(alice, api, store, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSyncerSwitchCancelsStaleFetch(t *testing.T) {
	api := newFakeAPI()
	release := make(chan struct{})
	var bobCtxErr error
	api.history["bob"] = func(ctx context.Context) ([]models.Message, error) {
		<-release
		bobCtxErr = ctx.Err()
		return []models.Message{msg("b1", "bob", "alice", "late")}, nil
	}
	api.history["carol"] = func(context.Context) ([]models.Message, error) {
		return []models.Message{msg("c1", "carol", "alice", "fresh")}, nil
	}
	s := newTestSyncer(t, api, &memChatList{})

	s.Select(t.Context(), bob)
	s.Select(t.Context(), carol)
	close(release)
	s.Wait()

	state := s.State()
	require.NotNil(t, state.Selected)
	assert.Equal(t, "carol", state.Selected.ID)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "c1", state.Messages[0].ID)
	assert.False(t, state.Loading)
	assert.ErrorIs(t, bobCtxErr, context.Canceled)
}

func TestSyncerHistoryFailure(t *testing.T) {
	api := newFakeAPI()
	api.history["bob"] = func(context.Context) ([]models.Message, error) {
		return nil, errors.New("502")
	}
	s := newTestSyncer(t, api, &memChatList{})

	s.Select(t.Context(), bob)
	s.Wait()

	state := s.State()
	assert.False(t, state.Loading)
	assert.Equal(t, "502", state.LastError)
}

func TestSyncerResolvesUnknownSender(t *testing.T) {
	api := newFakeAPI()
	api.users["dave"] = models.PublicUser{ID: "dave", FullName: "dave"}
	store := &memChatList{users: []models.PublicUser{bob}}
	s := newTestSyncer(t, api, store)

	s.Dispatch(t.Context(), MessagePushed{Message: msg("d1", "dave", "alice", "hello")})

	state := s.State()
	assert.Equal(t, []models.PublicUser{bob, {ID: "dave", FullName: "dave"}}, state.ChattedUsers)
	assert.Empty(t, state.Messages)

	saved, _ := store.snapshot()
	assert.Equal(t, state.ChattedUsers, saved)

	s.Dispatch(t.Context(), MessagePushed{Message: msg("d2", "dave", "alice", "again")})
	_, saves := store.snapshot()
	assert.Equal(t, 1, saves)
}

func TestSyncerLookupFailureLeavesListAlone(t *testing.T) {
	store := &memChatList{}
	s := newTestSyncer(t, newFakeAPI(), store)

	s.Dispatch(t.Context(), MessagePushed{Message: msg("x1", "ghost", "alice", "boo")})

	assert.Empty(t, s.State().ChattedUsers)
	_, saves := store.snapshot()
	assert.Zero(t, saves)
}

func TestSyncerOwnMutations(t *testing.T) {
	api := newFakeAPI()
	api.history["bob"] = func(context.Context) ([]models.Message, error) {
		return []models.Message{msg("m1", "alice", "bob", "first")}, nil
	}
	store := &memChatList{}
	s := newTestSyncer(t, api, store)

	_, err := s.Send(t.Context(), SendInput{Text: "nobody"})
	require.ErrorIs(t, err, ErrNoConversation)

	var changes int
	s.OnChange(func(State) { changes++ })

	s.Select(t.Context(), bob)
	s.Wait()

	sent, err := s.Send(t.Context(), SendInput{Text: "second"})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", sent.ID)
	saved, _ := store.snapshot()
	assert.Equal(t, []models.PublicUser{bob}, saved)

	require.NoError(t, s.Edit(t.Context(), "m1", "first!"))
	require.NoError(t, s.React(t.Context(), "sent-1", "🔥"))

	state := s.State()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "first!", state.Messages[0].Text)
	assert.True(t, state.Messages[0].Edited)
	assert.Equal(t, "🔥", state.Messages[1].Reaction)

	require.NoError(t, s.Delete(t.Context(), "m1"))
	assert.Len(t, s.State().Messages, 1)

	require.NoError(t, s.DeleteChat(t.Context(), "bob"))
	state = s.State()
	assert.Nil(t, state.Selected)
	assert.Empty(t, state.ChattedUsers)
	saved, _ = store.snapshot()
	assert.Empty(t, saved)
	assert.Equal(t, []string{"m1", "chat:bob"}, api.deleted)
	assert.Positive(t, changes)
}
