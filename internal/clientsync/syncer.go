package clientsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"dm-service/internal/logging"
	"dm-service/internal/models"
)

// ErrNoConversation is returned by Send when nothing is selected.
var ErrNoConversation = errors.New("no conversation selected")

// SendInput is the body of a send call.
type SendInput struct {
	Text    string `json:"text,omitempty"`
	Image   string `json:"image,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// API is the subset of the REST surface the syncer drives.
type API interface {
	History(ctx context.Context, partnerID string) ([]models.Message, error)
	User(ctx context.Context, id string) (models.PublicUser, error)
	Send(ctx context.Context, partnerID string, in SendInput) (models.Message, error)
	Edit(ctx context.Context, messageID, text string) (models.Message, error)
	React(ctx context.Context, messageID, emoji string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	DeleteChat(ctx context.Context, partnerID string) error
}

// Syncer owns a State and feeds it from REST calls and pushed events.
type Syncer struct {
	api   API
	store ChatList
	log   logging.Logger

	mu       sync.Mutex
	state    State
	seq      uint64
	cancel   context.CancelFunc
	onChange func(State)

	saveMu  sync.Mutex
	fetches sync.WaitGroup
}

// NewSyncer restores the chat list from store and starts with nothing open.
func NewSyncer(me models.PublicUser, api API, store ChatList, log logging.Logger) (*Syncer, error) {
	users, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load chat list: %w", err)
	}
	return &Syncer{
		api:   api,
		store: store,
		log:   log,
		state: State{Me: me, ChattedUsers: users},
	}, nil
}

// OnChange registers fn to observe every new state.
func (s *Syncer) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// State returns the current state. Its slices are shared and must not be
// modified.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Select opens the conversation with partner. A history fetch still running
// for an earlier selection is cancelled and its result never applied.
func (s *Syncer) Select(ctx context.Context, partner models.PublicUser) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	prev, next := s.reduceLocked(ConversationSelected{Partner: partner, Seq: seq})
	s.mu.Unlock()
	s.settle(prev, next)

	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		defer cancel()

		msgs, err := s.api.History(fetchCtx, partner.ID)
		if fetchCtx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn(fetchCtx, "history fetch failed", "partner_id", partner.ID, "err", err)
			s.apply(HistoryFailed{Seq: seq, Err: err.Error()})
			return
		}
		s.apply(HistoryLoaded{Seq: seq, Messages: msgs})
	}()
}

// Dispatch applies a pushed or externally produced action. A pushed message
// from a user missing from the chat list triggers a directory lookup.
func (s *Syncer) Dispatch(ctx context.Context, a Action) {
	pushed, isPush := a.(MessagePushed)

	s.mu.Lock()
	var unknown string
	var lookup bool
	if isPush {
		unknown, lookup = UnknownPartner(s.state, pushed.Message)
	}
	prev, next := s.reduceLocked(a)
	s.mu.Unlock()
	s.settle(prev, next)

	if lookup {
		s.resolve(ctx, unknown)
	}
}

// Send posts in to the open conversation.
func (s *Syncer) Send(ctx context.Context, in SendInput) (models.Message, error) {
	selected := s.State().Selected
	if selected == nil {
		return models.Message{}, ErrNoConversation
	}
	msg, err := s.api.Send(ctx, selected.ID, in)
	if err != nil {
		return models.Message{}, err
	}
	s.apply(MessageSent{Message: msg})
	return msg, nil
}

// Edit changes the text of one of the client's messages.
func (s *Syncer) Edit(ctx context.Context, messageID, text string) error {
	msg, err := s.api.Edit(ctx, messageID, text)
	if err != nil {
		return err
	}
	s.apply(MessageEdited{Message: msg})
	return nil
}

// React sets the reaction of a message.
func (s *Syncer) React(ctx context.Context, messageID, emoji string) error {
	if _, err := s.api.React(ctx, messageID, emoji); err != nil {
		return err
	}
	s.apply(ReactionSet{MessageID: messageID, Emoji: emoji})
	return nil
}

// Delete removes one of the client's messages.
func (s *Syncer) Delete(ctx context.Context, messageID string) error {
	if err := s.api.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.apply(MessageDeleted{MessageID: messageID})
	return nil
}

// DeleteChat removes the conversation with partnerID and drops the partner
// from the chat list.
func (s *Syncer) DeleteChat(ctx context.Context, partnerID string) error {
	if err := s.api.DeleteChat(ctx, partnerID); err != nil {
		return err
	}
	s.apply(ChatDeleted{PartnerID: partnerID})
	return nil
}

// Wait blocks until no history fetch is running.
func (s *Syncer) Wait() {
	s.fetches.Wait()
}

// Close cancels the in-flight fetch and waits for it to return.
func (s *Syncer) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.fetches.Wait()
}

func (s *Syncer) resolve(ctx context.Context, userID string) {
	user, err := s.api.User(ctx, userID)
	if err != nil {
		s.log.Warn(ctx, "sender lookup failed", "user_id", userID, "err", err)
		return
	}
	s.apply(ChattedUserUpserted{User: user})
}

func (s *Syncer) apply(a Action) {
	s.mu.Lock()
	prev, next := s.reduceLocked(a)
	s.mu.Unlock()
	s.settle(prev, next)
}

func (s *Syncer) reduceLocked(a Action) (State, State) {
	prev := s.state
	s.state = Reduce(prev, a)
	return prev, s.state
}

// settle persists the chat list when it changed and notifies the observer.
func (s *Syncer) settle(prev, next State) {
	if !slices.Equal(prev.ChattedUsers, next.ChattedUsers) {
		s.saveMu.Lock()
		latest := s.State().ChattedUsers
		if err := s.store.Save(latest); err != nil {
			s.log.Warn(context.Background(), "chat list save failed", "err", err)
		}
		s.saveMu.Unlock()
	}

	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(next)
	}
}
