// Package clientsync keeps a client's view of one open conversation and its
// chat list consistent with REST responses, pushed events and the client's
// own mutations.
//
// All state transitions go through Reduce, which is pure: the same state and
// action always produce the same next state and the input is never mutated.
package clientsync

import (
	"slices"

	"dm-service/internal/models"
)

// State is the client side cache.
type State struct {
	Me       models.PublicUser
	Selected *models.PublicUser
	// Seq identifies the latest conversation selection. History results
	// carrying an older Seq are discarded.
	Seq      uint64
	Loading  bool
	Messages []models.Message
	// ChattedUsers is the locally curated chat list.
	ChattedUsers []models.PublicUser
	Online       []string
	// IncomingRequests holds the senders of chat requests pushed this session.
	IncomingRequests []string
	LastError        string
}

// Action is an input to Reduce.
type Action interface {
	isAction()
}

// ConversationSelected opens the conversation with Partner.
type ConversationSelected struct {
	Partner models.PublicUser
	Seq     uint64
}

// HistoryLoaded carries the REST history for the selection Seq.
type HistoryLoaded struct {
	Seq      uint64
	Messages []models.Message
}

// HistoryFailed reports a failed history fetch for the selection Seq.
type HistoryFailed struct {
	Seq uint64
	Err string
}

// MessagePushed is a newMessage push.
type MessagePushed struct{ Message models.Message }

// MessageUpdated is an updatedMessage push (edits and reactions).
type MessageUpdated struct{ Message models.Message }

// MessageSent is the server's answer to the client's own send.
type MessageSent struct{ Message models.Message }

// MessageEdited is the server's answer to the client's own edit.
type MessageEdited struct{ Message models.Message }

// ReactionSet records the client's own reaction once the server accepted it.
type ReactionSet struct {
	MessageID string
	Emoji     string
}

// MessageDeleted removes a message the client deleted.
type MessageDeleted struct{ MessageID string }

// ChatDeleted removes a whole conversation the client deleted.
type ChatDeleted struct{ PartnerID string }

// ChattedUserUpserted adds or refreshes an entry of the chat list.
type ChattedUserUpserted struct{ User models.PublicUser }

// ProfileUpdated is a profileUpdated push.
type ProfileUpdated struct{ User models.PublicUser }

// OnlineSetChanged is a getOnlineUsers push.
type OnlineSetChanged struct{ UserIDs []string }

// ChatRequestReceived is a chatRequest push.
type ChatRequestReceived struct {
	SenderID  string
	CreatedAt string
}

func (ConversationSelected) isAction() {}
func (HistoryLoaded) isAction()        {}
func (HistoryFailed) isAction()        {}
func (MessagePushed) isAction()        {}
func (MessageUpdated) isAction()       {}
func (MessageSent) isAction()          {}
func (MessageEdited) isAction()        {}
func (ReactionSet) isAction()          {}
func (MessageDeleted) isAction()       {}
func (ChatDeleted) isAction()          {}
func (ChattedUserUpserted) isAction()  {}
func (ProfileUpdated) isAction()       {}
func (OnlineSetChanged) isAction()     {}
func (ChatRequestReceived) isAction()  {}

// Reduce returns the state that follows s after a.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case ConversationSelected:
		partner := a.Partner
		s.Selected = &partner
		s.Seq = a.Seq
		s.Loading = true
		s.Messages = nil
		s.LastError = ""

	case HistoryLoaded:
		if a.Seq != s.Seq {
			return s
		}
		s.Messages = slices.Clone(a.Messages)
		s.Loading = false

	case HistoryFailed:
		if a.Seq != s.Seq {
			return s
		}
		s.Loading = false
		s.LastError = a.Err

	case MessagePushed:
		if !a.Message.IsParticipant(s.Me.ID) || indexOf(s.Messages, a.Message.ID) >= 0 {
			return s
		}
		if s.isOpen(a.Message) {
			s.Messages = appendMessage(s.Messages, a.Message)
		}

	case MessageUpdated:
		s.Messages = replaceMessage(s.Messages, a.Message)

	case MessageSent:
		if s.isOpen(a.Message) && indexOf(s.Messages, a.Message.ID) < 0 {
			s.Messages = appendMessage(s.Messages, a.Message)
		}
		if s.Selected != nil && s.isOpen(a.Message) {
			s.ChattedUsers = upsertUser(s.ChattedUsers, *s.Selected)
		}

	case MessageEdited:
		s.Messages = replaceMessage(s.Messages, a.Message)

	case ReactionSet:
		if i := indexOf(s.Messages, a.MessageID); i >= 0 {
			s.Messages = slices.Clone(s.Messages)
			s.Messages[i].Reaction = a.Emoji
		}

	case MessageDeleted:
		if i := indexOf(s.Messages, a.MessageID); i >= 0 {
			s.Messages = slices.Delete(slices.Clone(s.Messages), i, i+1)
		}

	case ChatDeleted:
		s.ChattedUsers = slices.DeleteFunc(slices.Clone(s.ChattedUsers), func(u models.PublicUser) bool {
			return u.ID == a.PartnerID
		})
		s.Messages = nil
		if s.Selected != nil && s.Selected.ID == a.PartnerID {
			s.Selected = nil
		}

	case ChattedUserUpserted:
		s.ChattedUsers = upsertUser(s.ChattedUsers, a.User)

	case ProfileUpdated:
		if s.Selected != nil && s.Selected.ID == a.User.ID {
			merged := mergeUser(*s.Selected, a.User)
			s.Selected = &merged
		}
		if s.Me.ID == a.User.ID {
			s.Me = mergeUser(s.Me, a.User)
		}
		if i := userIndex(s.ChattedUsers, a.User.ID); i >= 0 {
			s.ChattedUsers = slices.Clone(s.ChattedUsers)
			s.ChattedUsers[i] = mergeUser(s.ChattedUsers[i], a.User)
		}

	case OnlineSetChanged:
		online := slices.Clone(a.UserIDs)
		slices.Sort(online)
		s.Online = slices.Compact(online)

	case ChatRequestReceived:
		if !slices.Contains(s.IncomingRequests, a.SenderID) {
			s.IncomingRequests = append(slices.Clone(s.IncomingRequests), a.SenderID)
		}
	}
	return s
}

// UnknownPartner reports the counterpart of a pushed message when it is
// neither the open conversation nor on the chat list, i.e. when the client
// must resolve it through the directory before listing it.
func UnknownPartner(s State, msg models.Message) (string, bool) {
	if !msg.IsParticipant(s.Me.ID) || s.isOpen(msg) {
		return "", false
	}
	partner := msg.Partner(s.Me.ID)
	if userIndex(s.ChattedUsers, partner) >= 0 {
		return "", false
	}
	return partner, true
}

// IsOnline reports whether userID is in the last pushed online set.
func (s State) IsOnline(userID string) bool {
	_, found := slices.BinarySearch(s.Online, userID)
	return found
}

func (s State) isOpen(msg models.Message) bool {
	return s.Selected != nil && msg.InConversation(s.Me.ID, s.Selected.ID)
}

func indexOf(msgs []models.Message, id string) int {
	return slices.IndexFunc(msgs, func(m models.Message) bool { return m.ID == id })
}

func appendMessage(msgs []models.Message, msg models.Message) []models.Message {
	return append(slices.Clip(msgs), msg)
}

func replaceMessage(msgs []models.Message, msg models.Message) []models.Message {
	i := indexOf(msgs, msg.ID)
	if i < 0 {
		return msgs
	}
	out := slices.Clone(msgs)
	out[i] = msg
	return out
}

func userIndex(users []models.PublicUser, id string) int {
	return slices.IndexFunc(users, func(u models.PublicUser) bool { return u.ID == id })
}

func upsertUser(users []models.PublicUser, user models.PublicUser) []models.PublicUser {
	if i := userIndex(users, user.ID); i >= 0 {
		out := slices.Clone(users)
		out[i] = mergeUser(out[i], user)
		return out
	}
	return append(slices.Clip(users), user)
}

// mergeUser overlays update on base. Directory views omit the email, so an
// empty field never erases a known one.
func mergeUser(base, update models.PublicUser) models.PublicUser {
	out := update
	if out.Email == "" {
		out.Email = base.Email
	}
	if out.FullName == "" {
		out.FullName = base.FullName
	}
	return out
}
