package models

import "time"

// Message is a single direct message between two users.
type Message struct {
	ID         string         `db:"id" json:"_id"`
	SenderID   string         `db:"sender_id" json:"senderId"`
	ReceiverID string         `db:"receiver_id" json:"receiverId"`
	Text       string         `db:"text" json:"text,omitempty"`
	Image      string         `db:"image" json:"image,omitempty"`
	ReplyTo    *ReplySnapshot `db:"-" json:"replyTo,omitempty"`
	Edited     bool           `db:"edited" json:"edited"`
	Reaction   string         `db:"reaction" json:"reaction,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// ReplySnapshot is a copy of the replied-to message taken at send time.
// Later edits or deletion of the original do not change it.
type ReplySnapshot struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Snapshot freezes m for use as a reply target.
func (m Message) Snapshot() *ReplySnapshot {
	return &ReplySnapshot{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		CreatedAt:  m.CreatedAt,
	}
}

// Partner returns the participant of m that is not userID.
func (m Message) Partner(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// InConversation reports whether m belongs to the unordered pair {a, b}.
func (m Message) InConversation(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// IsParticipant reports whether userID sent or received m.
func (m Message) IsParticipant(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}
