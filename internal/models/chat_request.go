package models

import "time"

// ChatRequest is a pending request stored on the receiver's side.
type ChatRequest struct {
	ReceiverID string    `db:"receiver_id" json:"receiverId"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// PendingRequest is a chat request joined with its sender's public profile.
type PendingRequest struct {
	SenderID   string    `db:"sender_id" json:"_id"`
	FullName   string    `db:"full_name" json:"fullName"`
	ProfilePic string    `db:"profile_pic" json:"profilePic"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
