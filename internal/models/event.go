package models

import "encoding/json"

// Push event names shared by the server and the client.
const (
	EventNewMessage     = "newMessage"
	EventUpdatedMessage = "updatedMessage"
	EventChatRequest    = "chatRequest"
	EventProfileUpdated = "profileUpdated"
	EventOnlineUsers    = "getOnlineUsers"
)

// Envelope is the frame written to a live connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChatRequestEvent is the payload of EventChatRequest.
type ChatRequestEvent struct {
	SenderID  string `json:"senderId"`
	CreatedAt string `json:"createdAt"`
}
