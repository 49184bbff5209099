package clientsync

import (
	"encoding/json"
	"errors"
	"fmt"

	"dm-service/internal/models"
)

// ErrUnknownEvent is wrapped by DecodeEvent for event names it does not map.
var ErrUnknownEvent = errors.New("unknown event")

// DecodeEvent turns one pushed frame into the matching action.
func DecodeEvent(env models.Envelope) (Action, error) {
	switch env.Event {
	case models.EventNewMessage:
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return MessagePushed{Message: msg}, nil

	case models.EventUpdatedMessage:
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return MessageUpdated{Message: msg}, nil

	case models.EventProfileUpdated:
		var user models.PublicUser
		if err := json.Unmarshal(env.Data, &user); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return ProfileUpdated{User: user}, nil

	case models.EventOnlineUsers:
		var ids []string
		if err := json.Unmarshal(env.Data, &ids); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return OnlineSetChanged{UserIDs: ids}, nil

	case models.EventChatRequest:
		var ev models.ChatRequestEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return ChatRequestReceived{SenderID: ev.SenderID, CreatedAt: ev.CreatedAt}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}
