package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"dm-service/internal/models"
)

func newConnID() string {
	return uuid.NewString()
}

// encodeFrame builds the wire envelope for a push event.
func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}
