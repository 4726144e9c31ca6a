package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorRef names the user and tenant behind a state change.
type ActorRef struct {
	UserID   uuid.UUID  `json:"userId"`
	ClientID *uuid.UUID `json:"clientId,omitempty"`
	Role     string     `json:"role,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds. Data carries the
// event-specific body; everything else is shared by every event type.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var (
	ErrEnvelopeVersion = errors.New("envelope version must be positive")
	ErrEnvelopeData    = errors.New("envelope data missing")
)

// DecodeEnvelope parses a stored payload and rejects envelopes a consumer
// could not act on.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version <= 0 {
		return PayloadEnvelope{}, ErrEnvelopeVersion
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEnvelopeData
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("envelope event id: %w", err)
	}
	return envelope, nil
}
