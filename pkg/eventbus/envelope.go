package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope est le format sur le fil : {id, type, version, occurredAt, payload}.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Version    int             `json:"version"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Typed est implémenté par les payloads qui connaissent leur nom et leur version.
type Typed interface {
	EventType() string
	EventVersion() int
}

var ErrInvalidPayload = errors.New("invalid event payload")

// NewEnvelope sérialise payload. Sans Typed, le type est la routing key et la version 1.
func NewEnvelope(routingKey string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}
	if t, ok := payload.(Typed); ok {
		env.Type = t.EventType()
		env.Version = t.EventVersion()
	}
	return env, nil
}

// DecodeEnvelope accepte l'enveloppe versionnée et, pour les anciens producteurs,
// un payload nu : dans ce cas Type est vide et Version vaut 0.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	_, hasType := probe["type"]
	_, hasPayload := probe["payload"]
	if !hasType || !hasPayload {
		return Envelope{Payload: json.RawMessage(data)}, nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return env, nil
}

// Delivery est ce que reçoit un Handler.
type Delivery struct {
	RoutingKey string
	Envelope   Envelope
	// Attempt commence à 1 et augmente à chaque redélivrance.
	Attempt int
}

// Decode désérialise le payload dans v. Un payload illisible ne deviendra jamais lisible :
// l'erreur est marquée Discard pour ne pas boucler sur la redélivrance.
func (d Delivery) Decode(v any) error {
	if err := json.Unmarshal(d.Envelope.Payload, v); err != nil {
		return Discard(fmt.Errorf("%w: %s: %v", ErrInvalidPayload, d.RoutingKey, err))
	}
	return nil
}

// Expect vérifie le type et la version annoncés par l'enveloppe.
// Un payload nu (Version 0) est accepté tel quel.
func (d Delivery) Expect(eventType string, maxVersion int) error {
	if d.Envelope.Version == 0 {
		return nil
	}
	if d.Envelope.Type != eventType {
		return Discard(fmt.Errorf("%w: expected %s, got %s", ErrInvalidPayload, eventType, d.Envelope.Type))
	}
	if d.Envelope.Version > maxVersion {
		return Discard(fmt.Errorf("%w: %s version %d not supported (max %d)", ErrInvalidPayload, eventType, d.Envelope.Version, maxVersion))
	}
	return nil
}
