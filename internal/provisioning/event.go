// Package provisioning queues identifier provisioning events in a transactional outbox and
// relays them to Kafka once the surrounding transaction has committed.
package provisioning

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cilogon/ItrsscilogonAssigner/internal/person/domain"
)

// EventTypeIdentifierCreated is emitted for identifiers saved with provisioning enabled.
const EventTypeIdentifierCreated = "identifier.created"

// Event is one outbox row.
type Event struct {
	ID           uuid.UUID
	PersonID     int64
	IdentifierID int64
	Type         string
	Payload      []byte
	CreatedAt    time.Time
	SentAt       *time.Time
}

// identifierPayload is the JSON shape stored in Event.Payload for identifier.created events.
type identifierPayload struct {
	IdentifierID int64  `json:"identifier_id"`
	PersonID     int64  `json:"co_person_id"`
	Identifier   string `json:"identifier"`
	Type         string `json:"type"`
	Status       string `json:"status"`
}

// NewIdentifierCreatedEvent builds the outbox event for a freshly inserted identifier.
func NewIdentifierCreatedEvent(i *domain.Identifier) (*Event, error) {
	payload, err := json.Marshal(identifierPayload{
		IdentifierID: i.ID,
		PersonID:     i.PersonID,
		Identifier:   i.Value,
		Type:         string(i.Type),
		Status:       string(i.Status),
	})
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:           uuid.New(),
		PersonID:     i.PersonID,
		IdentifierID: i.ID,
		Type:         EventTypeIdentifierCreated,
		Payload:      payload,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
