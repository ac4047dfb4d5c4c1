package provisioning

import (
	"encoding/json"
	"testing"

	"github.com/cilogon/ItrsscilogonAssigner/internal/person/domain"
)

func TestNewIdentifierCreatedEvent(t *testing.T) {
	i := &domain.Identifier{ID: 7, PersonID: 42, Value: "http://cilogon.org/serverA/users/1", Type: domain.IdentifierTypeOIDCSub, Status: domain.StatusActive}
	e, err := NewIdentifierCreatedEvent(i)
	if err != nil {
		t.Fatalf("NewIdentifierCreatedEvent: %v", err)
	}
	if e.Type != EventTypeIdentifierCreated {
		t.Errorf("Type = %q, want %q", e.Type, EventTypeIdentifierCreated)
	}
	if e.PersonID != 42 || e.IdentifierID != 7 {
		t.Errorf("PersonID/IdentifierID = %d/%d, want 42/7", e.PersonID, e.IdentifierID)
	}
	var payload map[string]any
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["identifier"] != i.Value {
		t.Errorf("payload identifier = %v, want %q", payload["identifier"], i.Value)
	}
	if payload["type"] != "oidcsub" {
		t.Errorf("payload type = %v, want oidcsub", payload["type"])
	}
}

func TestEncodeMessages(t *testing.T) {
	events := newEvents(2)
	msgs, err := encodeMessages(events)
	if err != nil {
		t.Fatalf("encodeMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if string(msgs[1].Key) != "2" {
		t.Errorf("key = %q, want person id %q", msgs[1].Key, "2")
	}
	var m map[string]any
	if err := json.Unmarshal(msgs[0].Value, &m); err != nil {
		t.Fatalf("value: %v", err)
	}
	if m["id"] != events[0].ID.String() {
		t.Errorf("id = %v, want %s", m["id"], events[0].ID)
	}
	if m["type"] != EventTypeIdentifierCreated {
		t.Errorf("type = %v, want %s", m["type"], EventTypeIdentifierCreated)
	}
}

func TestKafkaPublisher_NilWhenUnconfigured(t *testing.T) {
	if p := NewKafkaPublisher(nil, "topic"); p != nil {
		t.Error("expected nil publisher without brokers")
	}
	if p := NewKafkaPublisher([]string{"localhost:9092"}, ""); p != nil {
		t.Error("expected nil publisher without topic")
	}
	var p *KafkaPublisher
	if err := p.Close(); err != nil {
		t.Errorf("Close on nil publisher: %v", err)
	}
}
