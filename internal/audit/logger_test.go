package audit

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cilogon/ItrsscilogonAssigner/internal/audit/domain"
)

type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(_ context.Context, a *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, a)
	return nil
}

func (m *mockAuditRepo) ListByPerson(_ context.Context, personID int64, _, _ int32) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	for _, e := range m.entries {
		if e.PersonID == personID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestLogger_LogEvent(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)

	logger.LogEvent(context.Background(), 2, 42, domain.ActionIdentifierAssigned, "identifier", `{"type":"network"}`)

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.CoID != 2 {
		t.Errorf("co_id = %d, want 2", entry.CoID)
	}
	if entry.PersonID != 42 {
		t.Errorf("person_id = %d, want 42", entry.PersonID)
	}
	if entry.Action != domain.ActionIdentifierAssigned {
		t.Errorf("action = %q, want %q", entry.Action, domain.ActionIdentifierAssigned)
	}
	if entry.Resource != "identifier" {
		t.Errorf("resource = %q, want %q", entry.Resource, "identifier")
	}
	if entry.Metadata != `{"type":"network"}` {
		t.Errorf("metadata = %q", entry.Metadata)
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt should be set")
	}
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &mockAuditRepo{createErr: errors.New("database error")}
	logger := NewLogger(repo, zap.New(core))

	logger.LogEvent(context.Background(), 2, 42, "action", "resource", "")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["action"]; got != "action" {
		t.Errorf("logged action = %v, want %q", got, "action")
	}
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	logger := NewLogger(nil, nil)
	// no-op when repo is nil
	logger.LogEvent(context.Background(), 2, 42, "action", "resource", "")

	var nilLogger *Logger
	nilLogger.LogEvent(context.Background(), 2, 42, "action", "resource", "")
}
