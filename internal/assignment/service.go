// Package assignment runs identifier assignment end to end: it opens a transaction, asks the
// assigner for a value and saves it as the requested identifier type with provisioning enabled.
package assignment

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/cilogon/ItrsscilogonAssigner/internal/assigner"
	"github.com/cilogon/ItrsscilogonAssigner/internal/audit"
	auditdomain "github.com/cilogon/ItrsscilogonAssigner/internal/audit/domain"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/domain"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/repository"
	"github.com/cilogon/ItrsscilogonAssigner/internal/telemetry"
)

// UnitOfWork runs fn against a repository bound to one transaction.
// repository.TxRunner is the production implementation.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repository.Repository) error) error
}

// IdentifierAssigner produces the identifier value for a request.
type IdentifierAssigner interface {
	Assign(ctx context.Context, store assigner.PersonStore, req assigner.Request) (string, error)
}

// Result is a committed assignment.
type Result struct {
	Identifier *domain.Identifier
}

// Service coordinates assignment, persistence, audit and telemetry.
type Service struct {
	uow      UnitOfWork
	assigner IdentifierAssigner
	audit    audit.AuditLogger
	events   telemetry.EventEmitter
	logger   *zap.Logger
}

// NewService returns a Service. auditLogger, events and logger may be nil.
func NewService(uow UnitOfWork, a IdentifierAssigner, auditLogger audit.AuditLogger, events telemetry.EventEmitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = telemetry.NewEventEmitter(nil)
	}
	return &Service{uow: uow, assigner: a, audit: auditLogger, events: events, logger: logger}
}

// Assign validates req, runs the assigner inside a transaction and saves the result as an
// active identifier of req.IdentifierType. Any error rolls back every write, including
// additional identifiers the assigner created.
func (s *Service) Assign(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var ident *domain.Identifier
	err := s.uow.Do(ctx, func(repo repository.Repository) error {
		value, err := s.assigner.Assign(ctx, repo, req.assignerRequest())
		if err != nil {
			return err
		}
		ident = &domain.Identifier{
			PersonID: req.RecordID,
			Value:    value,
			Type:     domain.IdentifierType(req.IdentifierType),
			Status:   domain.StatusActive,
		}
		return repo.CreateIdentifier(ctx, ident, domain.SaveOptions{Provision: true})
	})
	if err != nil {
		s.logger.Warn("identifier assignment failed",
			zap.Int64("co_id", req.CoID),
			zap.Int64("record_id", req.RecordID),
			zap.String("identifier_type", req.IdentifierType),
			zap.Error(err))
		s.record(ctx, req, auditdomain.ActionIdentifierAssignmentFailed, metadata(map[string]string{
			"identifier_type": req.IdentifierType,
			"error":           err.Error(),
		}))
		s.events.Emit(ctx, &telemetry.AssignmentEvent{
			CoID:           req.CoID,
			PersonID:       req.RecordID,
			IdentifierType: req.IdentifierType,
			Outcome:        telemetry.OutcomeFailed,
			Error:          err.Error(),
			OccurredAt:     time.Now().UTC(),
		})
		return nil, err
	}

	s.record(ctx, req, auditdomain.ActionIdentifierAssigned, metadata(map[string]string{
		"identifier_type": req.IdentifierType,
		"value":           ident.Value,
	}))
	s.events.Emit(ctx, &telemetry.AssignmentEvent{
		CoID:           req.CoID,
		PersonID:       req.RecordID,
		IdentifierType: req.IdentifierType,
		Outcome:        telemetry.OutcomeAssigned,
		OccurredAt:     time.Now().UTC(),
	})
	return &Result{Identifier: ident}, nil
}

func (s *Service) record(ctx context.Context, req Request, action, meta string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, req.CoID, req.RecordID, action, "identifier", meta)
}

func metadata(m map[string]string) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
