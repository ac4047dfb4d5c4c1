package server

import (
	"context"
	"database/sql"
	"fmt"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"

	"github.com/cilogon/ItrsscilogonAssigner/internal/assigner"
	"github.com/cilogon/ItrsscilogonAssigner/internal/assignment"
	"github.com/cilogon/ItrsscilogonAssigner/internal/audit"
	auditrepo "github.com/cilogon/ItrsscilogonAssigner/internal/audit/repository"
	"github.com/cilogon/ItrsscilogonAssigner/internal/config"
	"github.com/cilogon/ItrsscilogonAssigner/internal/dbservice"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/repository"
	"github.com/cilogon/ItrsscilogonAssigner/internal/telemetry"
)

// NewAssignmentService builds the assignment service over conn: dbService client, candidate
// rules, person transactions, audit logging and, when logs is non-nil, OTel assignment events.
func NewAssignmentService(ctx context.Context, cfg *config.Config, conn *sql.DB, logs *sdklog.LoggerProvider, logger *zap.Logger) (*assignment.Service, error) {
	rules, err := assigner.NewCandidateRules(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("candidate rules: %w", err)
	}
	client := dbservice.NewClient(cfg.DBServiceURL, cfg.IDPEntityID, cfg.DBServiceRequestTimeout())
	a, err := assigner.New(client, rules, logger.Named("assigner"))
	if err != nil {
		return nil, fmt.Errorf("assigner: %w", err)
	}
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), logger.Named("audit"))
	return assignment.NewService(
		repository.NewTxRunner(conn),
		a,
		auditLogger,
		telemetry.NewEventEmitter(logs),
		logger.Named("assignment"),
	), nil
}
