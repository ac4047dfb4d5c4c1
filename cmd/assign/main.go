// assign runs one identifier assignment against the configured database and dbService and
// prints the assigned value.
//
//	go run ./cmd/assign -record 1 -co 2 -type network
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cilogon/ItrsscilogonAssigner/internal/assignment"
	"github.com/cilogon/ItrsscilogonAssigner/internal/config"
	"github.com/cilogon/ItrsscilogonAssigner/internal/db"
	"github.com/cilogon/ItrsscilogonAssigner/internal/logger"
	"github.com/cilogon/ItrsscilogonAssigner/internal/server"
	"github.com/cilogon/ItrsscilogonAssigner/internal/telemetry"
)

func main() {
	recordID := flag.Int64("record", 0, "CO Person id")
	coID := flag.Int64("co", 0, "CO id")
	identifierType := flag.String("type", "", "Identifier type to assign (e.g. network)")
	emailType := flag.String("email-type", "", "Email address type recorded on the request; dbService always receives the official address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, assignment.Request{
		CoID:           *coID,
		RecordID:       *recordID,
		IdentifierType: *identifierType,
		EmailType:      *emailType,
	}); err != nil {
		log.Error("assign failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, req assignment.Request) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "cilogon-assigner", cfg.OTLPInsecure, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	svc, err := server.NewAssignmentService(ctx, cfg, conn, providers.LoggerProvider, log)
	if err != nil {
		return err
	}
	res, err := svc.Assign(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(res.Identifier.Value)
	return nil
}
