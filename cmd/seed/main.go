// seed inserts a sample CO Person for local testing of the assigner.
// Idempotent: skips the insert if a person with eppn jdoe@umsl.edu already exists.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cilogon/ItrsscilogonAssigner/internal/config"
	"github.com/cilogon/ItrsscilogonAssigner/internal/db"
	"github.com/cilogon/ItrsscilogonAssigner/internal/logger"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/domain"
	"github.com/cilogon/ItrsscilogonAssigner/internal/person/repository"
)

const (
	devCoID  = 2
	devEPPN  = "jdoe@umsl.edu"
	devEmail = "jdoe@umsl.edu"
)

func main() {
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

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repository.NewPostgresRepository(conn)
	existing, err := repo.FindByIdentifier(ctx, domain.IdentifierTypeEPPN, devEPPN)
	if err != nil {
		log.Fatal("lookup", zap.Error(err))
	}
	if existing != nil {
		log.Info("seed: sample person already present", zap.Int64("co_person_id", existing.ID))
		return
	}

	p := &domain.Person{
		CoID: devCoID,
		Names: []domain.Name{
			{Given: "Jane", Family: "Doe", Type: domain.NameTypeOfficial},
		},
		EmailAddresses: []domain.EmailAddress{
			{Mail: devEmail, Type: domain.EmailTypeOfficial},
		},
		Identifiers: []domain.Identifier{
			{Value: devEPPN, Type: domain.IdentifierTypeEPPN},
		},
	}
	if err := repo.CreatePerson(ctx, p); err != nil {
		log.Fatal("seed", zap.Error(err))
	}
	log.Info("seed: created sample person", zap.Int64("co_person_id", p.ID), zap.Int64("co_id", p.CoID), zap.String("eppn", devEPPN))
}
