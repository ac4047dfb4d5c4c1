// Worker consumes assignment requests from Kafka, relays provisioning events from the outbox to
// Kafka and serves gRPC health checks. Set DATABASE_URL and KAFKA_BROKERS; see .env.example.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cilogon/ItrsscilogonAssigner/internal/assignment"
	"github.com/cilogon/ItrsscilogonAssigner/internal/config"
	"github.com/cilogon/ItrsscilogonAssigner/internal/db"
	"github.com/cilogon/ItrsscilogonAssigner/internal/health"
	"github.com/cilogon/ItrsscilogonAssigner/internal/logger"
	"github.com/cilogon/ItrsscilogonAssigner/internal/provisioning"
	"github.com/cilogon/ItrsscilogonAssigner/internal/server"
	"github.com/cilogon/ItrsscilogonAssigner/internal/telemetry"
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

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "cilogon-assigner-worker", cfg.OTLPInsecure, log)
	if err != nil {
		log.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	svc, err := server.NewAssignmentService(ctx, cfg, conn, providers.LoggerProvider, log)
	if err != nil {
		log.Fatal("assignment service", zap.Error(err))
	}

	reader := assignment.NewKafkaReader(brokers, cfg.AssignmentTopic, cfg.KafkaGroupID)
	defer reader.Close()
	consumer := assignment.NewConsumer(reader, svc, cfg.DBServiceRequestTimeout()*4, log.Named("consumer"))

	runners := []func(context.Context){consumer.Run}
	if publisher := provisioning.NewKafkaPublisher(brokers, cfg.ProvisioningTopic); publisher != nil {
		defer publisher.Close()
		relay := provisioning.NewRelay(provisioning.SQLUnitOfWork(conn), publisher, cfg.OutboxInterval(), 0, log.Named("relay"))
		runners = append(runners, relay.Run)
	} else {
		log.Warn("worker: PROVISIONING_KAFKA_TOPIC is empty; provisioning events stay in the outbox")
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}
	grpcServer := server.NewGRPCServer()
	healthServer := server.RegisterServices(grpcServer)
	checker := health.NewChecker(conn, healthServer, 15*time.Second, log.Named("health"))
	runners = append(runners, checker.Run)

	var wg sync.WaitGroup
	for _, fn := range runners {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(fn)
	}
	go func() {
		log.Info("worker: gRPC health listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("serve", zap.Error(err))
			cancel()
		}
	}()

	log.Info("worker: consuming assignment requests",
		zap.String("topic", cfg.AssignmentTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("provisioning_topic", cfg.ProvisioningTopic))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("worker: shutting down...")
	cancel()
	wg.Wait()
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
	log.Info("worker: stopped")
}
