package server

import (
	"context"
	"testing"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cilogon/ItrsscilogonAssigner/internal/config"
)

func TestRegisterServices(t *testing.T) {
	s := NewGRPCServer()
	defer s.Stop()
	hs := RegisterServices(s)

	info := s.GetServiceInfo()
	if _, ok := info[healthpb.Health_ServiceDesc.ServiceName]; !ok {
		t.Errorf("health service not registered; got %v", info)
	}
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("initial status = %v, want NOT_SERVING", resp.GetStatus())
	}
}

func TestNewAssignmentService(t *testing.T) {
	cfg := &config.Config{
		DBServiceURL: "http://localhost:8888",
		IDPEntityID:  "https://shib-idp.umsystem.edu/idp/shibboleth",
	}
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()

	svc, err := NewAssignmentService(context.Background(), cfg, nil, provider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAssignmentService: %v", err)
	}
	if svc == nil {
		t.Fatal("service should not be nil")
	}
}
