package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

func serverStatus(t *testing.T, srv *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return resp.GetStatus()
}

func TestCheck_NilPinger(t *testing.T) {
	srv := health.NewServer()
	c := NewChecker(nil, srv, time.Second, nil)
	if got := c.Check(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
	if got := serverStatus(t, srv); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("server status = %v, want SERVING", got)
	}
}

func TestCheck_PingerFailure(t *testing.T) {
	srv := health.NewServer()
	c := NewChecker(&mockPinger{pingErr: errors.New("connection refused")}, srv, time.Second, nil)
	if got := c.Check(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
	if got := serverStatus(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("server status = %v, want NOT_SERVING", got)
	}
}

func TestCheck_Recovers(t *testing.T) {
	srv := health.NewServer()
	p := &mockPinger{pingErr: errors.New("down")}
	c := NewChecker(p, srv, time.Second, nil)
	c.Check(context.Background())
	p.pingErr = nil
	if got := c.Check(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING after recovery", got)
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	srv := health.NewServer()
	c := NewChecker(&mockPinger{}, srv, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := serverStatus(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("server status after shutdown = %v, want NOT_SERVING", got)
	}
}
