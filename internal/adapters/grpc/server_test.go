package grpc

import (
	"context"
	"testing"

	"github.com/viralforge/deal-agents/internal/adapters/memory"
	"github.com/viralforge/deal-agents/internal/application"
	"github.com/viralforge/deal-agents/internal/ports"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type nopOracle struct{}

func (nopOracle) Decide(context.Context, ports.DecisionRequest) (string, error) { return "", nil }
func (nopOracle) Audit(context.Context, ports.AuditRequest) (string, error) { return "", nil }

func TestHealthStatusPerOrchestrator(t *testing.T) {
	t.Parallel()

	svc := application.NewService(application.Dependencies{
		Config: application.Config{SenderAddress: "0x2222222222222222222222222222222222222222"},
		Oracle: nopOracle{},
		Ledger: memory.NewLedger(),
		Locker: memory.NewRunLocker(),
	})
	server := NewHealthServer(svc)

	cases := []struct {
		service string
		want    grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{service: "", want: grpc_health_v1.HealthCheckResponse_SERVING},
		{service: NegotiationHealthService, want: grpc_health_v1.HealthCheckResponse_SERVING},
		{service: SettlementHealthService, want: grpc_health_v1.HealthCheckResponse_NOT_SERVING},
	}
	for _, tc := range cases {
		resp, err := server.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: tc.service})
		if err != nil {
			t.Fatalf("check %q: %v", tc.service, err)
		}
		if resp.GetStatus() != tc.want {
			t.Fatalf("check %q: expected %s, got %s", tc.service, tc.want, resp.GetStatus())
		}
	}

	_, err := server.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "deal.unknown"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found for unknown service, got %v", err)
	}
}
