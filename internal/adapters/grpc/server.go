package grpc

import (
	"context"

	"github.com/viralforge/deal-agents/internal/application"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	NegotiationHealthService = "deal.negotiation"
	SettlementHealthService  = "deal.settlement"
)

// HealthServer reports one health status per orchestrator. The empty
// service name covers the whole process.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service *application.Service
}

func NewHealthServer(service *application.Service) *HealthServer {
	return &HealthServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *HealthServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *HealthServer) Check(_ context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	st, ok := s.statusFor(req.GetService())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	return &grpc_health_v1.HealthCheckResponse{Status: st}, nil
}

func (s *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	st, ok := s.statusFor(req.GetService())
	if !ok {
		st = grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN
	}
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: st})
}

func (s *HealthServer) statusFor(name string) (grpc_health_v1.HealthCheckResponse_ServingStatus, bool) {
	readiness := s.service.Readiness()
	switch name {
	case "":
		return servingStatus(readiness.Negotiation), true
	case NegotiationHealthService:
		return servingStatus(readiness.Negotiation), true
	case SettlementHealthService:
		return servingStatus(readiness.Settlement), true
	default:
		return grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN, false
	}
}

func servingStatus(readiness string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if readiness == application.ReadinessReady {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
