package health

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// GRPCProber speaks the standard grpc.health.v1 protocol. Endpoints look
// like grpc://host:port or grpc://host:port/<service> to check a named
// service instead of the server as a whole.
type GRPCProber struct {
	// Service is checked when the endpoint has no path.
	Service string

	// DialOptions replace the default insecure transport credentials.
	DialOptions []grpc.DialOption
}

// NewGRPCProber creates a gRPC health prober for service ("" for the server).
func NewGRPCProber(service string) *GRPCProber {
	return &GRPCProber{Service: service}
}

// Probe implements Prober. SERVING is success, any other serving status or
// an Unimplemented health service is a failure, and transport errors are
// unreachable.
func (p *GRPCProber) Probe(ctx context.Context, endpoint string) ProbeResult {
	start := time.Now()
	u, err := url.Parse(endpoint)
	if err != nil {
		return Unreachable(0, err)
	}
	service := p.Service
	if path := strings.Trim(u.Path, "/"); path != "" {
		service = path
	}

	opts := p.DialOptions
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(u.Host, opts...)
	if err != nil {
		return Unreachable(0, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	rt := time.Since(start)
	if err != nil {
		switch status.Code(err) {
		case codes.Unimplemented, codes.NotFound:
			return Failure(rt, int(status.Code(err)), err)
		default:
			return Unreachable(rt, err)
		}
	}

	code := int(resp.GetStatus())
	if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		return Success(rt, code)
	}
	return Failure(rt, code, fmt.Errorf("serving status %s", resp.GetStatus()))
}
