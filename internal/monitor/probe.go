package monitor

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ProbeResult is what a remote monitor reports about itself.
type ProbeResult struct {
	Services []string
	Methods  map[string][]string
	Status   healthpb.HealthCheckResponse_ServingStatus
}

// Probe discovers the services offered over conn through server reflection
// and asks for the heap's health.
func Probe(ctx context.Context, conn grpc.ClientConnInterface) (*ProbeResult, error) {
	rc := grpcreflect.NewClientAuto(ctx, conn)
	defer rc.Reset()

	services, err := rc.ListServices()
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	sort.Strings(services)

	res := &ProbeResult{Services: services, Methods: make(map[string][]string)}
	for _, name := range services {
		sd, err := rc.ResolveService(name)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		for _, md := range sd.GetMethods() {
			res.Methods[name] = append(res.Methods[name], md.GetName())
		}
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: HeapService})
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	res.Status = resp.GetStatus()
	return res, nil
}
