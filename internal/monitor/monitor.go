// Package monitor exposes the heap's health over gRPC and renders pool
// statistics as protobuf structs.
//
// The heap has a single mutator, so the monitor never reads it directly:
// the owner of the runtime pushes a report after each cycle, and the gRPC
// goroutines only see what was last reported.
package monitor

import (
	"log"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/funvibe/funcell/internal/core"
)

// HeapService is the health service name reported for the heap.
const HeapService = "funcell.heap"

// Server serves grpc.health.v1 for HeapService.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *log.Logger

	mu     sync.Mutex
	last   core.Stats
	failed error
}

// NewServer builds a server whose heap status starts as NOT_SERVING until
// the first report.
func NewServer(logger *log.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.health.SetServingStatus(HeapService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Report records the outcome of the latest cycle. A non-nil err (for
// example a verifier failure caught by the caller) marks the heap as not
// serving for good.
func (s *Server) Report(st core.Stats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = st
	if err != nil && s.failed == nil {
		s.failed = err
		if s.log != nil {
			s.log.Printf("monitor: heap marked unhealthy: %v", err)
		}
	}
	status := healthpb.HealthCheckResponse_SERVING
	if s.failed != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(HeapService, status)
}

// Last returns the most recently reported stats.
func (s *Server) Last() core.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	if s.log != nil {
		s.log.Printf("monitor: serving health on %s", lis.Addr())
	}
	return s.grpc.Serve(lis)
}

// Stop marks every service as not serving and shuts the server down.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// StatsStruct renders st as a protobuf Struct.
func StatsStruct(st core.Stats) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"tick":        st.Tick,
		"managed":     st.Managed,
		"manual":      st.Manual,
		"pairings":    st.Pairings,
		"guards":      st.Guards,
		"symbols":     st.Symbols,
		"allocations": st.Allocations,
		"frees":       st.Frees,
		"cycles":      st.Cycles,
		"swept":       st.Swept,
		"last_swept":  st.LastSwept,
		"memmoves":    st.Memmoves,
		"expansions":  st.Expansions,
		"depletion":   st.Depletion,
	})
}

// StatsJSON renders st as indented JSON via protojson.
func StatsJSON(st core.Stats) ([]byte, error) {
	pb, err := StatsStruct(st)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(pb)
}
