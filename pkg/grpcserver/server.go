// Package grpcserver exposes the standard gRPC health service, driven by the
// application health checker, for load balancers and orchestrators.
package grpcserver

import (
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"companion-call-demo/backend/pkg/health"
	"companion-call-demo/backend/pkg/logger"
)

// ServiceName is the name clients can query in addition to the overall ""
const ServiceName = "companion.calls.v1.CallService"

// Server is the gRPC side of the service
type Server struct {
	srv    *grpc.Server
	health *grpchealth.Server
	log    *logger.Logger
}

// New creates the server. Serving status follows checker.
func New(checker *health.Checker, log *logger.Logger) *Server {
	if log == nil {
		log = logger.GetGlobal()
	}

	s := &Server{
		srv:    grpc.NewServer(),
		health: grpchealth.NewServer(),
		log:    log,
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)

	s.SetServing(checker == nil || checker.IsSystemHealthy())
	if checker != nil {
		checker.OnChange(s.SetServing)
	}
	return s
}

// SetServing flips the reported status of the overall server and the call service
func (s *Server) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// ListenAndServe listens on :port and blocks until the server stops
func (s *Server) ListenAndServe(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve blocks serving lis
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.srv.Serve(lis)
}

// Stop marks everything not serving and drains in-flight calls
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
