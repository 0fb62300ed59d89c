// Package admin exposes the operator surface of the daemon: a gRPC
// health endpoint that tracks whether the pipeline is wedged, and a
// WebSocket feed streaming payment lifecycle events.
package admin

import (
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// pipelineService is the service name reported on the health endpoint.
const pipelineService = "xrplpay.Pipeline"

// HealthTarget is the part of the pipeline the health server watches.
// The driver satisfies it.
type HealthTarget interface {
	Wedged() (bool, error)
}

// GRPCConfig configures the admin gRPC server.
type GRPCConfig struct {
	// Address is the listen address, e.g. "localhost:50061".
	Address string

	// Target is polled for wedged state. Required.
	Target HealthTarget

	// PollInterval is how often the wedged state is re-checked.
	// Defaults to one second.
	PollInterval time.Duration

	Logger *log.Entry
}

// GRPCServer serves the standard gRPC health protocol. The pipeline
// service reports SERVING while the driver is making progress and
// NOT_SERVING once it wedges on a fatal row.
type GRPCServer struct {
	mu sync.Mutex

	cfg        GRPCConfig
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	log        *log.Entry

	stop    chan struct{}
	stopped sync.WaitGroup
	running bool
}

// NewGRPCServer creates the health server. Call Start to begin serving.
func NewGRPCServer(cfg GRPCConfig) (*GRPCServer, error) {
	if cfg.Address == "" {
		return nil, errors.New("admin: grpc address is required")
	}
	if cfg.Target == nil {
		return nil, errors.New("admin: health target is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &GRPCServer{
		cfg:        cfg,
		grpcServer: grpcServer,
		health:     healthServer,
		log:        logger.WithField("component", "admin-grpc"),
	}, nil
}

// Start listens on the configured address and serves in the background.
func (s *GRPCServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("admin: grpc server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.listener = listener
	s.stop = make(chan struct{})
	s.running = true

	wedged, _ := s.cfg.Target.Wedged()
	s.setStatus(wedged)

	s.stopped.Add(2)
	go func() {
		defer s.stopped.Done()
		if err := s.grpcServer.Serve(listener); err != nil {
			s.log.WithError(err).Warn("health server stopped")
		}
	}()
	go func() {
		defer s.stopped.Done()
		s.watch()
	}()

	s.log.WithField("address", listener.Addr().String()).Info("admin health endpoint listening")
	return nil
}

// Stop gracefully stops the server and waits for the watch loop.
func (s *GRPCServer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.grpcServer.GracefulStop()
	s.stopped.Wait()
}

// Address returns the bound listen address, "" before Start.
func (s *GRPCServer) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// watch re-checks the wedged flag on a ticker and flips the reported
// status on change.
func (s *GRPCServer) watch() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	last, _ := s.cfg.Target.Wedged()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			wedged, cause := s.cfg.Target.Wedged()
			if wedged == last {
				continue
			}
			last = wedged
			s.setStatus(wedged)
			if wedged {
				s.log.WithError(cause).Warn("pipeline wedged, reporting NOT_SERVING")
			} else {
				s.log.Info("pipeline recovered, reporting SERVING")
			}
		}
	}
}

func (s *GRPCServer) setStatus(wedged bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if wedged {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(pipelineService, status)
	s.health.SetServingStatus("", status)
}
