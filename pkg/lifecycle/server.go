package lifecycle

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	MaxRecvSize     = 4 * 1024 * 1024 // 4MB
	MaxSendSize     = 4 * 1024 * 1024 // 4MB
	ShutdownTimeout = 10 * time.Second
)

// Service defines the interface that all services must implement.
type Service interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// GRPCServiceRegistrar is a function type for registering gRPC services.
type GRPCServiceRegistrar func(*grpc.Server) error

// ServerOptions holds configuration for creating a server.
type ServerOptions struct {
	ListenAddr           string
	ServiceName          string
	Service              Service
	RegisterGRPCServices []GRPCServiceRegistrar
	EnableHealthCheck    bool
}

// RunServer starts a service with the provided options and handles lifecycle.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Printf("*** Starting service %s", opts.ServiceName)

	grpcServer, lis, err := setupGRPCServer(opts)
	if err != nil {
		return fmt.Errorf("failed to setup gRPC server: %w", err)
	}

	errChan := make(chan error, 1)

	// Start the service
	go func() {
		if err := opts.Service.Start(ctx); err != nil {
			select {
			case errChan <- err:
			default:
				log.Printf("Service error: %v", err)
			}
		}
	}()

	// Start gRPC server
	go func() {
		log.Printf("Starting gRPC server on %s", opts.ListenAddr)

		if err := grpcServer.Serve(lis); err != nil {
			select {
			case errChan <- err:
			default:
				log.Printf("gRPC server error: %v", err)
			}
		}
	}()

	return handleShutdown(ctx, cancel, grpcServer, opts.Service, errChan)
}

func setupGRPCServer(opts *ServerOptions) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", opts.ListenAddr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(MaxRecvSize),
		grpc.MaxSendMsgSize(MaxSendSize),
	)

	if opts.EnableHealthCheck {
		hs := health.NewServer()
		hs.SetServingStatus(opts.ServiceName, healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcServer, hs)
	}

	// Register all provided services
	for _, register := range opts.RegisterGRPCServices {
		if err := register(grpcServer); err != nil {
			log.Printf("Failed to register gRPC service: %v", err)
		}
	}

	return grpcServer, lis, nil
}

func handleShutdown(
	ctx context.Context, cancel context.CancelFunc, grpcServer *grpc.Server, svc Service, errChan chan error) error {
	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, initiating shutdown", sig)
	case err := <-errChan:
		log.Printf("Received error: %v, initiating shutdown", err)
		return fmt.Errorf("service error: %w", err)
	case <-ctx.Done():
		log.Printf("Context canceled, initiating shutdown")
		return ctx.Err()
	}

	// Create timeout context for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	// Cancel main context
	cancel()

	grpcServer.GracefulStop()

	// Stop the service
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Printf("Error during service shutdown: %v", err)
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}
