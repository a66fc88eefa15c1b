package grpc

import (
	"context"
	"net"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/http/middleware"
)

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

type Auth struct {
	Secret   string
	Issuer   string
	Audience string
}

func New(query *QueryServer, auth Auth) *Server {
	opts := []grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}
	if auth.Secret != "" {
		opts = append(opts, grpc.UnaryInterceptor(auth.interceptor))
	}
	grpcServer := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	grpcServer.RegisterService(&queryServiceDesc, query)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpcServer: grpcServer, health: hs}
}

func (a Auth) interceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 || !strings.HasPrefix(values[0], "Bearer ") {
		return nil, status.Error(codes.Unauthenticated, "bearer token is missing")
	}
	sub, err := middleware.VerifyToken(strings.TrimPrefix(values[0], "Bearer "), a.Secret, a.Issuer, a.Audience)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return handler(middleware.InjectSubject(ctx, sub), req)
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	observability.GetLogger(context.Background()).Info("gRPC listening", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

func (s *Server) Start(addr string) {
	lisAddr := addr
	if len(addr) > 0 && !strings.Contains(addr, ":") {
		lisAddr = ":" + addr
	}
	lis, err := net.Listen("tcp", lisAddr)
	if err != nil {
		observability.GetLogger(context.Background()).Fatal("gRPC listen failed", zap.Error(err))
	}
	if err := s.Serve(lis); err != nil {
		observability.GetLogger(context.Background()).Info("gRPC server stopped", zap.Error(err))
	}
}

func (s *Server) Stop() {
	observability.GetLogger(context.Background()).Info("shutting down gRPC...")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
