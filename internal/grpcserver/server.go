package grpcserver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"dealdesk/internal/auth"
	"dealdesk/internal/lineitems"
	"dealdesk/pkg/models"
)

// Server answers with the aggregation envelope; aggregation failures are
// reported inside it, not as gRPC status errors.
type Server struct {
	Tracker *lineitems.Tracker
}

func NewServer(t *lineitems.Tracker) *Server {
	return &Server{Tracker: t}
}

func (s *Server) Aggregate(ctx context.Context, req *AggregateRequest) (*models.AggregationResult, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	res := s.Tracker.Track(ctx, req.DealID, lineitems.SurfaceGRPC)
	return &res, nil
}

// NewGRPCServer builds a grpc.Server with the line-item service registered.
// When tokens is non-nil every call must carry "authorization: Bearer <jwt>".
func NewGRPCServer(srv LineItemServiceServer, log *zap.Logger, tokens *auth.TokenService, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	interceptors := []grpc.UnaryServerInterceptor{loggingInterceptor(log)}
	if tokens != nil {
		interceptors = append(interceptors, authInterceptor(*tokens))
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(interceptors...))

	s := grpc.NewServer(opts...)
	RegisterLineItemServiceServer(s, srv)
	return s
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc call",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("took", time.Since(start)))
		return resp, err
	}
}

func authInterceptor(tokens auth.TokenService) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || !strings.HasPrefix(strings.ToLower(values[0]), "bearer ") {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		if _, err := tokens.Parse(strings.TrimSpace(values[0][len("Bearer "):])); err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(ctx, req)
	}
}
