package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"dealdesk/pkg/models"
)

const (
	ServiceName     = "dealdesk.v1.LineItemService"
	AggregateMethod = "/" + ServiceName + "/Aggregate"
)

type AggregateRequest struct {
	DealID string `json:"dealId"`
}

type LineItemServiceServer interface {
	Aggregate(ctx context.Context, req *AggregateRequest) (*models.AggregationResult, error)
}

func RegisterLineItemServiceServer(s grpc.ServiceRegistrar, srv LineItemServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LineItemServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Aggregate", Handler: aggregateHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func aggregateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AggregateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LineItemServiceServer).Aggregate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AggregateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LineItemServiceServer).Aggregate(ctx, req.(*AggregateRequest))
	}
	return interceptor(ctx, in, info, handler)
}
