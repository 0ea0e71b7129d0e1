package grpcserver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"dealdesk/pkg/models"
)

// Client calls a remote line-item service.
type Client struct {
	conn  *grpc.ClientConn
	Token string // optional bearer token
}

func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Aggregate(ctx context.Context, dealID string) (models.AggregationResult, error) {
	if c.Token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.Token)
	}
	var out models.AggregationResult
	if err := c.conn.Invoke(ctx, AggregateMethod, &AggregateRequest{DealID: dealID}, &out); err != nil {
		return models.AggregationResult{}, fmt.Errorf("grpc aggregate: %w", err)
	}
	if out.Data == nil {
		out.Data = []models.LineItemView{}
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
