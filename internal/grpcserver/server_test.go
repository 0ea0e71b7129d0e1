package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"dealdesk/internal/auth"
	"dealdesk/internal/lineitems"
	"dealdesk/pkg/models"
)

type fixedService struct{}

func (fixedService) Aggregate(_ context.Context, dealID string) models.AggregationResult {
	if dealID == "" {
		return models.Failure(models.KindInputValidation, "Deal ID is required", nil)
	}
	return models.AggregationResult{
		Success: true,
		Data:    []models.LineItemView{{ID: "L1", ProductName: "Widget", Quantity: 2, Price: 4.5, Amount: 9}},
		Message: "Found 1 line items",
		Meta:    &models.Meta{TotalFound: 1, TotalFormatted: 1},
	}
}

func startServer(t *testing.T, tokens *auth.TokenService) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(NewServer(lineitems.NewTracker(fixedService{}, nil, nil, nil)), nil, tokens)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestAggregateOverGRPC(t *testing.T) {
	c := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Aggregate(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Widget", res.Data[0].ProductName)
	assert.Equal(t, int64(2), res.Data[0].Quantity)

	res, err = c.Aggregate(ctx, "")
	require.NoError(t, err, "aggregation failures travel in the envelope")
	assert.False(t, res.Success)
	assert.Equal(t, models.KindInputValidation, res.Kind())
	assert.NotNil(t, res.Data)
}

func TestAggregateOverGRPC_RequiresToken(t *testing.T) {
	tokens := &auth.TokenService{Secret: []byte("s"), Issuer: "dealdesk", Duration: time.Minute}
	c := startServer(t, tokens)
	ctx := context.Background()

	_, err := c.Aggregate(ctx, "1001")
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	c.Token, _, err = tokens.Sign(&auth.Client{ID: "c1", Name: "job"})
	require.NoError(t, err)
	res, err := c.Aggregate(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, res.Success)
}
