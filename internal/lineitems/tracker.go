package lineitems

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"dealdesk/internal/events"
	"dealdesk/pkg/models"
)

// Surfaces an aggregation can be requested through.
const (
	SurfaceHTTP     = "http"
	SurfaceFunction = "function"
	SurfaceGRPC     = "grpc"
)

// DefaultBookkeepingTimeout bounds recording and publishing of one run.
const DefaultBookkeepingTimeout = 2 * time.Second

// Service is the aggregation entry point shared by every surface.
type Service interface {
	Aggregate(ctx context.Context, dealID string) models.AggregationResult
}

// RunStore persists and lists aggregation runs.
type RunStore interface {
	Record(ctx context.Context, run models.AggregationRun) error
	ListByDeal(ctx context.Context, dealID string, limit int) ([]models.AggregationRun, error)
}

// Tracker runs aggregations and records each one. Runs and Events are
// optional; their failures are logged and never change the result, and
// together they get at most Timeout before the result is returned.
type Tracker struct {
	Service Service
	Runs    RunStore
	Events  events.Publisher
	Logger  *zap.Logger
	Timeout time.Duration
}

func NewTracker(svc Service, runs RunStore, pub events.Publisher, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{Service: svc, Runs: runs, Events: pub, Logger: log, Timeout: DefaultBookkeepingTimeout}
}

// Track aggregates dealID on behalf of surface, then records and announces
// the run.
func (t *Tracker) Track(ctx context.Context, dealID, surface string) models.AggregationResult {
	start := time.Now()
	res := t.Service.Aggregate(ctx, dealID)
	if res.Kind() == models.KindInputValidation {
		return res
	}
	dealID = strings.TrimSpace(dealID)

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultBookkeepingTimeout
	}
	// detached from the request so a hung-up client still gets recorded
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	run := models.AggregationRun{
		DealID:     dealID,
		Surface:    surface,
		Success:    res.Success,
		ErrorKind:  string(res.Kind()),
		DurationMS: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if !res.Success {
		run.Message = res.Message
	}
	if res.Meta != nil {
		run.TotalFound = res.Meta.TotalFound
		run.TotalFormatted = res.Meta.TotalFormatted
		run.ProductsFound = res.Meta.ProductsFound
	}

	if t.Runs != nil {
		if err := t.Runs.Record(bg, run); err != nil {
			t.Logger.Warn("record aggregation run failed", zap.String("deal_id", dealID), zap.Error(err))
		}
	}
	if t.Events != nil && res.Success {
		ev := events.Event{
			Type:           events.TypeLineItemsAggregated,
			DealID:         dealID,
			TotalFound:     run.TotalFound,
			TotalFormatted: run.TotalFormatted,
			ProductsFound:  run.ProductsFound,
			At:             run.CreatedAt,
		}
		if err := t.Events.Publish(bg, ev); err != nil {
			t.Logger.Warn("publish aggregation event failed", zap.String("deal_id", dealID), zap.Error(err))
		}
	}
	return res
}
