package lineitems

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdesk/internal/events"
	"dealdesk/pkg/models"
)

type stubService map[string]models.AggregationResult

func (s stubService) Aggregate(_ context.Context, dealID string) models.AggregationResult {
	dealID = strings.TrimSpace(dealID)
	if dealID == "" {
		return models.Failure(models.KindInputValidation, "Deal ID is required", nil)
	}
	return s[dealID]
}

type memRuns struct {
	mu   sync.Mutex
	runs []models.AggregationRun
	fail bool
}

func (m *memRuns) Record(_ context.Context, run models.AggregationRun) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRuns) ListByDeal(_ context.Context, dealID string, limit int) ([]models.AggregationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AggregationRun
	for _, r := range m.runs {
		if r.DealID == dealID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memPublisher struct{ got []events.Event }

func (p *memPublisher) Publish(_ context.Context, ev events.Event) error {
	p.got = append(p.got, ev)
	return nil
}

func stubResults() stubService {
	return stubService{
		"1001": {
			Success: true,
			Data:    []models.LineItemView{{ID: "L1", ProductName: "Setup", Quantity: 1}},
			Message: "Found 1 line items",
			Meta:    &models.Meta{TotalFound: 1, TotalFormatted: 1, ProductsFound: 1},
		},
		"404": models.Failure(models.KindDealFetch, "Failed to fetch deal", &models.ErrorDetails{Status: 404}),
		"502": models.Failure(models.KindBatchFetch, "Failed to fetch line item details", &models.ErrorDetails{Status: 503}),
	}
}

func newRouter(tr *Tracker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(tr).RegisterRoutes(r.Group("/deals"))
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_LineItems(t *testing.T) {
	runs := &memRuns{}
	pub := &memPublisher{}
	r := newRouter(NewTracker(stubResults(), runs, pub, nil))

	w := get(r, "/deals/1001/line-items")
	require.Equal(t, http.StatusOK, w.Code)

	var res models.AggregationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Len(t, res.Data, 1)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, SurfaceHTTP, runs.runs[0].Surface)
	assert.Equal(t, 1, runs.runs[0].TotalFormatted)
	require.Len(t, pub.got, 1)
	assert.Equal(t, events.TypeLineItemsAggregated, pub.got[0].Type)
	assert.Equal(t, "1001", pub.got[0].DealID)
}

func TestHandler_FailureStatuses(t *testing.T) {
	runs := &memRuns{}
	pub := &memPublisher{}
	r := newRouter(NewTracker(stubResults(), runs, pub, nil))

	w := get(r, "/deals/404/line-items")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `[]`, mustField(t, w.Body.Bytes(), "data"))

	w = get(r, "/deals/502/line-items")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	assert.Len(t, runs.runs, 2, "failures are recorded")
	assert.Equal(t, "deal_fetch", runs.runs[0].ErrorKind)
	assert.Empty(t, pub.got, "failures are not announced")
}

func TestHandler_RecordFailureDoesNotChangeResult(t *testing.T) {
	r := newRouter(NewTracker(stubResults(), &memRuns{fail: true}, nil, nil))

	w := get(r, "/deals/1001/line-items")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_Runs(t *testing.T) {
	runs := &memRuns{}
	r := newRouter(NewTracker(stubResults(), runs, nil, nil))
	get(r, "/deals/1001/line-items")
	get(r, "/deals/1001/line-items")

	w := get(r, "/deals/1001/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		DealID string                  `json:"deal_id"`
		Items  []models.AggregationRun `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "1001", body.DealID)
	assert.Len(t, body.Items, 2)

	w = get(newRouter(NewTracker(stubResults(), nil, nil, nil)), "/deals/1001/runs")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

type stalledPublisher struct{ gaveUp chan error }

func (p *stalledPublisher) Publish(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	p.gaveUp <- ctx.Err()
	return ctx.Err()
}

func TestHandler_StalledPublisherIsBounded(t *testing.T) {
	pub := &stalledPublisher{gaveUp: make(chan error, 1)}
	tr := NewTracker(stubResults(), &memRuns{}, pub, nil)
	tr.Timeout = 50 * time.Millisecond
	r := newRouter(tr)

	start := time.Now()
	w := get(r, "/deals/1001/line-items")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, <-pub.gaveUp, context.DeadlineExceeded)
}

func TestHandler_RunsRecordedUnderTrimmedDealID(t *testing.T) {
	runs := &memRuns{}
	r := newRouter(NewTracker(stubResults(), runs, nil, nil))

	get(r, "/deals/%201001%20/line-items")

	w := get(r, "/deals/1001/runs")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []models.AggregationRun `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "1001", body.Items[0].DealID)
}

func TestStatusFor(t *testing.T) {
	cases := map[models.ErrorKind]int{
		models.KindInputValidation: http.StatusBadRequest,
		models.KindConfiguration:   http.StatusInternalServerError,
		models.KindDealFetch:       http.StatusBadGateway,
		models.KindBatchFetch:      http.StatusBadGateway,
		models.KindCancelled:       http.StatusGatewayTimeout,
		models.KindUnexpected:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(models.Failure(kind, "", nil)), kind)
	}
	assert.Equal(t, http.StatusOK, StatusFor(models.AggregationResult{Success: true}))
}

func mustField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return string(m[field])
}
