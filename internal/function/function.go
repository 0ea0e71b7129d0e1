// Package function exposes the aggregator with the calling conventions of a
// CRM serverless function: a request carrying {parameters: {dealId}} and an
// envelope answer delivered either as a return value or through a callback.
package function

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dealdesk/internal/lineitems"
	"dealdesk/pkg/models"
)

// Request is the invocation payload of the function host.
type Request struct {
	Parameters map[string]any `json:"parameters"`
}

// Response is the aggregation envelope.
type Response = models.AggregationResult

// Function adapts a Tracker to both calling conventions.
type Function struct {
	Tracker *lineitems.Tracker
}

func New(t *lineitems.Tracker) *Function {
	return &Function{Tracker: t}
}

// Main is the promise-style entry point.
func (f *Function) Main(ctx context.Context, req Request) Response {
	return f.Tracker.Track(ctx, DealID(req), lineitems.SurfaceFunction)
}

// MainCallback is the callback-style entry point; cb is invoked exactly once.
func (f *Function) MainCallback(ctx context.Context, req Request, cb func(Response)) {
	cb(f.Main(ctx, req))
}

// DealID reads parameters.dealId, accepting a string or a number.
func DealID(req Request) string {
	switch v := req.Parameters["dealId"].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func (f *Function) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/line-items", f.invoke) // POST /functions/line-items
}

// invoke always answers 200 with the envelope, as the function host does;
// callers inspect success and errorDetails.
func (f *Function) invoke(c *gin.Context) {
	var req Request
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Failure(models.KindInputValidation, "Invalid request body",
			&models.ErrorDetails{Name: "invalid_json", Cause: err.Error()}))
		return
	}
	c.JSON(http.StatusOK, f.Main(c.Request.Context(), req))
}
