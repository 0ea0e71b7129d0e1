package lineitems

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dealdesk/pkg/models"
)

// Handler serves the REST routes under /deals.
type Handler struct {
	Tracker *Tracker
}

func NewHandler(t *Tracker) *Handler {
	return &Handler{Tracker: t}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/line-items", h.lineItems) // GET /deals/:id/line-items
	rg.GET("/:id/runs", h.runs)            // GET /deals/:id/runs
}

func (h *Handler) lineItems(c *gin.Context) {
	res := h.Tracker.Track(c.Request.Context(), c.Param("id"), SurfaceHTTP)
	c.JSON(StatusFor(res), res)
}

func (h *Handler) runs(c *gin.Context) {
	if h.Tracker.Runs == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "run history disabled"})
		return
	}
	dealID := strings.TrimSpace(c.Param("id"))
	limit := parseInt(c.Query("limit"), 0)

	runs, err := h.Tracker.Runs.ListByDeal(c.Request.Context(), dealID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list runs failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal_id": dealID, "items": runs})
}

// StatusFor maps an envelope to the HTTP status of the REST surface.
func StatusFor(res models.AggregationResult) int {
	switch res.Kind() {
	case "":
		return http.StatusOK
	case models.KindInputValidation:
		return http.StatusBadRequest
	case models.KindDealFetch:
		if res.ErrorDetails.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case models.KindBatchFetch:
		return http.StatusBadGateway
	case models.KindCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
