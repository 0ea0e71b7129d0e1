// Package crmmirror serves a fixture-backed imitation of the three CRM
// endpoints the aggregator consumes. It is used for local development and as
// the backend of the crm client tests.
package crmmirror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Operations that can be failed on purpose through Fixtures.Fail.
const (
	OpDeal         = "deal"
	OpAssociations = "associations"
	OpLineItems    = "line_items"
	OpProducts     = "products"
)

type Fixtures struct {
	// Token, when set, must match the bearer token of every request.
	Token     string                            `json:"token,omitempty"`
	Deals     map[string]Deal                   `json:"deals"`
	LineItems map[string]map[string]interface{} `json:"line_items"`
	Products  map[string]map[string]interface{} `json:"products"`
	// Fail maps an operation to the HTTP status it should answer with.
	Fail map[string]int `json:"fail,omitempty"`
}

type Deal struct {
	Properties map[string]interface{} `json:"properties"`
	// Embedded is returned inside the deal record (associations expansion).
	Embedded []string `json:"embedded_line_items"`
	// Associated is returned by the associations endpoint.
	Associated []string `json:"associated_line_items"`
}

// LoadFixtures reads and validates a fixtures file.
func LoadFixtures(path string) (Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := json.Unmarshal(b, &f); err != nil {
		return Fixtures{}, fmt.Errorf("fixtures invalid JSON: %w", err)
	}
	return f, nil
}

type Server struct {
	mu       sync.Mutex
	fixtures Fixtures
	calls    map[string]int
}

func NewServer(f Fixtures) *Server {
	return &Server{fixtures: f, calls: make(map[string]int)}
}

// Calls returns how many times op was requested.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of requests served, failed ones included.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// SetFailure makes op answer with status (0 clears it).
func (s *Server) SetFailure(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fixtures.Fail == nil {
		s.fixtures.Fail = make(map[string]int)
	}
	if status == 0 {
		delete(s.fixtures.Fail, op)
		return
	}
	s.fixtures.Fail[op] = status
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/crm/v3/objects/deals/:id", s.getDeal)
	r.GET("/crm/v4/objects/deals/:id/associations/:type", s.getAssociations)
	r.POST("/crm/v3/objects/:type/batch/read", s.batchRead)
}

func (s *Server) getDeal(c *gin.Context) {
	if !s.admit(c, OpDeal) {
		return
	}
	id := c.Param("id")
	deal, ok := s.deal(id)
	if !ok {
		notFound(c, "deal", id)
		return
	}

	resp := gin.H{"id": id, "properties": deal.Properties}
	if strings.Contains(c.Query("associations"), "line_items") {
		resp["associations"] = gin.H{
			"line items": gin.H{"results": idResults("id", deal.Embedded)},
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getAssociations(c *gin.Context) {
	if !s.admit(c, OpAssociations) {
		return
	}
	id := c.Param("id")
	deal, ok := s.deal(id)
	if !ok {
		notFound(c, "deal", id)
		return
	}
	if c.Param("type") != "line_items" {
		c.JSON(http.StatusOK, gin.H{"results": []gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": idResults("toObjectId", deal.Associated)})
}

type batchReadReq struct {
	Properties []string `json:"properties"`
	Inputs     []struct {
		ID string `json:"id"`
	} `json:"inputs"`
}

func (s *Server) batchRead(c *gin.Context) {
	objectType := c.Param("type")
	if objectType != OpLineItems && objectType != OpProducts {
		c.JSON(http.StatusBadRequest, gin.H{"category": "VALIDATION_ERROR", "message": "unknown object type " + objectType})
		return
	}
	if !s.admit(c, objectType) {
		return
	}

	var req batchReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"category": "VALIDATION_ERROR", "message": "invalid json"})
		return
	}

	s.mu.Lock()
	source := s.fixtures.LineItems
	if objectType == OpProducts {
		source = s.fixtures.Products
	}
	results := make([]gin.H, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		props, ok := source[in.ID]
		if !ok {
			// the real API reports misses as errors next to the results
			continue
		}
		results = append(results, gin.H{"id": in.ID, "properties": props})
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "COMPLETE", "results": results})
}

// admit counts the call and answers it with auth or injected failures.
func (s *Server) admit(c *gin.Context, op string) bool {
	s.mu.Lock()
	s.calls[op]++
	token := s.fixtures.Token
	status := s.fixtures.Fail[op]
	s.mu.Unlock()

	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") || strings.TrimSpace(h[len("Bearer "):]) == "" ||
		(token != "" && h != "Bearer "+token) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":   "error",
			"category": "INVALID_AUTHENTICATION",
			"message":  "authentication credentials not found",
		})
		return false
	}
	if status != 0 {
		c.Header("X-Request-Id", "mirror-"+op)
		c.JSON(status, gin.H{
			"status":   "error",
			"category": "MIRROR_INJECTED",
			"message":  fmt.Sprintf("injected failure for %s", op),
		})
		return false
	}
	return true
}

func (s *Server) deal(id string) (Deal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.fixtures.Deals[id]
	return d, ok
}

func notFound(c *gin.Context, kind, id string) {
	c.JSON(http.StatusNotFound, gin.H{
		"status":   "error",
		"category": "OBJECT_NOT_FOUND",
		"message":  fmt.Sprintf("%s %s not found", kind, id),
	})
}

func idResults(key string, ids []string) []gin.H {
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		out = append(out, gin.H{key: id, "type": "deal_to_line_item"})
	}
	return out
}
