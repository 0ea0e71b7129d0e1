package crmmirror

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixtures_Bundled(t *testing.T) {
	f, err := LoadFixtures("../../data/crm-fixtures.json")
	require.NoError(t, err)
	assert.Contains(t, f.Deals, "1001")
	assert.NotEmpty(t, f.LineItems)
}

func TestAdmit_AuthAndInjectedFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Fixtures{Token: "pat", Deals: map[string]Deal{"1": {Associated: []string{"7"}}}})
	h := s.Handler()

	call := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/crm/v4/objects/deals/1/associations/line_items", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("other").Code)

	w := call("pat")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"toObjectId":"7"`)

	s.SetFailure(OpAssociations, http.StatusTooManyRequests)
	w = call("pat")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "mirror-associations", w.Header().Get("X-Request-Id"))

	s.SetFailure(OpAssociations, 0)
	assert.Equal(t, http.StatusOK, call("pat").Code)
	assert.Equal(t, 5, s.Calls(OpAssociations))
}

func TestBatchRead_SkipsUnknownIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Fixtures{LineItems: map[string]map[string]interface{}{"5001": {"name": "Seats"}}})

	req := httptest.NewRequest(http.MethodPost, "/crm/v3/objects/line_items/batch/read",
		strings.NewReader(`{"properties":["name"],"inputs":[{"id":"5001"},{"id":"404"}]}`))
	req.Header.Set("Authorization", "Bearer any")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"5001"`)
	assert.NotContains(t, w.Body.String(), `"404"`)
}
