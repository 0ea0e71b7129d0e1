package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdesk/pkg/database"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "auth.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepo(db)
}

var testTokens = TokenService{Secret: []byte("test-secret"), Issuer: "dealdesk", Duration: time.Hour}

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c, secret, err := Register(ctx, repo, "  panel-backend ")
	require.NoError(t, err)
	assert.Equal(t, "panel-backend", c.Name)
	assert.NotEmpty(t, secret)
	assert.NotEqual(t, secret, c.SecretHash)

	got, err := Authenticate(ctx, repo, c.ID, secret)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = Authenticate(ctx, repo, c.ID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = Authenticate(ctx, repo, "nope", secret)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, repo.SetDisabled(ctx, c.ID, true))
	_, err = Authenticate(ctx, repo, c.ID, secret)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = Register(ctx, repo, "x")
	assert.Error(t, err)
}

func TestTokenService_RoundTrip(t *testing.T) {
	tok, exp, err := testTokens.Sign(&Client{ID: "c1", Name: "job", TokenVersion: 3})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := testTokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "c1", claims.ClientID)
	assert.Equal(t, 3, claims.TokenVersion)

	other := TokenService{Secret: []byte("other"), Issuer: "dealdesk", Duration: time.Hour}
	_, err = other.Parse(tok)
	assert.Error(t, err)

	expired := TokenService{Secret: testTokens.Secret, Issuer: "dealdesk", Duration: -time.Minute}
	tok, _, err = expired.Sign(&Client{ID: "c1"})
	require.NoError(t, err)
	_, err = testTokens.Parse(tok)
	assert.Error(t, err)
}

func TestTokenRouteAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newTestRepo(t)
	c, secret, err := Register(context.Background(), repo, "panel")
	require.NoError(t, err)

	r := gin.New()
	NewHandler(repo, testTokens).RegisterRoutes(r.Group("/auth"))
	r.GET("/protected", AuthMiddleware(testTokens, repo), func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"client": GetClaims(ctx).ClientID})
	})

	do := func(method, path, body, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/auth/token", `{"client_id":"`+c.ID+`","client_secret":"bad"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(http.MethodPost, "/auth/token", `{"client_id":"`+c.ID+`","client_secret":"`+secret+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/protected", "", "").Code)
	w = do(http.MethodGet, "/protected", "", body.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), c.ID)

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/auth/revoke", "", body.AccessToken).Code)
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/protected", "", body.AccessToken).Code)
}
