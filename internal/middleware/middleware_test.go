package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matricula-api/internal/models"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingObserver struct {
	paths []string
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.paths = append(r.paths, method+" "+path)
}

func newTestRouter(role models.UserRole, observer RequestObserver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(observer))
	secured := r.Group("/", JWT(stubValidator{claims: &models.JWTClaims{UserID: "u-1", Role: role}}))
	secured.GET("/me", func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.String(http.StatusOK, claims.UserID)
	})
	secured.GET("/admin", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func serve(r *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	r := newTestRouter(models.RoleSecretary, nil)

	w := serve(r, "/me", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", "Basic good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", "Bearer bad").Code)
}

func TestRequireRoles(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, serve(newTestRouter(models.RoleSecretary, nil), "/admin", "Bearer good").Code)
	assert.Equal(t, http.StatusOK, serve(newTestRouter(models.RoleAdmin, nil), "/admin", "Bearer good").Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &recordingObserver{}
	r := newTestRouter(models.RoleAdmin, observer)

	serve(r, "/me", "Bearer good")
	serve(r, "/random/path", "")

	assert.Equal(t, []string{"GET /me", "GET unmatched"}, observer.paths)
}
