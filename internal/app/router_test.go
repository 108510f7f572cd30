package app_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/catalog/internal/app"
	"github.com/odyssey-erp/catalog/internal/observability"
	"github.com/odyssey-erp/catalog/internal/products"
	"github.com/odyssey-erp/catalog/internal/shared"
	"github.com/odyssey-erp/catalog/internal/view"
	_ "github.com/odyssey-erp/catalog/testing"
)

// emptyRepo is a catalog with no products.
type emptyRepo struct{}

func (emptyRepo) ExistsWithCode(context.Context, string, *int64) (bool, error) { return false, nil }
func (emptyRepo) List(context.Context, products.ListFilters) ([]products.Product, error) {
	return []products.Product{}, nil
}
func (emptyRepo) Count(context.Context, products.ListFilters) (int, error) { return 0, nil }
func (emptyRepo) Get(context.Context, int64) (products.Product, error) {
	return products.Product{}, shared.ErrNotFound
}
func (emptyRepo) Create(_ context.Context, attrs products.Attributes) (products.Product, error) {
	return products.Product{ID: 1, Code: attrs.Code, Name: attrs.Name}, nil
}
func (emptyRepo) Update(context.Context, int64, products.Attributes) (products.Product, error) {
	return products.Product{}, shared.ErrNotFound
}
func (emptyRepo) Delete(context.Context, int64) error { return shared.ErrNotFound }

var tokenPattern = regexp.MustCompile(`name="_token" value="([^"]+)"`)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	templates, err := view.NewEngine()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	csrf := shared.NewCSRFManager("csrf-secret")
	svc := products.NewService(emptyRepo{}, 4)
	cfg := &app.Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitRequests: 1000, RateLimitWindow: time.Minute}

	return app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Templates:         templates,
		SessionManager:    shared.NewSessionManager(client, "catalog_session", "session-secret", time.Hour, false),
		CSRFManager:       csrf,
		ProductsHandler:   products.NewHandler(logger, svc, templates, csrf),
		ProductsAPI:       products.NewAPIHandler(logger, svc),
		Metrics:           observability.NewMetrics(),
		DisableRequestLog: true,
	})
}

// primeSession fetches the create form and returns the session cookie and CSRF token.
func primeSession(t *testing.T, router http.Handler) (*http.Cookie, string) {
	t.Helper()
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/products/create", nil))
	require.Equal(t, http.StatusOK, res.Code)

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	match := tokenPattern.FindStringSubmatch(res.Body.String())
	require.Len(t, match, 2)
	return cookies[0], match[1]
}

func postForm(target string, cookie *http.Cookie, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestWelcomePage(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Product catalog")
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, res.Result().Cookies())
}

func TestHealthzAndStatic(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "public, max-age=3600", res.Header().Get("Cache-Control"))
	assert.Empty(t, res.Result().Cookies())
}

func TestMissingCSRFTokenIsPageExpired(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, postForm("/products", nil, url.Values{"code": {"X"}}))
	assert.Equal(t, shared.StatusPageExpired, res.Code)

	cookie, _ := primeSession(t, router)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, postForm("/products", cookie, url.Values{"_token": {"wrong"}}))
	assert.Equal(t, shared.StatusPageExpired, res.Code)
}

func TestStoreRedirectsWithFlash(t *testing.T) {
	router := newTestRouter(t)
	cookie, token := primeSession(t, router)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, postForm("/products", cookie, url.Values{
		"_token":   {token},
		"code":     {"PROD123"},
		"name":     {"Test Product"},
		"quantity": {"100"},
		"price":    {"99.99"},
	}))
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/products", res.Header().Get("Location"))

	follow := httptest.NewRequest(http.MethodGet, "/products", nil)
	follow.AddCookie(cookie)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, follow)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), products.MsgCreated)
}

func TestMethodOverrideRoutesDelete(t *testing.T) {
	router := newTestRouter(t)
	cookie, token := primeSession(t, router)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, postForm("/products/7", cookie, url.Values{
		"_token":  {token},
		"_method": {"DELETE"},
	}))
	assert.Equal(t, http.StatusNotFound, res.Code, "DELETE reached destroy for an unknown product")
}

func TestAPIUsesHeaderToken(t *testing.T) {
	router := newTestRouter(t)
	cookie, token := primeSession(t, router)

	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{"code":"","name":"n","quantity":1,"price":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shared.CSRFHeader, token)
	req.AddCookie(cookie)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), `"REQUIRED"`)
}
