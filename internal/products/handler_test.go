package products

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/catalog/internal/shared"
	"github.com/odyssey-erp/catalog/internal/view"
)

type handlerFixture struct {
	repo     *mockRepository
	router   chi.Router
	sessions *shared.SessionManager
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := view.NewEngine()
	require.NoError(t, err)

	repo := newMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, 4)
	handler := NewHandler(logger, svc, engine, shared.NewCSRFManager("test-secret"))

	r := chi.NewRouter()
	r.Route("/products", handler.MountRoutes)
	r.Route("/api/products", NewAPIHandler(logger, svc).MountRoutes)

	return &handlerFixture{
		repo:     repo,
		router:   r,
		sessions: shared.NewSessionManager(client, "catalog_session", "test-secret", time.Hour, false),
	}
}

// do serves req with a fresh session in its context and returns that session.
func (f *handlerFixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec, sess
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	return url.Values{
		"code":     {"PROD123"},
		"name":     {"Test Product"},
		"quantity": {"100"},
		"price":    {"99.99"},
	}
}

func TestHandlerIndexPaginates(t *testing.T) {
	f := newHandlerFixture(t)
	for i := 0; i < 5; i++ {
		f.repo.seed("CODE-"+strconv.Itoa(i), "Item "+strconv.Itoa(i))
	}

	rec, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "CODE-4")
	assert.NotContains(t, body, "CODE-0", "fifth product belongs to page two")
	assert.Contains(t, body, `rel="next"`)

	rec, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/products?page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CODE-0")
}

func TestHandlerCreateForm(t *testing.T) {
	f := newHandlerFixture(t)

	rec, sess := f.do(t, httptest.NewRequest(http.MethodGet, "/products/create", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	token := sess.Get(shared.CSRFSessionKey)
	require.NotEmpty(t, token)
	assert.Contains(t, rec.Body.String(), `name="_token" value="`+token+`"`)
}

func TestHandlerStore(t *testing.T) {
	f := newHandlerFixture(t)

	rec, sess := f.do(t, formRequest(http.MethodPost, "/products", validForm()))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/products", rec.Header().Get("Location"))

	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, MsgCreated, flash.Message)
	assert.Len(t, f.repo.products, 1)
}

func TestHandlerStoreRejected(t *testing.T) {
	f := newHandlerFixture(t)
	form := validForm()
	form.Set("quantity", "10001")
	form.Set("name", "<Keep me>")

	rec, _ := f.do(t, formRequest(http.MethodPost, "/products", form))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "The quantity field must be between 1 and 10000.")
	assert.Contains(t, body, `value="&lt;Keep me&gt;"`)
	assert.Empty(t, f.repo.products)
}

func TestHandlerShowAndEdit(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.repo.seed("SHOW-1", "Shown")

	rec, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/products/"+strconv.FormatInt(p.ID, 10), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SHOW-1")

	rec, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/products/"+strconv.FormatInt(p.ID, 10)+"/edit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="SHOW-1"`)
}

func TestHandlerMissingProduct(t *testing.T) {
	f := newHandlerFixture(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/products/42", nil),
		httptest.NewRequest(http.MethodGet, "/products/42/edit", nil),
		httptest.NewRequest(http.MethodGet, "/products/abc", nil),
		formRequest(http.MethodPut, "/products/42", validForm()),
		httptest.NewRequest(http.MethodDelete, "/products/42", nil),
	} {
		rec, _ := f.do(t, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.Method+" "+req.URL.Path)
	}
}

func TestHandlerUpdate(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.repo.seed("PROD123", "Old")
	path := "/products/" + strconv.FormatInt(p.ID, 10)

	rec, sess := f.do(t, formRequest(http.MethodPut, path, validForm()))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, path+"/edit", rec.Header().Get("Location"))
	assert.Equal(t, MsgUpdated, sess.PopFlash().Message)
	assert.Equal(t, "Test Product", f.repo.products[p.ID].Name)

	form := validForm()
	form.Set("price", "free")
	rec, _ = f.do(t, formRequest(http.MethodPatch, path, form))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "The price field must be a number.")
}

func TestHandlerDestroy(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.repo.seed("GONE", "Gone")

	rec, sess := f.do(t, httptest.NewRequest(http.MethodDelete, "/products/"+strconv.FormatInt(p.ID, 10), nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/products", rec.Header().Get("Location"))
	assert.Equal(t, MsgDeleted, sess.PopFlash().Message)
	assert.Empty(t, f.repo.products)
}
