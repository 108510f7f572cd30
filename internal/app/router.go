package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/catalog/internal/observability"
	"github.com/odyssey-erp/catalog/internal/products"
	"github.com/odyssey-erp/catalog/internal/shared"
	"github.com/odyssey-erp/catalog/internal/view"
	"github.com/odyssey-erp/catalog/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Templates         *view.Engine
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	ProductsHandler   *products.Handler
	ProductsAPI       *products.APIHandler
	Metrics           *observability.Metrics
	DisableRequestLog bool
}

// NewRouter constructs the chi.Router with catalog defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(MethodOverride)

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static assets skip the session and CSRF stack.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.With(chimw.RealIP).Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		if !params.DisableRequestLog {
			r.Use(chimw.Logger)
		}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			csrfToken, _ := params.CSRFManager.EnsureToken(sess)
			var flash *shared.FlashMessage
			if sess != nil {
				flash = sess.PopFlash()
			}
			data := view.TemplateData{
				Title:       "Catalog",
				CSRFToken:   csrfToken,
				Flash:       flash,
				CurrentPath: r.URL.Path,
			}
			if err := params.Templates.Render(w, "pages/welcome.html", data); err != nil {
				params.Logger.Error("render welcome", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		})

		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.ProductsAPI != nil {
			r.Route("/api/products", params.ProductsAPI.MountRoutes)
		}
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
