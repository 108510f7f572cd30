package products

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/catalog/internal/shared"
	"github.com/odyssey-erp/catalog/internal/view"
)

// Flash messages shown after a successful write.
const (
	MsgCreated = "New product is added successfully."
	MsgUpdated = "Product is updated successfully."
	MsgDeleted = "Product is deleted successfully."
)

// Handler serves the HTML product pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
	}
}

// MountRoutes registers the product pages on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Post("/", h.store)
	r.Get("/create", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Get("/edit", h.edit)
		r.Put("/", h.update)
		r.Patch("/", h.update)
		r.Delete("/", h.destroy)
	})
}

type indexPage struct {
	Products   []Product
	Pagination shared.Pagination
	Search     string
}

type formPage struct {
	Product *Product
	Old     map[string]string
	Errors  map[string][]string
}

type showPage struct {
	Product Product
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	filters := ListFilters{
		Page:    page,
		Search:  query.Get("search"),
		SortBy:  query.Get("sort"),
		SortDir: query.Get("dir"),
	}

	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.serverError(w, "list products failed", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/products/index.html", "Products", indexPage{
		Products:   result.Items,
		Pagination: result.Pagination,
		Search:     filters.Search,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/products/create.html", "Add new product", formPage{
		Old:    map[string]string{},
		Errors: map[string][]string{},
	})
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	_, err := h.service.Create(r.Context(), FieldsFromForm(r.PostForm))
	var invalid *ValidationError
	switch {
	case errors.As(err, &invalid):
		h.render(w, r, http.StatusUnprocessableEntity, "pages/products/create.html", "Add new product", formPage{
			Old:    oldInput(r),
			Errors: invalid.Errors.Messages(),
		})
		return
	case err != nil:
		h.serverError(w, "create product failed", err)
		return
	}

	h.redirectWithFlash(w, r, "/products", shared.FlashSuccess, MsgCreated)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	product, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "pages/products/show.html", product.Name, showPage{Product: product})
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	product, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "pages/products/edit.html", "Edit product", formPage{
		Product: &product,
		Old:     productInput(product),
		Errors:  map[string][]string{},
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	_, err := h.service.Update(r.Context(), id, FieldsFromForm(r.PostForm))
	var invalid *ValidationError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		h.notFound(w, r)
		return
	case errors.As(err, &invalid):
		h.render(w, r, http.StatusUnprocessableEntity, "pages/products/edit.html", "Edit product", formPage{
			Product: &Product{ID: id},
			Old:     oldInput(r),
			Errors:  invalid.Errors.Messages(),
		})
		return
	case err != nil:
		h.serverError(w, "update product failed", err, slog.Int64("id", id))
		return
	}

	h.redirectWithFlash(w, r, "/products/"+strconv.FormatInt(id, 10)+"/edit", shared.FlashSuccess, MsgUpdated)
}

func (h *Handler) destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.notFound(w, r)
		return
	}

	err := h.service.Delete(r.Context(), id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		h.notFound(w, r)
		return
	case err != nil:
		h.serverError(w, "delete product failed", err, slog.Int64("id", id))
		return
	}

	h.redirectWithFlash(w, r, "/products", shared.FlashSuccess, MsgDeleted)
}

func (h *Handler) loadProduct(w http.ResponseWriter, r *http.Request) (Product, bool) {
	id, ok := parseID(r)
	if !ok {
		h.notFound(w, r)
		return Product{}, false
	}
	product, err := h.service.Get(r.Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		h.notFound(w, r)
		return Product{}, false
	}
	if err != nil {
		h.serverError(w, "get product failed", err, slog.Int64("id", id))
		return Product{}, false
	}
	return product, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, template, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// parseID reads the {id} route parameter. Anything but a positive integer is unknown.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func oldInput(r *http.Request) map[string]string {
	old := make(map[string]string, 5)
	for _, name := range []string{FieldCode, FieldName, FieldQuantity, FieldPrice, FieldDescription} {
		old[name] = r.PostFormValue(name)
	}
	return old
}

func productInput(p Product) map[string]string {
	old := map[string]string{
		FieldCode:     p.Code,
		FieldName:     p.Name,
		FieldQuantity: strconv.Itoa(p.Quantity),
		FieldPrice:    p.Price.StringFixed(2),
	}
	if p.Description != nil {
		old[FieldDescription] = *p.Description
	}
	return old
}
