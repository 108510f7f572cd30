package products

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/catalog/internal/platform/httpx"
	"github.com/odyssey-erp/catalog/internal/shared"
)

// APIHandler exposes products as JSON.
type APIHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewAPIHandler constructs an APIHandler.
func NewAPIHandler(logger *slog.Logger, service *Service) *APIHandler {
	return &APIHandler{logger: logger, service: service}
}

// MountRoutes registers the JSON endpoints on r.
func (h *APIHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type listResponse struct {
	Data []Product `json:"data"`
	Meta listMeta  `json:"meta"`
}

type listMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func (h *APIHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	perPage, _ := strconv.Atoi(query.Get("per_page"))
	result, err := h.service.List(r.Context(), ListFilters{
		Page:    page,
		PerPage: perPage,
		Search:  query.Get("search"),
		SortBy:  query.Get("sort"),
		SortDir: query.Get("dir"),
	})
	if err != nil {
		h.fail(w, "api list products", err)
		return
	}
	items := result.Items
	if items == nil {
		items = []Product{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Data: items,
		Meta: listMeta{
			Page:       result.Pagination.Page,
			PerPage:    result.Pagination.PerPage,
			Total:      result.Pagination.Total,
			TotalPages: result.Pagination.TotalPages,
		},
	})
}

func (h *APIHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "api get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *APIHandler) create(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	product, err := h.service.Create(r.Context(), fields)
	if err != nil {
		h.fail(w, "api create product", err)
		return
	}
	w.Header().Set("Location", "/api/products/"+strconv.FormatInt(product.ID, 10))
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *APIHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	product, err := h.service.Update(r.Context(), id, fields)
	if err != nil {
		h.fail(w, "api update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *APIHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "api delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeFields(w http.ResponseWriter, r *http.Request) (Fields, bool) {
	fields := Fields{}
	if err := httpx.DecodeJSON(r, &fields); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return nil, false
	}
	return fields, true
}

// fail writes err as a problem response. Validation failures carry their field errors.
func (h *APIHandler) fail(w http.ResponseWriter, msg string, err error) {
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		httpx.ValidationProblem(w, invalid.Error(), invalid.Errors)
		return
	}
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
