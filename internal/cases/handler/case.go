// Package handler exposes the case service's HTTP surface. All routes are
// behind session auth, so every request arrives with a resolved tenant on
// the context.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/timottowitz/obelisk-backend/internal/cases/repository"
	"github.com/timottowitz/obelisk-backend/internal/cases/service"
	"github.com/timottowitz/obelisk-backend/pkg/httputil"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
)

// CaseHandler handles case HTTP requests
type CaseHandler struct {
	cases  *service.CaseService
	logger *logger.Logger
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(cases *service.CaseService, log *logger.Logger) *CaseHandler {
	return &CaseHandler{
		cases:  cases,
		logger: log.WithComponent("case_handler"),
	}
}

// RegisterRoutes registers case routes
func (h *CaseHandler) RegisterRoutes(r chi.Router) {
	r.Route("/cases", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
	})
	r.Route("/case-types", func(r chi.Router) {
		r.Get("/", h.ListCaseTypes)
		r.Get("/{id}/folders", h.ListFolderTemplates)
	})
}

// Create handles POST /cases
func (h *CaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCaseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	c, err := h.cases.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, c)
}

// Get handles GET /cases/{id}
func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.cases.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, c)
}

// List handles GET /cases
func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.CaseFilter{
		Status:     r.URL.Query().Get("status"),
		CaseTypeID: r.URL.Query().Get("case_type_id"),
		AssignedTo: r.URL.Query().Get("assigned_to"),
		Search:     r.URL.Query().Get("q"),
		Page:       queryInt(r, "page", 1),
		PerPage:    queryInt(r, "per_page", 20),
	}

	cases, total, err := h.cases.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, cases, paginationMeta(filter.Page, filter.PerPage, total))
}

// Update handles PATCH /cases/{id}
func (h *CaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateCaseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	c, err := h.cases.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, c)
}

// ListCaseTypes handles GET /case-types
func (h *CaseHandler) ListCaseTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.cases.ListCaseTypes(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, types)
}

// ListFolderTemplates handles GET /case-types/{id}/folders
func (h *CaseHandler) ListFolderTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.cases.ListFolderTemplates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, templates)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func paginationMeta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
