package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timottowitz/obelisk-backend/internal/cases/repository"
	"github.com/timottowitz/obelisk-backend/internal/cases/service"
	"github.com/timottowitz/obelisk-backend/pkg/httputil"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
)

// TaskHandler handles task HTTP requests
type TaskHandler struct {
	tasks  *service.TaskService
	logger *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *service.TaskService, log *logger.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:  tasks,
		logger: log.WithComponent("task_handler"),
	}
}

// RegisterRoutes registers task routes
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Route("/cases/{caseID}/tasks", func(r chi.Router) {
		r.Get("/", h.ListByCase)
		r.Post("/", h.Create)
	})
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
	})
	r.Get("/task-categories", h.ListCategories)
}

// Create handles POST /cases/{caseID}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTaskRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	t, err := h.tasks.Create(r.Context(), chi.URLParam(r, "caseID"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, t)
}

// Get handles GET /tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, t)
}

// ListByCase handles GET /cases/{caseID}/tasks
func (h *TaskHandler) ListByCase(w http.ResponseWriter, r *http.Request) {
	filter := repository.TaskFilter{
		Status:     r.URL.Query().Get("status"),
		AssignedTo: r.URL.Query().Get("assigned_to"),
		Page:       queryInt(r, "page", 1),
		PerPage:    queryInt(r, "per_page", 20),
	}

	tasks, total, err := h.tasks.ListByCase(r.Context(), chi.URLParam(r, "caseID"), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, tasks, paginationMeta(filter.Page, filter.PerPage, total))
}

// Update handles PATCH /tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateTaskRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	t, err := h.tasks.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, t)
}

// ListCategories handles GET /task-categories
func (h *TaskHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.tasks.ListCategories(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, cats)
}
