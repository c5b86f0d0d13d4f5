package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/admin"
)

type ProjectHandler struct {
	svc *admin.Service
}

func NewProjectHandler(svc *admin.Service) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProject(r.Context(), actor(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context(), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects, "count": len(projects)})
}

func (h *ProjectHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	projectID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Title    string     `json:"title"`
		Assignee *uuid.UUID `json:"assignee_user_id,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := h.svc.CreateTask(r.Context(), actor(r), projectID, req.Title, req.Assignee)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *ProjectHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListTasks(r.Context(), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks, "count": len(tasks)})
}
