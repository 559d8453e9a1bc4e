package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/sitetrack/activity"
	"github.com/GoCodeAlone/sitetrack/events"
	"github.com/GoCodeAlone/sitetrack/progress"
	"github.com/GoCodeAlone/sitetrack/project"
	"github.com/GoCodeAlone/sitetrack/suggest"
)

// Handlers bundles all REST API handler dependencies. Suggester and Activity
// are optional.
type Handlers struct {
	Store     project.Store
	Suggester suggest.Suggester
	Activity  activity.Log
	Bus       events.Bus
	Logger    *slog.Logger
	Version   string
	StartAt   time.Time
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects", h.listProjects)
	mux.HandleFunc("POST /api/projects", h.createProject)
	mux.HandleFunc("GET /api/projects/{id}", h.getProject)
	mux.HandleFunc("GET /api/projects/{id}/progress", h.getProgress)
	mux.HandleFunc("GET /api/projects/{id}/activity", h.listActivity)

	mux.HandleFunc("POST /api/projects/{id}/tasks", h.addTask)
	mux.HandleFunc("GET /api/projects/{id}/tasks/{taskID}", h.getTask)
	mux.HandleFunc("PATCH /api/projects/{id}/tasks/{taskID}", h.updateTask)
	mux.HandleFunc("POST /api/projects/{id}/tasks/{taskID}/suggestions", h.suggest)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Project handlers ---

func (h *Handlers) listProjects(w http.ResponseWriter, _ *http.Request) {
	projects := h.Store.ListProjects()
	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, newProjectView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) createProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.Store.AddProject(in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProjectView(p))
}

func (h *Handlers) getProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.Store.FindProject(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(p))
}

func (h *Handlers) getProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := h.Store.FindProject(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, progress.Summarize(p))
}

func (h *Handlers) listActivity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.Store.FindProject(id); !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	if h.Activity != nil {
		entries, err := h.Activity.List(r.Context(), activity.Filter{
			ProjectID: id,
			TaskID:    r.URL.Query().Get("task_id"),
			Limit:     limit,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	// Without a persistent log, fall back to the bus history.
	entries := []activity.Entry{}
	if h.Bus != nil {
		history, err := h.Bus.History(id, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for i := len(history) - 1; i >= 0; i-- {
			entries = append(entries, activity.EntryFromEvent(history[i]))
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Task handlers ---

func (h *Handlers) addTask(w http.ResponseWriter, r *http.Request) {
	var req AddTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := h.Store.AddTask(r.PathValue("id"), req.ParentID, project.TaskInput{Title: req.Title, Value: req.Value})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "project or parent task not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.Store.FindTask(r.PathValue("id"), r.PathValue("taskID"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	status, err := project.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.Store.UpdateTaskStatus(r.PathValue("id"), r.PathValue("taskID"), status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) suggest(w http.ResponseWriter, r *http.Request) {
	if h.Suggester == nil {
		writeError(w, http.StatusServiceUnavailable, "suggestions are not configured")
		return
	}
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	projectID, taskID := r.PathValue("id"), r.PathValue("taskID")
	p, ok := h.Store.FindProject(projectID)
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	t, ok := h.Store.FindTask(projectID, taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	titles, err := h.Suggester.Suggest(r.Context(), p.Title, t.Title)
	if err != nil {
		h.Logger.Warn("suggest failed", slog.String("project", projectID), slog.String("task", taskID), slog.Any("err", err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := SuggestResponse{Suggestions: titles, Added: []project.Task{}}
	if req.Apply {
		for _, title := range titles {
			added, err := h.Store.AddTask(projectID, taskID, project.TaskInput{Title: title})
			if err != nil {
				writeStoreError(w, err)
				return
			}
			if added == nil {
				// Project or task vanished between lookup and insert.
				writeError(w, http.StatusNotFound, "task not found")
				return
			}
			resp.Added = append(resp.Added, *added)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeStoreError maps store validation errors to 400 and anything else to 500.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrEmptyTitle),
		errors.Is(err, project.ErrInvalidStatus),
		errors.Is(err, project.ErrInvalidDates),
		errors.Is(err, project.ErrNegativeValue):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:   "ok",
		Version:  h.Version,
		Projects: len(h.Store.ListProjects()),
	}
	if !h.StartAt.IsZero() {
		resp.Uptime = time.Since(h.StartAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input is
// the zero time.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: want YYYY-MM-DD or RFC 3339, got %q", field, s)
	}
	return t, nil
}
