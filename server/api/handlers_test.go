package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GoCodeAlone/sitetrack/activity"
	"github.com/GoCodeAlone/sitetrack/events"
	"github.com/GoCodeAlone/sitetrack/progress"
	"github.com/GoCodeAlone/sitetrack/project"
	"github.com/GoCodeAlone/sitetrack/server/api"
)

// --- Test doubles ---

type fakeSuggester struct {
	titles []string
	err    error
	calls  []string
}

func (f *fakeSuggester) Suggest(_ context.Context, projectTitle, taskTitle string) ([]string, error) {
	f.calls = append(f.calls, projectTitle+"/"+taskTitle)
	return f.titles, f.err
}

type fakeActivity struct {
	entries []activity.Entry
	filter  activity.Filter
}

func (f *fakeActivity) Record(_ context.Context, _ *events.Event) error { return nil }

func (f *fakeActivity) List(_ context.Context, filter activity.Filter) ([]activity.Entry, error) {
	f.filter = filter
	return f.entries, nil
}

// --- Test helpers ---

var seedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	h     *api.Handlers
	mux   *http.ServeMux
	store *project.MemoryStore
	bus   *events.InMemoryBus
	sug   *fakeSuggester
}

func newHandlers(t *testing.T) *fixture {
	t.Helper()
	bus := events.NewInMemoryBus()
	store, err := project.NewMemoryStore(project.DefaultSeed(seedNow), project.WithBus(bus))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	sug := &fakeSuggester{titles: []string{"Anchor bolts", "Crane lift plan"}}
	mux := http.NewServeMux()
	h := &api.Handlers{
		Store:     store,
		Suggester: sug,
		Bus:       bus,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Version:   "test",
		StartAt:   time.Now(),
	}
	h.RegisterRoutes(mux)
	return &fixture{h: h, mux: mux, store: store, bus: bus, sug: sug}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %s)", err, rr.Body.String())
	}
	return v
}

// --- Tests ---

func TestListProjects(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodGet, "/api/projects", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	views := decode[[]api.ProjectView](t, rr)
	if len(views) != 2 || views[0].ID != "proj-1" || views[1].ID != "proj-2" {
		t.Fatalf("projects = %+v", views)
	}
	if views[0].Progress.ValuePercent != 45 || views[0].Progress.CountPercent != 50 {
		t.Errorf("proj-1 progress = %+v", views[0].Progress)
	}
}

func TestGetProject(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodGet, "/api/projects/proj-2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	v := decode[api.ProjectView](t, rr)
	if v.Title != "Bridge Expansion Project" || len(v.Tasks) != 2 {
		t.Errorf("project = %+v", v)
	}
	if v.Progress.Counts != (progress.Counts{InProgress: 1, Pending: 1, Total: 2}) {
		t.Errorf("counts = %+v", v.Progress.Counts)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	f := newHandlers(t)
	if rr := f.do(http.MethodGet, "/api/projects/nonexistent", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if rr := f.do(http.MethodGet, "/api/projects/nonexistent/progress", ""); rr.Code != http.StatusNotFound {
		t.Errorf("progress: expected 404, got %d", rr.Code)
	}
}

func TestGetProgress(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodGet, "/api/projects/proj-1/progress", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	s := decode[progress.Summary](t, rr)
	if s.Values.Completed != 45 || s.Values.ProjectValue != 100 || s.Counts.Total != 8 {
		t.Errorf("summary = %+v", s)
	}
}

func TestCreateProject(t *testing.T) {
	f := newHandlers(t)
	body := `{"title":"Harbor Pier","description":"rebuild","start_date":"2025-01-01","end_date":"2025-12-31T00:00:00Z","value":40}`
	rr := f.do(http.MethodPost, "/api/projects", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	v := decode[api.ProjectView](t, rr)
	if v.ID == "" || v.Title != "Harbor Pier" || v.Value != 40 {
		t.Errorf("created = %+v", v)
	}
	if v.Tasks == nil {
		t.Error("expected empty task list, not null")
	}
	if _, ok := f.store.FindProject(v.ID); !ok {
		t.Error("project not stored")
	}
}

func TestCreateProject_Invalid(t *testing.T) {
	f := newHandlers(t)
	cases := map[string]string{
		"empty title":    `{"title":"  "}`,
		"bad date":       `{"title":"X","start_date":"tomorrow"}`,
		"reverse dates":  `{"title":"X","start_date":"2025-02-01","end_date":"2025-01-01"}`,
		"negative value": `{"title":"X","value":-10}`,
		"not json":       `{`,
	}
	for name, body := range cases {
		if rr := f.do(http.MethodPost, "/api/projects", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rr.Code)
		}
	}
	if n := len(f.store.ListProjects()); n != 2 {
		t.Errorf("projects = %d, want 2", n)
	}
}

func TestAddTask_Root(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodPost, "/api/projects/proj-2/tasks", `{"title":"Phase 3: Testing"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	task := decode[project.Task](t, rr)
	if task.Status != project.StatusPending || task.Title != "Phase 3: Testing" {
		t.Errorf("task = %+v", task)
	}
	p, _ := f.store.FindProject("proj-2")
	if len(p.Tasks) != 3 || p.Tasks[2].ID != task.ID {
		t.Errorf("roots = %+v", p.Tasks)
	}
}

func TestAddTask_Child(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks", `{"title":"Welding inspection","parent_id":"task-1-2-2","value":2}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	parent, ok := f.store.FindTask("proj-1", "task-1-2-2")
	if !ok || len(parent.SubTasks) != 1 || parent.SubTasks[0].Value != 2 {
		t.Errorf("parent = %+v", parent)
	}
}

func TestAddTask_NotFound(t *testing.T) {
	f := newHandlers(t)
	if rr := f.do(http.MethodPost, "/api/projects/proj-9/tasks", `{"title":"x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown project: expected 404, got %d", rr.Code)
	}
	if rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks", `{"title":"x","parent_id":"task-9"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown parent: expected 404, got %d", rr.Code)
	}
}

func TestAddTask_EmptyTitle(t *testing.T) {
	f := newHandlers(t)
	if rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks", `{"title":""}`); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestAddTask_NegativeValue(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks", `{"title":"Refund","value":-5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("value must not be negative")) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestGetTask(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodGet, "/api/projects/proj-1/tasks/task-1-2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	task := decode[project.Task](t, rr)
	if task.ID != "task-1-2" || len(task.SubTasks) != 3 {
		t.Errorf("task = %+v", task)
	}
	if rr := f.do(http.MethodGet, "/api/projects/proj-1/tasks/task-9", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestUpdateTask(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodPatch, "/api/projects/proj-1/tasks/task-1-2-2", `{"status":"completed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	task := decode[project.Task](t, rr)
	if task.Status != project.StatusCompleted {
		t.Errorf("status = %q", task.Status)
	}
	sibling, _ := f.store.FindTask("proj-1", "task-1-2-3")
	if sibling.Status != project.StatusPending {
		t.Errorf("sibling status changed to %q", sibling.Status)
	}
}

func TestUpdateTask_Errors(t *testing.T) {
	f := newHandlers(t)
	if rr := f.do(http.MethodPatch, "/api/projects/proj-1/tasks/task-1-2-2", `{"status":"done"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad status: expected 400, got %d", rr.Code)
	}
	if rr := f.do(http.MethodPatch, "/api/projects/proj-1/tasks/task-9", `{"status":"Completed"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown task: expected 404, got %d", rr.Code)
	}
	if rr := f.do(http.MethodPatch, "/api/projects/proj-9/tasks/task-1-1", `{"status":"Completed"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown project: expected 404, got %d", rr.Code)
	}
}

func TestSuggest(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks/task-1-3/suggestions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[api.SuggestResponse](t, rr)
	if len(resp.Suggestions) != 2 || len(resp.Added) != 0 {
		t.Errorf("resp = %+v", resp)
	}
	if len(f.sug.calls) != 1 || f.sug.calls[0] != "Downtown Office Tower/Exterior Cladding & Glazing" {
		t.Errorf("suggester calls = %v", f.sug.calls)
	}
	task, _ := f.store.FindTask("proj-1", "task-1-3")
	if len(task.SubTasks) != 0 {
		t.Error("suggestions without apply must not change the tree")
	}
}

func TestSuggest_Apply(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks/task-1-3/suggestions", `{"apply":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[api.SuggestResponse](t, rr)
	if len(resp.Added) != 2 {
		t.Fatalf("added = %+v", resp.Added)
	}
	task, _ := f.store.FindTask("proj-1", "task-1-3")
	if len(task.SubTasks) != 2 || task.SubTasks[0].Title != "Anchor bolts" || task.SubTasks[1].Title != "Crane lift plan" {
		t.Errorf("subtasks = %+v", task.SubTasks)
	}
}

func TestSuggest_Errors(t *testing.T) {
	f := newHandlers(t)
	if rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks/task-9/suggestions", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown task: expected 404, got %d", rr.Code)
	}

	f.sug.err = errors.New("provider down")
	if rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks/task-1-3/suggestions", ""); rr.Code != http.StatusBadGateway {
		t.Errorf("provider error: expected 502, got %d", rr.Code)
	}

	f.h.Suggester = nil
	if rr := f.do(http.MethodPost, "/api/projects/proj-1/tasks/task-1-3/suggestions", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("no suggester: expected 503, got %d", rr.Code)
	}
}

func TestListActivity_FromLog(t *testing.T) {
	f := newHandlers(t)
	log := &fakeActivity{entries: []activity.Entry{{Seq: 1, Type: events.TypeTaskAdded, ProjectID: "proj-1"}}}
	f.h.Activity = log

	rr := f.do(http.MethodGet, "/api/projects/proj-1/activity?limit=5&task_id=task-1-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	entries := decode[[]activity.Entry](t, rr)
	if len(entries) != 1 {
		t.Errorf("entries = %+v", entries)
	}
	if log.filter != (activity.Filter{ProjectID: "proj-1", TaskID: "task-1-1", Limit: 5}) {
		t.Errorf("filter = %+v", log.filter)
	}
}

func TestListActivity_FromBusHistory(t *testing.T) {
	f := newHandlers(t)
	f.do(http.MethodPatch, "/api/projects/proj-2/tasks/task-2-2", `{"status":"In Progress"}`)
	f.do(http.MethodPatch, "/api/projects/proj-1/tasks/task-1-3", `{"status":"In Progress"}`)

	rr := f.do(http.MethodGet, "/api/projects/proj-2/activity", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	history := decode[[]activity.Entry](t, rr)
	if len(history) != 1 || history[0].TaskID != "task-2-2" || history[0].Type != events.TypeTaskStatusChanged {
		t.Errorf("history = %+v", history)
	}
	if history[0].CreatedAt.IsZero() {
		t.Error("expected created_at from the event timestamp")
	}

	if rr := f.do(http.MethodGet, "/api/projects/proj-9/activity", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown project: expected 404, got %d", rr.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[api.StatusResponse](t, rr)
	if resp.Status != "ok" || resp.Version != "test" || resp.Projects != 2 {
		t.Errorf("status = %+v", resp)
	}
}

func TestVersionEndpoint(t *testing.T) {
	f := newHandlers(t)
	rr := f.do(http.MethodGet, "/api/version", "")
	resp := decode[map[string]string](t, rr)
	if resp["version"] != "test" {
		t.Errorf("version = %q", resp["version"])
	}
}
