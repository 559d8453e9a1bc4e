// Package api defines the REST API handlers and wire types for the sitetrack
// server.
package api

import (
	"github.com/GoCodeAlone/sitetrack/progress"
	"github.com/GoCodeAlone/sitetrack/project"
)

// ProjectView is a project with its progress summary.
type ProjectView struct {
	project.Project
	Progress progress.Summary `json:"progress"`
}

func newProjectView(p project.Project) ProjectView {
	return ProjectView{Project: p, Progress: progress.Summarize(p)}
}

// CreateProjectRequest is the body of POST /api/projects. Dates are
// YYYY-MM-DD or RFC 3339.
type CreateProjectRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Value       float64 `json:"value"`
}

func (r CreateProjectRequest) input() (project.ProjectInput, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return project.ProjectInput{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return project.ProjectInput{}, err
	}
	return project.ProjectInput{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   start,
		EndDate:     end,
		Value:       r.Value,
	}, nil
}

// AddTaskRequest is the body of POST /api/projects/{id}/tasks. An empty
// ParentID adds a root task.
type AddTaskRequest struct {
	Title    string  `json:"title"`
	ParentID string  `json:"parent_id,omitempty"`
	Value    float64 `json:"value,omitempty"`
}

// UpdateTaskRequest is the body of PATCH /api/projects/{id}/tasks/{taskID}.
type UpdateTaskRequest struct {
	Status string `json:"status"`
}

// SuggestRequest is the optional body of the suggestions endpoint.
type SuggestRequest struct {
	Apply bool `json:"apply"` // also add every suggestion as a subtask
}

// SuggestResponse lists generated titles and, when applied, the tasks
// created from them.
type SuggestResponse struct {
	Suggestions []string       `json:"suggestions"`
	Added       []project.Task `json:"added"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Projects int    `json:"projects"`
	Uptime   string `json:"uptime,omitempty"`
}
