package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/sitetrack/activity"
	"github.com/GoCodeAlone/sitetrack/project"
	"github.com/GoCodeAlone/sitetrack/server/api"
)

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result api.StatusResponse
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	c.printf("status:   %s\n", result.Status)
	c.printf("version:  %s\n", result.Version)
	c.printf("projects: %d\n", result.Projects)
	if result.Uptime != "" {
		c.printf("uptime:   %s\n", result.Uptime)
	}
	return nil
}

// --- projects ---

func (c *Client) cmdProjects(_ []string) error {
	var projects []api.ProjectView
	if err := c.get("/api/projects", &projects); err != nil {
		return err
	}
	if len(projects) == 0 {
		c.printf("no projects\n")
		return nil
	}
	c.printf("%-14s %-32s %-8s %-8s %-8s\n", "ID", "TITLE", "TASKS", "DONE%", "VALUE%")
	c.printf("%s\n", strings.Repeat("-", 74))
	for _, p := range projects {
		c.printf("%-14s %-32s %-8d %-8d %-8d\n",
			truncate(p.ID, 14),
			truncate(p.Title, 31),
			p.Progress.Counts.Total,
			p.Progress.CountPercent,
			p.Progress.ValuePercent,
		)
	}
	return nil
}

// --- project subcommands ---

func (c *Client) cmdProject(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: sitetrack project <id> | project create <title>")
	}
	if args[0] == "create" {
		return c.cmdProjectCreate(args[1:])
	}

	var p api.ProjectView
	if err := c.get("/api/projects/"+url.PathEscape(args[0]), &p); err != nil {
		return err
	}
	c.printf("%s (%s)\n", p.Title, p.ID)
	if p.Description != "" {
		c.printf("%s\n", p.Description)
	}
	if !p.StartDate.IsZero() || !p.EndDate.IsZero() {
		c.printf("schedule: %s to %s\n", formatDate(p.StartDate), formatDate(p.EndDate))
	}
	c.printf("progress: %d%% of tasks complete (%d/%d), %d%% of value (%g/%g)\n",
		p.Progress.CountPercent, p.Progress.Counts.Completed, p.Progress.Counts.Total,
		p.Progress.ValuePercent, p.Progress.Values.Completed, p.Progress.Values.ProjectValue)
	c.printf("\n")
	printTree(c.Out, p.Tasks, 0)
	return nil
}

func (c *Client) cmdProjectCreate(args []string) error {
	fs := flag.NewFlagSet("project create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	desc := fs.String("description", "", "project description")
	start := fs.String("start", "", "start date (YYYY-MM-DD)")
	end := fs.String("end", "", "end date (YYYY-MM-DD)")
	value := fs.Float64("value", 0, "project value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	title := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(title) == "" {
		return errors.New("usage: sitetrack project create [flags] <title>")
	}

	req := api.CreateProjectRequest{
		Title:       title,
		Description: *desc,
		StartDate:   *start,
		EndDate:     *end,
		Value:       *value,
	}
	var p api.ProjectView
	if err := c.post("/api/projects", req, &p); err != nil {
		return err
	}
	c.printf("created project %s\n", p.ID)
	return nil
}

// --- task subcommands ---

func (c *Client) cmdTask(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: sitetrack task <add|status> ...")
	}
	switch args[0] {
	case "add":
		return c.cmdTaskAdd(args[1:])
	case "status":
		return c.cmdTaskStatus(args[1:])
	default:
		return fmt.Errorf("unknown task subcommand: %s", args[0])
	}
}

func (c *Client) cmdTaskAdd(args []string) error {
	const use = "usage: sitetrack task add <project> [--parent id] [--value n] <title>"
	if len(args) < 1 {
		return errors.New(use)
	}
	projectID := args[0]

	fs := flag.NewFlagSet("task add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	parent := fs.String("parent", "", "parent task id (root when empty)")
	value := fs.Float64("value", 0, "task value")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	title := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(title) == "" {
		return errors.New(use)
	}

	var t project.Task
	req := api.AddTaskRequest{Title: title, ParentID: *parent, Value: *value}
	if err := c.post("/api/projects/"+url.PathEscape(projectID)+"/tasks", req, &t); err != nil {
		return err
	}
	c.printf("created task %s\n", t.ID)
	return nil
}

func (c *Client) cmdTaskStatus(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: sitetrack task status <project> <task> <status>")
	}
	status, err := project.ParseStatus(strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	var t project.Task
	path := "/api/projects/" + url.PathEscape(args[0]) + "/tasks/" + url.PathEscape(args[1])
	if err := c.patch(path, api.UpdateTaskRequest{Status: string(status)}, &t); err != nil {
		return err
	}
	c.printf("%s %s is now %s\n", statusMark(t.Status), t.Title, t.Status)
	return nil
}

// --- suggest ---

func (c *Client) cmdSuggest(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: sitetrack suggest <project> <task> [--apply]")
	}
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	apply := fs.Bool("apply", false, "add the suggestions as subtasks")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	var resp api.SuggestResponse
	path := "/api/projects/" + url.PathEscape(args[0]) + "/tasks/" + url.PathEscape(args[1]) + "/suggestions"
	if err := c.post(path, api.SuggestRequest{Apply: *apply}, &resp); err != nil {
		return err
	}
	for i, s := range resp.Suggestions {
		c.printf("%d. %s\n", i+1, s)
	}
	if *apply {
		c.printf("added %d subtasks\n", len(resp.Added))
	}
	return nil
}

// --- activity ---

func (c *Client) cmdActivity(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: sitetrack activity <project> [--limit n]")
	}
	fs := flag.NewFlagSet("activity", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 20, "maximum entries")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var entries []activity.Entry
	path := "/api/projects/" + url.PathEscape(args[0]) + "/activity?limit=" + strconv.Itoa(*limit)
	if err := c.get(path, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		c.printf("no activity\n")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-20s", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Type)
		if e.TaskID != "" {
			line += " " + e.TaskID
		}
		if e.Title != "" {
			line += " " + strconv.Quote(e.Title)
		}
		if e.Status != "" {
			line += " -> " + e.Status
		}
		c.printf("%s\n", line)
	}
	return nil
}

// --- helpers ---

func printTree(w io.Writer, tasks []project.Task, depth int) {
	for _, t := range tasks {
		fmt.Fprintf(w, "%s%s %s", strings.Repeat("  ", depth), statusMark(t.Status), t.Title)
		if t.Value != 0 {
			fmt.Fprintf(w, " (%g)", t.Value)
		}
		fmt.Fprintf(w, "  [%s]\n", t.ID)
		printTree(w, t.SubTasks, depth+1)
	}
}

func statusMark(s project.Status) string {
	switch s {
	case project.StatusCompleted:
		return "[x]"
	case project.StatusInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "?"
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
