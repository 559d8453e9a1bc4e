package project

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed seed.schema.json
var seedSchema []byte

const seedSchemaURL = "https://sitetrack.local/seed.schema.json"

// seedFile is the on-disk layout of a YAML seed file.
type seedFile struct {
	Projects []Project `yaml:"projects"`
}

// DefaultSeed returns the built-in fixture: two construction projects with
// nested task trees. Tasks that were "just touched" carry now as their
// LastUpdated.
func DefaultSeed(now time.Time) []Project {
	at := func(s string) time.Time {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			panic(err)
		}
		return t
	}
	day := func(s string) time.Time {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			panic(err)
		}
		return t
	}
	leaf := func(id, title string, status Status, updated time.Time, value float64) Task {
		return Task{ID: id, Title: title, Status: status, LastUpdated: updated, Value: value, SubTasks: []Task{}}
	}
	now = now.UTC()

	return []Project{
		{
			ID:    "proj-1",
			Title: "Downtown Office Tower",
			Description: "Construction of a new 40-story office building in the city center. " +
				"Includes foundation, structural work, facade, and interior finishing.",
			StartDate: day("2023-01-15"),
			EndDate:   day("2025-06-30"),
			Value:     100,
			Tasks: []Task{
				{
					ID:          "task-1-1",
					Title:       "Foundation & Excavation",
					Status:      StatusCompleted,
					LastUpdated: at("2023-04-20T10:00:00Z"),
					SubTasks: []Task{
						leaf("task-1-1-1", "Site Clearing", StatusCompleted, at("2023-02-01T10:00:00Z"), 10),
						leaf("task-1-1-2", "Pouring Concrete", StatusCompleted, at("2023-04-15T10:00:00Z"), 20),
					},
				},
				{
					ID:          "task-1-2",
					Title:       "Structural Steel Erection",
					Status:      StatusInProgress,
					LastUpdated: now,
					SubTasks: []Task{
						leaf("task-1-2-1", "Floors 1-10", StatusCompleted, at("2023-08-01T10:00:00Z"), 15),
						leaf("task-1-2-2", "Floors 11-25", StatusInProgress, now, 15),
						leaf("task-1-2-3", "Floors 26-40", StatusPending, at("2023-05-01T10:00:00Z"), 15),
					},
				},
				leaf("task-1-3", "Exterior Cladding & Glazing", StatusPending, at("2023-05-01T10:00:00Z"), 25),
			},
		},
		{
			ID:    "proj-2",
			Title: "Bridge Expansion Project",
			Description: "Widening of the main city bridge to accommodate more traffic. " +
				"Includes adding two new lanes and reinforcing the existing structure.",
			StartDate: day("2024-03-01"),
			EndDate:   day("2025-12-31"),
			Value:     50,
			Tasks: []Task{
				leaf("task-2-1", "Phase 1: Reinforcement", StatusInProgress, now, 30),
				leaf("task-2-2", "Phase 2: New Lane Construction", StatusPending, at("2024-03-01T10:00:00Z"), 20),
			},
		},
	}
}

// Validate checks the structural invariants of a project collection: unique
// non-empty project ids, non-blank titles, ordered dates, and task trees with
// unique ids and known statuses.
func Validate(projects []Project) error {
	seen := make(map[string]bool, len(projects))
	var errs []error
	for i, p := range projects {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("project %d: empty id", i))
		} else if seen[p.ID] {
			errs = append(errs, fmt.Errorf("project %s: duplicate id", p.ID))
		}
		seen[p.ID] = true
		if p.Title == "" {
			errs = append(errs, fmt.Errorf("project %s: %w", p.ID, ErrEmptyTitle))
		}
		if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.StartDate.After(p.EndDate) {
			errs = append(errs, fmt.Errorf("project %s: %w", p.ID, ErrInvalidDates))
		}
		if p.Value < 0 {
			errs = append(errs, fmt.Errorf("project %s: %w", p.ID, ErrNegativeValue))
		}

		taskIDs := make(map[string]bool)
		walk(p.Tasks, func(t Task) bool {
			switch {
			case t.ID == "":
				errs = append(errs, fmt.Errorf("project %s: task with empty id", p.ID))
			case taskIDs[t.ID]:
				errs = append(errs, fmt.Errorf("project %s: duplicate task id %s", p.ID, t.ID))
			}
			taskIDs[t.ID] = true
			if t.Title == "" {
				errs = append(errs, fmt.Errorf("task %s: %w", t.ID, ErrEmptyTitle))
			}
			if !t.Status.Valid() {
				errs = append(errs, fmt.Errorf("task %s: %w: %q", t.ID, ErrInvalidStatus, t.Status))
			}
			if t.Value < 0 {
				errs = append(errs, fmt.Errorf("task %s: %w", t.ID, ErrNegativeValue))
			}
			return true
		})
	}
	return errors.Join(errs...)
}

// LoadSeedFile reads a YAML seed file, validates it against the seed JSON
// Schema and the model invariants, and returns its projects. Tasks without
// a last_updated timestamp get now.
func LoadSeedFile(path string, now time.Time) ([]Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(data, now)
}

// ParseSeed decodes YAML seed data. See LoadSeedFile.
func ParseSeed(data []byte, now time.Time) ([]Project, error) {
	if err := validateSeedSchema(data); err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i := range f.Projects {
		normalizeTasks(f.Projects[i].Tasks, now.UTC())
		if f.Projects[i].Tasks == nil {
			f.Projects[i].Tasks = []Task{}
		}
	}
	if err := Validate(f.Projects); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return f.Projects, nil
}

func normalizeTasks(tasks []Task, now time.Time) {
	for i := range tasks {
		if tasks[i].LastUpdated.IsZero() {
			tasks[i].LastUpdated = now
		}
		if tasks[i].SubTasks == nil {
			tasks[i].SubTasks = []Task{}
		}
		normalizeTasks(tasks[i].SubTasks, now)
	}
}

// validateSeedSchema checks the raw YAML document against seed.schema.json.
// The YAML is round-tripped through JSON so the validator sees plain JSON
// values.
func validateSeedSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert seed to json: %w", err)
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return fmt.Errorf("convert seed to json: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(seedSchemaURL, bytes.NewReader(seedSchema)); err != nil {
		return fmt.Errorf("load seed schema: %w", err)
	}
	schema, err := compiler.Compile(seedSchemaURL)
	if err != nil {
		return fmt.Errorf("compile seed schema: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("seed does not match schema: %s", ve.Error())
		}
		return fmt.Errorf("seed does not match schema: %w", err)
	}
	return nil
}
