package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validSeed = `
projects:
  - id: proj-a
    title: Harbor Pier
    description: Ferry pier rebuild
    start_date: 2024-01-10
    end_date: 2024-12-20
    value: 30
    tasks:
      - id: t-1
        title: Piling
        status: Completed
        last_updated: 2024-02-01T09:00:00Z
        value: 10
        sub_tasks:
          - id: t-1-1
            title: Driving piles
            status: In Progress
            value: 10
      - id: t-2
        title: Deck
        status: Pending
        value: 20
  - id: proj-b
    title: Empty Lot
`

func TestDefaultSeed_IsValid(t *testing.T) {
	if err := Validate(DefaultSeed(seedTime)); err != nil {
		t.Fatalf("Validate(DefaultSeed) = %v", err)
	}
}

func TestParseSeed(t *testing.T) {
	now := time.Date(2024, 3, 3, 3, 3, 3, 0, time.UTC)
	projects, err := ParseSeed([]byte(validSeed), now)
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("len(projects) = %d, want 2", len(projects))
	}

	p := projects[0]
	if p.Value != 30 || p.Title != "Harbor Pier" {
		t.Errorf("project = %+v", p)
	}
	if want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC); !p.StartDate.Equal(want) {
		t.Errorf("StartDate = %v, want %v", p.StartDate, want)
	}
	if got := p.Tasks[0].SubTasks[0]; got.Status != StatusInProgress || !got.LastUpdated.Equal(now) {
		t.Errorf("nested task = %+v", got)
	}
	if want := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC); !p.Tasks[0].LastUpdated.Equal(want) {
		t.Errorf("explicit LastUpdated = %v, want %v", p.Tasks[0].LastUpdated, want)
	}
	if p.Tasks[1].SubTasks == nil {
		t.Error("leaf SubTasks should be normalized to an empty slice")
	}
	if projects[1].Tasks == nil {
		t.Error("project without tasks should get an empty slice")
	}
}

func TestParseSeed_SchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown status": `
projects:
  - id: p
    title: P
    tasks:
      - id: t
        title: T
        status: Done
`,
		"missing title": `
projects:
  - id: p
    tasks: []
`,
		"unknown field": `
projects:
  - id: p
    title: P
    owner: someone
`,
		"not a document": `- just a list`,
	}
	for name, doc := range cases {
		if _, err := ParseSeed([]byte(doc), seedTime); err == nil {
			t.Errorf("%s: expected error", name)
		} else if !strings.Contains(err.Error(), "schema") {
			t.Errorf("%s: error %q does not mention schema", name, err)
		}
	}
}

func TestParseSeed_InvariantViolations(t *testing.T) {
	doc := `
projects:
  - id: p
    title: P
    start_date: 2025-01-01
    end_date: 2024-01-01
    tasks:
      - id: t
        title: T
        status: Pending
        sub_tasks:
          - id: t
            title: Duplicate
            status: Pending
`
	_, err := ParseSeed([]byte(doc), seedTime)
	if err == nil {
		t.Fatal("expected invariant error")
	}
	if !errors.Is(err, ErrInvalidDates) {
		t.Errorf("expected ErrInvalidDates in %v", err)
	}
	if !strings.Contains(err.Error(), "duplicate task id t") {
		t.Errorf("expected duplicate task id in %v", err)
	}
}

func TestValidate_NegativeValues(t *testing.T) {
	seed := DefaultSeed(seedTime)
	seed[0].Value = -1
	seed[1].Tasks[0].Value = -2
	err := Validate(seed)
	if !errors.Is(err, ErrNegativeValue) {
		t.Fatalf("Validate = %v, want ErrNegativeValue", err)
	}
	if !strings.Contains(err.Error(), "project proj-1") || !strings.Contains(err.Error(), "task task-2-1") {
		t.Errorf("error does not name both offenders: %v", err)
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(validSeed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	projects, err := LoadSeedFile(path, seedTime)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if _, err := NewMemoryStore(projects); err != nil {
		t.Fatalf("NewMemoryStore from file seed: %v", err)
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"), seedTime); err == nil {
		t.Error("expected error for missing file")
	}
}
