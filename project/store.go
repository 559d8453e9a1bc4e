package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/GoCodeAlone/sitetrack/events"
	"github.com/google/uuid"
)

// Store is the read/write surface over the canonical project collection.
//
// AddTask and UpdateTaskStatus treat an unknown project or task id as a
// no-op: state is left untouched and the returned task is nil. Errors are
// reserved for invalid input.
type Store interface {
	// ListProjects returns every project in creation order.
	ListProjects() []Project

	// FindProject returns the project with the given id.
	FindProject(id string) (Project, bool)

	// FindTask returns a task located anywhere in a project's tree.
	FindTask(projectID, taskID string) (Task, bool)

	// AddProject creates a project with a fresh id and no tasks.
	AddProject(in ProjectInput) (Project, error)

	// AddTask appends a new pending leaf task to the project roots when
	// parentID is empty, otherwise to the children of parentID.
	AddTask(projectID, parentID string, in TaskInput) (*Task, error)

	// UpdateTaskStatus sets a task's status and refreshes LastUpdated.
	UpdateTaskStatus(projectID, taskID string, status Status) (*Task, error)
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithBus publishes applied mutations to bus.
func WithBus(bus events.Bus) Option {
	return func(s *MemoryStore) { s.bus = bus }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MemoryStore) { s.logger = logger }
}

// WithClock overrides the time source used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// WithIDGenerator overrides id generation. The generator receives the id
// prefix ("proj" or "task").
func WithIDGenerator(gen func(prefix string) string) Option {
	return func(s *MemoryStore) { s.newID = gen }
}

// MemoryStore keeps projects in memory with copy-on-write task trees.
// Mutations are serialized by a write lock; readers receive deep copies and
// never observe a partially replaced tree. Events are published in the order
// the mutations were applied.
type MemoryStore struct {
	mu       sync.RWMutex
	pubMu    sync.Mutex // held from apply until publish returns
	projects []Project
	index    map[string]int // project id -> position in projects

	bus    events.Bus
	logger *slog.Logger
	now    func() time.Time
	newID  func(prefix string) string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore validates seed and returns a store initialized with a deep
// copy of it.
func NewMemoryStore(seed []Project, opts ...Option) (*MemoryStore, error) {
	if err := Validate(seed); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	s := &MemoryStore{
		projects: make([]Project, 0, len(seed)),
		index:    make(map[string]int, len(seed)),
		logger:   slog.Default(),
		now:      time.Now,
		newID:    newID,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range seed {
		s.index[p.ID] = len(s.projects)
		s.projects = append(s.projects, p.Clone())
	}
	return s, nil
}

// newID generates "<prefix>-<uuid>".
func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func (s *MemoryStore) mustInit() {
	if s == nil || s.index == nil {
		panic("project: MemoryStore used without NewMemoryStore")
	}
}

// ListProjects returns deep copies of all projects in creation order.
func (s *MemoryStore) ListProjects() []Project {
	s.mustInit()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = p.Clone()
	}
	return out
}

// FindProject returns a deep copy of the project with the given id.
func (s *MemoryStore) FindProject(id string) (Project, bool) {
	s.mustInit()
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Project{}, false
	}
	return s.projects[i].Clone(), true
}

// FindTask returns a deep copy of the task subtree rooted at taskID.
func (s *MemoryStore) FindTask(projectID, taskID string) (Task, bool) {
	s.mustInit()
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[projectID]
	if !ok {
		return Task{}, false
	}
	t, ok := findTask(s.projects[i].Tasks, taskID)
	if !ok {
		return Task{}, false
	}
	return t.Clone(), true
}

// AddProject creates and appends a project. Title must be non-blank and the
// start date must not fall after the end date.
func (s *MemoryStore) AddProject(in ProjectInput) (Project, error) {
	s.mustInit()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Project{}, ErrEmptyTitle
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.StartDate.After(in.EndDate) {
		return Project{}, ErrInvalidDates
	}
	if in.Value < 0 {
		return Project{}, ErrNegativeValue
	}

	p := Project{
		ID:          s.newID("proj"),
		Title:       title,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Value:       in.Value,
		Tasks:       []Task{},
	}

	s.mu.Lock()
	s.index[p.ID] = len(s.projects)
	s.projects = append(s.projects, p)
	s.pubMu.Lock()
	s.mu.Unlock()

	s.logger.Debug("project created", slog.String("project", p.ID), slog.String("title", p.Title))
	ev := events.New(events.TypeProjectCreated, p.ID)
	ev.Title = p.Title
	s.publish(ev)
	s.pubMu.Unlock()
	return p.Clone(), nil
}

// AddTask creates a pending leaf task and attaches it under parentID, or as
// the last root task when parentID is empty. An unknown project or parent
// leaves the store unchanged and returns a nil task.
func (s *MemoryStore) AddTask(projectID, parentID string, in TaskInput) (*Task, error) {
	s.mustInit()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if in.Value < 0 {
		return nil, ErrNegativeValue
	}

	s.mu.Lock()
	i, ok := s.index[projectID]
	if !ok {
		s.mu.Unlock()
		s.logger.Info("add task: project not found", slog.String("project", projectID))
		return nil, nil
	}

	task := Task{
		ID:          s.newID("task"),
		Title:       title,
		Status:      StatusPending,
		LastUpdated: s.now().UTC(),
		Value:       in.Value,
		SubTasks:    []Task{},
	}

	p := s.projects[i]
	if parentID == "" {
		p.Tasks = appendTask(p.Tasks, task)
	} else {
		path := locate(p.Tasks, parentID)
		if path == nil {
			s.mu.Unlock()
			s.logger.Info("add task: parent not found",
				slog.String("project", projectID), slog.String("parent", parentID))
			return nil, nil
		}
		p.Tasks = rewrite(p.Tasks, path, func(parent Task) Task {
			parent.SubTasks = appendTask(parent.SubTasks, task)
			return parent
		})
	}
	s.replace(i, p)
	s.pubMu.Lock()
	s.mu.Unlock()

	s.logger.Debug("task added",
		slog.String("project", projectID), slog.String("task", task.ID), slog.String("parent", parentID))
	ev := events.New(events.TypeTaskAdded, projectID)
	ev.TaskID = task.ID
	ev.ParentID = parentID
	ev.Title = task.Title
	ev.Status = string(task.Status)
	s.publish(ev)
	s.pubMu.Unlock()

	out := task.Clone()
	return &out, nil
}

// UpdateTaskStatus replaces the task with a copy carrying status and a fresh
// LastUpdated. Ancestors on the path are re-created; unrelated subtrees are
// carried over unchanged. An unknown project or task is a no-op returning a
// nil task.
func (s *MemoryStore) UpdateTaskStatus(projectID, taskID string, status Status) (*Task, error) {
	s.mustInit()
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	i, ok := s.index[projectID]
	if !ok {
		s.mu.Unlock()
		s.logger.Info("update status: project not found", slog.String("project", projectID))
		return nil, nil
	}
	p := s.projects[i]
	path := locate(p.Tasks, taskID)
	if path == nil {
		s.mu.Unlock()
		s.logger.Info("update status: task not found",
			slog.String("project", projectID), slog.String("task", taskID))
		return nil, nil
	}

	var updated Task
	now := s.now().UTC()
	p.Tasks = rewrite(p.Tasks, path, func(t Task) Task {
		t.Status = status
		t.LastUpdated = now
		updated = t
		return t
	})
	s.replace(i, p)
	s.pubMu.Lock()
	s.mu.Unlock()

	s.logger.Debug("task status changed",
		slog.String("project", projectID), slog.String("task", taskID), slog.String("status", string(status)))
	ev := events.New(events.TypeTaskStatusChanged, projectID)
	ev.TaskID = taskID
	ev.Title = updated.Title
	ev.Status = string(status)
	s.publish(ev)
	s.pubMu.Unlock()

	out := updated.Clone()
	return &out, nil
}

// replace swaps in a new version of the project at position i. The projects
// slice itself is re-created so snapshots taken under the read lock stay
// intact. Callers hold the write lock.
func (s *MemoryStore) replace(i int, p Project) {
	next := make([]Project, len(s.projects))
	copy(next, s.projects)
	next[i] = p
	s.projects = next
}

// publish delivers ev to the bus. Callers take pubMu before releasing mu so
// concurrent writers publish in apply order without running handlers under
// the state lock.
func (s *MemoryStore) publish(ev *events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), ev); err != nil {
		s.logger.Warn("publish store event", slog.String("type", string(ev.Type)), slog.Any("err", err))
	}
}
