// Package suggest generates candidate subtask titles for a task using an AI
// provider.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/GoCodeAlone/sitetrack/provider"
	"github.com/GoCodeAlone/sitetrack/provider/mock"
)

// DefaultMax is the number of suggestions returned when none is configured.
const DefaultMax = 5

// ErrNoSuggestions is returned when the provider reply holds no usable title.
var ErrNoSuggestions = errors.New("suggest: provider returned no suggestions")

// Suggester proposes subtask titles for a task within a project.
type Suggester interface {
	Suggest(ctx context.Context, projectTitle, taskTitle string) ([]string, error)
}

const systemPrompt = `You are an assistant for construction project managers.
Given a project and one of its tasks, propose concrete sub-tasks that break the task down.
Reply with one short sub-task title per line and nothing else.`

// Service implements Suggester over a provider.Provider.
type Service struct {
	provider provider.Provider
	max      int
	timeout  time.Duration
	logger   *slog.Logger
}

var _ Suggester = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithMax caps the number of titles returned.
func WithMax(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service backed by p.
func NewService(p provider.Provider, opts ...Option) *Service {
	s := &Service{provider: p, max: DefaultMax, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest asks the provider for subtask titles and returns at most the
// configured number of distinct, non-blank titles in reply order.
func (s *Service) Suggest(ctx context.Context, projectTitle, taskTitle string) ([]string, error) {
	if strings.TrimSpace(taskTitle) == "" {
		return nil, errors.New("suggest: task title is required")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: systemPrompt},
		{Role: provider.RoleUser, Content: fmt.Sprintf(
			"Project: %s\nTask: %s\nSuggest up to %d sub-tasks.", projectTitle, taskTitle, s.max)},
	}
	resp, err := s.provider.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("suggest via %s: %w", s.provider.Name(), err)
	}

	titles := Parse(resp.Content, s.max)
	s.logger.Debug("suggestions generated",
		slog.String("provider", s.provider.Name()),
		slog.String("task", taskTitle),
		slog.Int("count", len(titles)),
		slog.Int("output_tokens", resp.Usage.OutputTokens))
	if len(titles) == 0 {
		return nil, ErrNoSuggestions
	}
	return titles, nil
}

var listMarker = regexp.MustCompile(`^(?:[-*•+]+|\(?\d+[.):]|[a-zA-Z][.)])(?:\s+|$)`)

// Parse splits a free-text reply into titles. List markers (bullets,
// "1." or "a)" numbering) and surrounding quotes or emphasis are removed;
// blank lines and case-insensitive duplicates are dropped. At most max titles
// are returned; max <= 0 means no limit.
func Parse(reply string, max int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(reply, "\n") {
		title := strings.TrimSpace(line)
		title = listMarker.ReplaceAllString(title, "")
		title = strings.Trim(title, "*_\"'` ")
		title = strings.TrimSuffix(title, ".")
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, title)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// Providers lists the backends NewProvider can build.
var Providers = func() *provider.Registry {
	r := provider.Builtin()
	_ = r.Register("mock", func(provider.Config) (provider.Provider, error) {
		return mock.New(), nil
	})
	return r
}()

// NewProvider builds the provider named by kind ("mock", "anthropic" or
// "openai"). An empty kind selects the mock.
func NewProvider(kind string, cfg provider.Config) (provider.Provider, error) {
	if kind == "" {
		kind = "mock"
	}
	return Providers.New(kind, cfg)
}
