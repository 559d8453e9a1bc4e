// Command sitetrack is the sitetrack CLI client.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GoCodeAlone/sitetrack/internal/version"
	"github.com/GoCodeAlone/sitetrack/update"
)

const defaultServer = "http://localhost:9090"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sitetrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverURL := fs.String("server", envOr("SITETRACK_SERVER", defaultServer), "sitetrack server URL")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	args := fs.Args()
	if len(args) == 0 {
		usage(stderr)
		return 1
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Out:        stdout,
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(stdout)
	case "update":
		err = cmdUpdate(rest, stdout)
	case "status":
		err = cli.cmdStatus(rest)
	case "projects":
		err = cli.cmdProjects(rest)
	case "project":
		err = cli.cmdProject(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "suggest":
		err = cli.cmdSuggest(rest)
	case "activity":
		err = cli.cmdActivity(rest)
	case "serve":
		fmt.Fprintln(stderr, "use sitetrackd to run the server")
		return 1
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		usage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprint(w, `sitetrack - construction project tracker CLI

Usage:
  sitetrack [flags] <command> [args]

Flags:
  --server <url>   server URL (default: http://localhost:9090, or $SITETRACK_SERVER)

Commands:
  version                                        print version
  update [--apply]                               check for (and install) a newer release
  status                                         show server status
  projects                                       list projects with progress
  project <id>                                   show a project's task tree
  project create [--description d] [--start YYYY-MM-DD] [--end YYYY-MM-DD] [--value n] <title>
  task add <project> [--parent id] [--value n] <title>
  task status <project> <task> <status>          set Pending, "In Progress" or Completed
  suggest <project> <task> [--apply]             AI subtask suggestions
  activity <project> [--limit n]                 recent changes
`)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// --- version ---

func cmdVersion(w io.Writer) error {
	fmt.Fprintln(w, version.String("sitetrack"))
	return nil
}

// --- update ---

func cmdUpdate(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	apply := fs.Bool("apply", false, "download and install the release")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return checkUpdate(context.Background(), update.New("sitetrack", version.Version), *apply, w)
}

func checkUpdate(ctx context.Context, u *update.Updater, apply bool, w io.Writer) error {
	rel, err := u.Check(ctx)
	if err != nil {
		return err
	}
	if rel == nil {
		fmt.Fprintf(w, "sitetrack %s is up to date\n", u.CurrentVersion)
		return nil
	}
	if !apply {
		fmt.Fprintf(w, "sitetrack %s is available (run 'sitetrack update --apply')\n", rel.Version)
		return nil
	}
	if err := u.Apply(ctx, rel, ""); err != nil {
		return err
	}
	fmt.Fprintf(w, "updated to %s\n", rel.Version)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Out        io.Writer
}

// do sends body (JSON-encoded when non-nil) and decodes the response into v
// (may be nil).
func (c *Client) do(method, path string, body, v any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

func (c *Client) post(path string, body, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

func (c *Client) patch(path string, body, v any) error {
	return c.do(http.MethodPatch, path, body, v)
}

func (c *Client) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}
