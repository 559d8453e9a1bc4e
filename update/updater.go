// Package update checks GitHub releases for newer sitetrack builds and
// replaces the running binary.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const defaultAPI = "https://api.github.com"

// ErrNoAsset is returned when a release has no binary for this platform.
var ErrNoAsset = errors.New("no release asset for this platform")

// Release is a newer build available for the current platform.
type Release struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name string `json:"name"`
		URL  string `json:"browser_download_url"`
	} `json:"assets"`
}

// Updater checks for and applies self-updates from GitHub releases.
type Updater struct {
	CurrentVersion string
	Binary         string // asset prefix, "sitetrack" or "sitetrackd"
	Repo           string // owner/name
	APIBase        string
	GOOS, GOARCH   string
	HTTPClient     *http.Client
}

// New returns an Updater for binary at currentVersion.
func New(binary, currentVersion string) *Updater {
	return &Updater{
		CurrentVersion: currentVersion,
		Binary:         binary,
		Repo:           "GoCodeAlone/sitetrack",
		APIBase:        defaultAPI,
		GOOS:           runtime.GOOS,
		GOARCH:         runtime.GOARCH,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Check returns the latest release, or nil when already current. Dev builds
// never update.
func (u *Updater) Check(ctx context.Context) (*Release, error) {
	if u.CurrentVersion == "dev" {
		return nil, nil
	}
	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(u.APIBase, "/"), u.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", u.Binary+"/"+u.CurrentVersion)

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github API returned %d", resp.StatusCode)
	}

	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}
	if strings.TrimPrefix(rel.TagName, "v") == strings.TrimPrefix(u.CurrentVersion, "v") {
		return nil, nil
	}

	// Release assets are named like sitetrack_linux_x86_64.tar.gz.
	arch := u.GOARCH
	if arch == "amd64" {
		arch = "x86_64"
	}
	prefix := strings.ToLower(u.Binary + "_" + u.GOOS + "_" + arch)
	for _, a := range rel.Assets {
		if strings.HasPrefix(strings.ToLower(a.Name), prefix) {
			return &Release{Version: rel.TagName, URL: a.URL}, nil
		}
	}
	return nil, fmt.Errorf("%s %s/%s: %w", rel.TagName, u.GOOS, u.GOARCH, ErrNoAsset)
}

// Apply downloads rel and writes it over target (the running executable when
// empty).
func (u *Updater) Apply(ctx context.Context, rel *Release, target string) error {
	if target == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		target = exe
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rel.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("download release: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %d", resp.StatusCode)
	}

	// Rename is only atomic within one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+u.Binary+"-update-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("replace binary: %w", err)
	}
	return nil
}
