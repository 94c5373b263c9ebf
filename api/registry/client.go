// Package registry reads branches and tags from a Docker registry (v2 API).
// Repositories are named <app>/<branch>.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/errgroup"

	"envdash/api/model"
)

// StatusError is a non-2xx answer from the registry.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry %s: HTTP %d", e.URL, e.StatusCode)
}

// App is one deployable app of an environment type with its branches.
type App struct {
	Name            string   `json:"name"`
	RepoName        string   `json:"repoName"`
	NameCapitalized string   `json:"nameCapitalized"`
	Branches        []string `json:"branches"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Ping checks that the registry answers its base endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	// 401 still means a live registry
	if resp.StatusCode >= 500 {
		return &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), URL: c.baseURL + "/"}
	}
	return nil
}

// FindBranchesOfApp lists the branches pushed for app, develop first.
func (c *Client) FindBranchesOfApp(ctx context.Context, app string) ([]string, error) {
	var catalog struct {
		Repositories []string `json:"repositories"`
	}
	if err := c.getJSON(ctx, "/_catalog?n=10000", &catalog); err != nil {
		return nil, err
	}

	branches := []string{}
	for _, repo := range catalog.Repositories {
		name, branch, ok := strings.Cut(repo, "/")
		if !ok || name != app {
			continue
		}
		if i := strings.IndexByte(branch, '/'); i >= 0 {
			branch = branch[:i]
		}
		branches = append(branches, branch)
	}
	SortBranches(branches)
	return branches, nil
}

// SortBranches orders branch names with develop ahead of everything else.
func SortBranches(branches []string) {
	col := model.NewCollator()
	key := func(b string) string { return strings.Replace(b, "develop", "0", 1) }
	sort.SliceStable(branches, func(i, j int) bool {
		return col.CompareString(key(branches[i]), key(branches[j])) < 0
	})
}

// FindRepositoryTags lists the tags of repo, newest first.
func (c *Client) FindRepositoryTags(ctx context.Context, repo string) ([]string, error) {
	var list struct {
		Tags []string `json:"tags"`
	}
	if err := c.getJSON(ctx, "/"+repo+"/tags/list", &list); err != nil {
		return nil, err
	}
	tags := list.Tags
	if tags == nil {
		tags = []string{}
	}
	SortTags(tags)
	return tags, nil
}

// SortTags puts numeric tags first, largest first, then the rest in
// descending order.
func SortTags(tags []string) {
	sort.SliceStable(tags, func(i, j int) bool {
		a, aErr := strconv.ParseInt(tags[i], 10, 64)
		b, bErr := strconv.ParseInt(tags[j], 10, 64)
		switch {
		case aErr == nil && bErr == nil:
			return a > b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return tags[i] > tags[j]
	})
}

// AppCatalog looks up the branches of every app of an environment type.
func (c *Client) AppCatalog(ctx context.Context, topo model.Topology) ([]App, error) {
	apps := make([]App, len(topo.Apps))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range topo.Apps {
		g.Go(func() error {
			repo := topo.RepoName(name)
			branches, err := c.FindBranchesOfApp(gctx, repo)
			if err != nil {
				return fmt.Errorf("branches of %s: %w", repo, err)
			}
			apps[i] = App{
				Name:            name,
				RepoName:        repo,
				NameCapitalized: Capitalize(name),
				Branches:        branches,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return apps, nil
}

// Capitalize turns "todo-list" into "TodoList".
func Capitalize(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), URL: c.baseURL + path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("registry GET %s: decode: %w", path, err)
	}
	return nil
}
