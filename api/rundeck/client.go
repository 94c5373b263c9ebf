package rundeck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"

	"envdash/api/config"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Execution is a snapshot of one job run as Rundeck reports it.
type Execution struct {
	ID        int    `json:"id"`
	Status    string `json:"status"`
	Permalink string `json:"permalink"`
	Href      string `json:"href,omitempty"`
}

type runRequest struct {
	Filter  string            `json:"filter"`
	Options map[string]string `json:"options"`
}

// Client talks to the Rundeck REST API with a token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg config.Rundeck) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.Timeout
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/") + "/api/" + cfg.APIVersion + "/",
		token:   cfg.AuthToken,
		http:    hc,
	}
}

// RunJob starts a job on the nodes matched by filter.
func (c *Client) RunJob(ctx context.Context, jobID, filter string, options map[string]string) (*Execution, error) {
	var exec Execution
	body := runRequest{Filter: filter, Options: options}
	if err := c.do(ctx, http.MethodPost, "job/"+jobID+"/run", body, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

func (c *Client) Execution(ctx context.Context, id int) (*Execution, error) {
	var exec Execution
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("execution/%d", id), nil, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Rundeck-Auth-Token", c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rundeck %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("rundeck %s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rundeck %s %s: decode: %w", method, path, err)
	}
	return nil
}
