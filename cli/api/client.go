package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"envdash/api/model"
)

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			// deploy and delete wait for the job to finish
			Timeout: 90 * time.Second,
		},
	}
}

// Error is a non-2xx answer from the dashboard API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

type EnvironmentList struct {
	Environments []model.Environment `json:"envs"`
	ServerStatus []model.HostStatus  `json:"serverStatus"`
}

type Server struct {
	Name    string `json:"name"`
	IP      string `json:"ip"`
	BaseURL string `json:"baseUrl"`
}

type ServerList struct {
	Servers   []Server `json:"servers"`
	DBServers []string `json:"dbservers"`
}

type ServiceHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

type Execution struct {
	ID        int    `json:"id"`
	Status    string `json:"status"`
	Permalink string `json:"permalink"`
}

type JobResult struct {
	Status    string     `json:"status"`
	Execution *Execution `json:"execution,omitempty"`
	Location  string     `json:"location,omitempty"`
}

type App struct {
	Name            string   `json:"name"`
	RepoName        string   `json:"repoName"`
	NameCapitalized string   `json:"nameCapitalized"`
	Branches        []string `json:"branches"`
}

type AppCatalog struct {
	Apps    []App    `json:"apps"`
	Servers []Server `json:"servers"`
}

func (c *Client) Health() (*HealthStatus, error) {
	var h HealthStatus
	if err := c.get("/api/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Version() (string, error) {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.get("/api/version", &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

func (c *Client) ListServers() (*ServerList, error) {
	var s ServerList
	if err := c.get("/api/servers", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListEnvironments lists environments of envType on all servers; an empty
// type lists every type.
func (c *Client) ListEnvironments(envType string) (*EnvironmentList, error) {
	path := "/api/environments"
	if envType != "" {
		path += "/" + url.PathEscape(envType)
	}
	var l EnvironmentList
	if err := c.get(path, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) GetEnvironment(envType, server, name string) (*model.Environment, error) {
	var env model.Environment
	if err := c.get(envPath(envType, server, name), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) Deploy(envType, server, name string, options map[string]string) (*JobResult, error) {
	body := map[string]interface{}{
		"server":      server,
		"environment": name,
	}
	if len(options) > 0 {
		body["options"] = options
	}
	var res JobResult
	if err := c.do(http.MethodPost, "/api/environments/"+url.PathEscape(envType), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Delete(envType, server, name string) (*JobResult, error) {
	var res JobResult
	if err := c.do(http.MethodDelete, envPath(envType, server, name), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ContainerAction(server, container, action string) error {
	path := "/api/servers/" + url.PathEscape(server) + "/containers/" + url.PathEscape(container) + "/" + url.PathEscape(action)
	return c.do(http.MethodPost, path, nil, nil)
}

func (c *Client) Logs(server, container string, lines int) (string, error) {
	path := "/api/servers/" + url.PathEscape(server) + "/containers/" + url.PathEscape(container) + "/logs?lines=" + strconv.Itoa(lines)
	resp, err := c.send(http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) Branches(app string) ([]string, error) {
	var b []string
	if err := c.get("/api/registry/"+url.PathEscape(app)+"/branches", &b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Client) Tags(app, branch string) ([]string, error) {
	var t []string
	if err := c.get("/api/registry/"+url.PathEscape(app)+"/"+url.PathEscape(branch)+"/tags", &t); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Client) Apps(envType string) (*AppCatalog, error) {
	var a AppCatalog
	if err := c.get("/api/apps/"+url.PathEscape(envType), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) WebSocketURL() string {
	base := c.BaseURL
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	return base + "/ws"
}

func envPath(envType, server, name string) string {
	return "/api/environments/" + url.PathEscape(envType) + "/" + url.PathEscape(server) + "/" + url.PathEscape(name)
}

func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

func (c *Client) do(method, path string, in, out any) error {
	resp, err := c.send(method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// send performs a request and turns non-2xx answers into *Error.
func (c *Client) send(method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}
