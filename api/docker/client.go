package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"envdash/api/config"
)

// stopTimeout is the grace period in seconds for stop and restart.
const stopTimeout = 30

const stdcopyHeaderLen = 8

type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionKill    Action = "kill"
)

// ParseAction validates an action name from a request path.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionStop, ActionRestart, ActionKill:
		return a, nil
	}
	return "", fmt.Errorf("unknown container action %q", s)
}

// ActionError carries the daemon's HTTP status for a failed state change.
type ActionError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.StatusCode, e.Status, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Client talks to the Docker daemon of one configured server.
type Client struct {
	server config.Server
	cli    *client.Client
}

func NewClient(server config.Server) (*Client, error) {
	opts := []client.Opt{client.WithHost(server.DockerAPI)}
	if server.APIVersion != "" {
		opts = append(opts, client.WithVersion(server.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client for %s: %w", server.Name, err)
	}
	return &Client{server: server, cli: cli}, nil
}

func (c *Client) Server() config.Server {
	return c.server
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Ping(ctx)
	return err
}

// ListContainers lists all containers, running or not, carrying every given label filter.
func (c *Client) ListContainers(ctx context.Context, labelFilters ...string) ([]types.Container, error) {
	args := filters.NewArgs()
	for _, f := range labelFilters {
		args.Add("label", f)
	}
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list containers on %s: %w", c.server.Name, err)
	}
	return containers, nil
}

// ChangeState starts, stops, restarts or kills a container.
func (c *Client) ChangeState(ctx context.Context, id string, action Action) error {
	timeout := stopTimeout
	var err error
	switch action {
	case ActionStart:
		err = c.cli.ContainerStart(ctx, id, container.StartOptions{})
	case ActionStop:
		err = c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	case ActionRestart:
		err = c.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout})
	case ActionKill:
		err = c.cli.ContainerKill(ctx, id, "")
	default:
		return &ActionError{
			StatusCode: http.StatusBadRequest,
			Status:     http.StatusText(http.StatusBadRequest),
			Err:        fmt.Errorf("unknown container action %q", action),
		}
	}
	if err != nil {
		code := HTTPStatus(err)
		return &ActionError{StatusCode: code, Status: http.StatusText(code), Err: err}
	}
	return nil
}

// Logs returns the last tail lines of a container's stdout with the stream
// framing removed.
func (c *Client) Logs(ctx context.Context, id string, tail int) ([]byte, error) {
	rc, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return nil, fmt.Errorf("logs for %s on %s: %w", id, c.server.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read logs for %s: %w", id, err)
	}
	return Demux(raw), nil
}

// Demux strips the 8-byte stream headers from a multiplexed log stream.
// Streams from TTY containers carry no headers and are returned as-is.
func Demux(raw []byte) []byte {
	if !multiplexed(raw) {
		return raw
	}
	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, bytes.NewReader(raw)); err != nil {
		return raw
	}
	return out.Bytes()
}

// multiplexed reports whether raw starts with a stdcopy frame header:
// stream type 0-2, three zero bytes, then a big-endian length.
func multiplexed(raw []byte) bool {
	return len(raw) >= stdcopyHeaderLen && raw[0] <= byte(stdcopy.Stderr) &&
		raw[1] == 0 && raw[2] == 0 && raw[3] == 0
}

// HTTPStatus maps a daemon error to the HTTP status the dashboard answers with.
// Unclassified errors become 502.
func HTTPStatus(err error) int {
	switch {
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsInvalidParameter(err):
		return http.StatusBadRequest
	case errdefs.IsConflict(err):
		return http.StatusConflict
	case errdefs.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errdefs.IsForbidden(err):
		return http.StatusForbidden
	case errdefs.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errdefs.IsNotImplemented(err):
		return http.StatusNotImplemented
	case errdefs.IsDeadline(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
