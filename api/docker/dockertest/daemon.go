// Package dockertest provides an in-process fake of the parts of the Docker
// Engine API the dashboard uses.
package dockertest

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"

	"envdash/api/config"
)

// APIVersion is the version the fake expects clients to pin.
const APIVersion = "1.43"

// Call is one request the fake daemon received.
type Call struct {
	Method string
	Path   string
	Query  string
}

type Daemon struct {
	*httptest.Server

	mu         sync.Mutex
	containers []types.Container
	logs       map[string][]byte
	failures   map[string]int // container id -> status for actions
	listDelay  time.Duration
	listStatus int
	calls      []Call
}

// New starts a fake daemon. Close it when done.
func New(containers ...types.Container) *Daemon {
	d := &Daemon{
		containers: containers,
		logs:       make(map[string][]byte),
		failures:   make(map[string]int),
	}
	d.Server = httptest.NewServer(http.HandlerFunc(d.serve))
	return d
}

// Config returns a server entry pointing at the fake.
func (d *Daemon) Config(name string) config.Server {
	return config.Server{
		Name:       name,
		IP:         "127.0.0.1",
		BaseURL:    "http://" + name + ".example.com",
		DockerAPI:  d.URL,
		APIVersion: APIVersion,
	}
}

// SetListDelay makes container listing hang for d, or until the client gives up.
func (d *Daemon) SetListDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listDelay = delay
}

// SetListStatus makes container listing answer with an error status.
func (d *Daemon) SetListStatus(code int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listStatus = code
}

// SetLogs sets the raw log stream for a container.
func (d *Daemon) SetLogs(id string, raw []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logs[id] = raw
}

// FailAction makes every state change of a container answer with code.
func (d *Daemon) FailAction(id string, code int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[id] = code
}

func (d *Daemon) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Frame builds one multiplexed log frame for the given stream (1 stdout, 2 stderr).
func Frame(stream byte, payload string) []byte {
	header := make([]byte, 8)
	header[0] = stream
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	return append(header, payload...)
}

func (d *Daemon) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v"+APIVersion)

	d.mu.Lock()
	d.calls = append(d.calls, Call{Method: r.Method, Path: path, Query: r.URL.RawQuery})
	d.mu.Unlock()

	if path == "/_ping" {
		w.Header().Set("API-Version", APIVersion)
		w.Write([]byte("OK"))
		return
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "containers" && parts[1] == "json" && r.Method == http.MethodGet:
		d.list(w, r)
	case len(parts) == 3 && parts[0] == "containers" && parts[2] == "logs" && r.Method == http.MethodGet:
		d.containerLogs(w, parts[1])
	case len(parts) == 3 && parts[0] == "containers" && r.Method == http.MethodPost:
		d.action(w, parts[1])
	default:
		writeError(w, http.StatusNotFound, "page not found")
	}
}

func (d *Daemon) list(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	delay, status := d.listDelay, d.listStatus
	containers := append([]types.Container(nil), d.containers...)
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(delay):
		}
	}
	if status != 0 {
		writeError(w, status, "list failed")
		return
	}

	args, err := filters.FromJSON(r.URL.Query().Get("filters"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := []types.Container{}
	for _, c := range containers {
		if args.MatchKVList("label", c.Labels) {
			out = append(out, c)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (d *Daemon) containerLogs(w http.ResponseWriter, id string) {
	d.mu.Lock()
	raw, ok := d.logs[id]
	d.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "No such container: "+id)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.docker.raw-stream")
	w.Write(raw)
}

func (d *Daemon) action(w http.ResponseWriter, id string) {
	d.mu.Lock()
	code, fail := d.failures[id]
	d.mu.Unlock()
	if fail {
		writeError(w, code, "action failed for "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
