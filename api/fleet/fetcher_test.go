package fleet

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envdash/api/config"
	"envdash/api/docker"
	"envdash/api/docker/dockertest"
)

func labelled(id, project, service, envType string) types.Container {
	labels := map[string]string{
		"jz17demo.dashboard.include":          "true",
		"com.docker.compose.project":          project,
		"com.docker.compose.service":          service,
		"jz17demo.dashboard.environment.type": envType,
	}
	return types.Container{
		ID:      id,
		Names:   []string{"/" + project + "_" + service},
		Image:   "registry.example.com/jz17/" + service + ":develop",
		State:   "running",
		Created: testNow.Add(-time.Hour).Unix(),
		Labels:  labels,
	}
}

func newFleet(t *testing.T, daemons ...*dockertest.Daemon) (*Fetcher, *test.Hook) {
	t.Helper()
	cfg := &config.Config{
		LabelNamespace: "jz17demo",
		DockerTimeout:  200 * time.Millisecond,
		Registry:       config.Registry{URL: "https://registry.example.com/"},
	}
	for i, d := range daemons {
		cfg.Servers = append(cfg.Servers, d.Config("team"+string(rune('1'+i))))
	}
	logger, hook := test.NewNullLogger()
	f, err := NewFetcher(cfg, WithClock(func() time.Time { return testNow }), WithLogger(logger))
	require.NoError(t, err)
	return f, hook
}

func TestFetchForTypeToleratesSlowHost(t *testing.T) {
	d1 := dockertest.New(labelled("a1", "alpha", "frontend", "todoapp"), labelled("a2", "alpha", "backend", "todoapp"))
	defer d1.Close()
	d2 := dockertest.New(labelled("b1", "beta", "frontend", "todoapp"))
	defer d2.Close()
	d2.SetListDelay(2 * time.Second)
	d3 := dockertest.New(labelled("c1", "gamma", "frontend", "todoapp"))
	defer d3.Close()

	f, hook := newFleet(t, d1, d2, d3)

	start := time.Now()
	res, err := f.FetchForType(context.Background(), "todoapp")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, res.ServerStatus, 3)
	assert.Equal(t, "team1", res.ServerStatus[0].Name)
	assert.True(t, res.ServerStatus[0].Up)
	assert.Equal(t, 2, res.ServerStatus[0].Containers)
	assert.Equal(t, "team2", res.ServerStatus[1].Name)
	assert.False(t, res.ServerStatus[1].Up)
	assert.Zero(t, res.ServerStatus[1].Containers)
	assert.Equal(t, "team3", res.ServerStatus[2].Name)
	assert.True(t, res.ServerStatus[2].Up)
	assert.Equal(t, 1, res.ServerStatus[2].Containers)

	require.Len(t, res.Environments, 2)
	assert.Equal(t, "alpha", res.Environments[0].Name)
	assert.Equal(t, "team1", res.Environments[0].ServerName)
	assert.Equal(t, "gamma", res.Environments[1].Name)
	assert.Equal(t, "team3", res.Environments[1].ServerName)

	require.NotEmpty(t, hook.AllEntries())
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "team2", entry.Data["server"])
}

func TestFetchForTypeHostError(t *testing.T) {
	d1 := dockertest.New()
	defer d1.Close()
	d1.SetListStatus(http.StatusInternalServerError)
	d2 := dockertest.New(labelled("b1", "beta", "frontend", "todoapp"))
	defer d2.Close()

	f, _ := newFleet(t, d1, d2)
	res, err := f.FetchForType(context.Background(), "todoapp")
	require.NoError(t, err)

	assert.False(t, res.ServerStatus[0].Up)
	assert.True(t, res.ServerStatus[1].Up)
	require.Len(t, res.Environments, 1)
	assert.Equal(t, "beta", res.Environments[0].Name)
}

func TestFetchForTypeFiltersByType(t *testing.T) {
	d := dockertest.New(
		labelled("a1", "alpha", "frontend", "todoapp"),
		labelled("o1", "other", "web", "shop"),
	)
	defer d.Close()

	f, _ := newFleet(t, d)

	res, err := f.FetchForType(context.Background(), "todoapp")
	require.NoError(t, err)
	require.Len(t, res.Environments, 1)
	assert.Equal(t, "alpha", res.Environments[0].Name)

	res, err = f.FetchForType(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, res.Environments, 2)
}

func TestFetchForTypeNormalizesContainers(t *testing.T) {
	raw := labelled("a1", "alpha", "frontend", "todoapp")
	raw.Ports = []types.Port{{PrivatePort: 3000, PublicPort: 32000, Type: "tcp"}}
	d := dockertest.New(raw)
	defer d.Close()

	f, _ := newFleet(t, d)
	res, err := f.FetchForType(context.Background(), "todoapp")
	require.NoError(t, err)
	require.Len(t, res.Environments, 1)

	env := res.Environments[0]
	require.Len(t, env.Containers, 1)
	c := env.Containers[0]
	assert.Equal(t, "frontend:develop", c.Version)
	assert.Equal(t, "/alpha_frontend", c.Name)
	assert.Equal(t, "http://team1.example.com:32000", env.Front.ServiceURL)
	assert.Equal(t, "todoapp", env.Type)
}

func TestFetchForTypeNoHosts(t *testing.T) {
	f, _ := newFleet(t)
	res, err := f.FetchForType(context.Background(), "todoapp")
	require.NoError(t, err)
	assert.Empty(t, res.Environments)
	assert.Empty(t, res.ServerStatus)
}

func TestFetchForServer(t *testing.T) {
	d1 := dockertest.New(labelled("a1", "alpha", "frontend", "todoapp"))
	defer d1.Close()
	d2 := dockertest.New(labelled("b1", "beta", "frontend", "todoapp"))
	defer d2.Close()

	f, _ := newFleet(t, d1, d2)

	envs, err := f.FetchForServer(context.Background(), "team2", "todoapp")
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "beta", envs[0].Name)

	_, err = f.FetchForServer(context.Background(), "nope", "todoapp")
	assert.True(t, errors.Is(err, ErrUnknownServer))
}

func TestFindEnvironment(t *testing.T) {
	d := dockertest.New(
		labelled("a1", "alpha", "frontend", "todoapp"),
		labelled("a2", "alpha", "backend", "todoapp"),
	)
	defer d.Close()

	f, _ := newFleet(t, d)

	env, err := f.FindEnvironment(context.Background(), "todoapp", "team1", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", env.Name)
	assert.Len(t, env.Containers, 2)

	_, err = f.FindEnvironment(context.Background(), "todoapp", "team1", "ghost")
	assert.True(t, errors.Is(err, ErrEnvironmentMissing))

	_, err = f.FindEnvironment(context.Background(), "todoapp", "nope", "alpha")
	assert.True(t, errors.Is(err, ErrUnknownServer))
}

func TestChangeRunningState(t *testing.T) {
	d := dockertest.New()
	defer d.Close()
	d.FailAction("broken", http.StatusNotFound)

	f, _ := newFleet(t, d)
	ctx := context.Background()

	require.NoError(t, f.ChangeRunningState(ctx, "team1", "abc", docker.ActionRestart))
	calls := d.Calls()
	assert.Equal(t, "/containers/abc/restart", calls[len(calls)-1].Path)

	err := f.ChangeRunningState(ctx, "team1", "broken", docker.ActionStop)
	var ae *docker.ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusNotFound, ae.StatusCode)

	err = f.ChangeRunningState(ctx, "nope", "abc", docker.ActionStart)
	assert.True(t, errors.Is(err, ErrUnknownServer))
}

func TestContainerLogs(t *testing.T) {
	d := dockertest.New()
	defer d.Close()
	d.SetLogs("abc", append(dockertest.Frame(1, "hello\n"), dockertest.Frame(2, "oops\n")...))

	f, _ := newFleet(t, d)

	got, err := f.ContainerLogs(context.Background(), "team1", "abc", 50)
	require.NoError(t, err)
	assert.Equal(t, "hello\noops\n", string(got))

	_, err = f.ContainerLogs(context.Background(), "nope", "abc", 50)
	assert.True(t, errors.Is(err, ErrUnknownServer))
}

func TestPing(t *testing.T) {
	d1 := dockertest.New()
	defer d1.Close()
	d2 := dockertest.New()
	d2.Close()

	f, _ := newFleet(t, d1, d2)
	assert.Equal(t, map[string]bool{"team1": true, "team2": false}, f.Ping(context.Background()))
}

func TestServers(t *testing.T) {
	d1 := dockertest.New()
	defer d1.Close()
	d2 := dockertest.New()
	defer d2.Close()

	f, _ := newFleet(t, d1, d2)
	servers := f.Servers()
	require.Len(t, servers, 2)
	assert.Equal(t, "team1", servers[0].Name)
	assert.Equal(t, "team2", servers[1].Name)
}

type closingHost struct {
	Host
	name   string
	closed int
	err    error
}

func (h *closingHost) Server() config.Server { return config.Server{Name: h.name} }

func (h *closingHost) Close() error {
	h.closed++
	return h.err
}

func TestCloseReleasesHosts(t *testing.T) {
	d := dockertest.New()
	defer d.Close()
	f, _ := newFleet(t, d)
	assert.NoError(t, f.Close())

	ok := &closingHost{name: "team1"}
	broken := &closingHost{name: "team2", err: errors.New("already closed")}
	f = &Fetcher{hosts: []Host{ok, broken}}

	err := f.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close team2: already closed")
	assert.Equal(t, 1, ok.closed)
	assert.Equal(t, 1, broken.closed)
}
