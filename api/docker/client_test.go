package docker

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envdash/api/docker/dockertest"
)

func newTestClient(t *testing.T, d *dockertest.Daemon) *Client {
	t.Helper()
	c, err := NewClient(d.Config("team1"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestListContainersAppliesLabelFilters(t *testing.T) {
	d := dockertest.New(
		types.Container{ID: "a", Labels: map[string]string{"ns.include": "true", "ns.type": "todoapp"}},
		types.Container{ID: "b", Labels: map[string]string{"ns.include": "true", "ns.type": "other"}},
		types.Container{ID: "c", Labels: map[string]string{"ns.type": "todoapp"}},
	)
	defer d.Close()
	c := newTestClient(t, d)

	got, err := c.ListContainers(context.Background(), "ns.include=true", "ns.type=todoapp")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got, err = c.ListContainers(context.Background(), "ns.include=true")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	calls := d.Calls()
	require.NotEmpty(t, calls)
	q, err := url.ParseQuery(calls[0].Query)
	require.NoError(t, err)
	assert.Equal(t, "1", q.Get("all"))
	assert.Contains(t, q.Get("filters"), "ns.include=true")
}

func TestListContainersError(t *testing.T) {
	d := dockertest.New()
	defer d.Close()
	d.SetListStatus(http.StatusInternalServerError)

	_, err := newTestClient(t, d).ListContainers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "team1")
}

func TestChangeState(t *testing.T) {
	d := dockertest.New()
	defer d.Close()
	c := newTestClient(t, d)
	ctx := context.Background()

	for _, a := range []Action{ActionStart, ActionStop, ActionRestart, ActionKill} {
		require.NoError(t, c.ChangeState(ctx, "abc", a), a)
	}

	calls := d.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "/containers/abc/start", calls[0].Path)
	assert.Equal(t, "/containers/abc/stop", calls[1].Path)
	assert.Contains(t, calls[1].Query, "t=30")
	assert.Equal(t, "/containers/abc/restart", calls[2].Path)
	assert.Contains(t, calls[2].Query, "t=30")
	assert.Equal(t, "/containers/abc/kill", calls[3].Path)
}

func TestChangeStateCarriesUpstreamStatus(t *testing.T) {
	tests := []struct {
		upstream int
		want     int
	}{
		{http.StatusNotFound, http.StatusNotFound},
		{http.StatusConflict, http.StatusConflict},
		{http.StatusInternalServerError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.upstream), func(t *testing.T) {
			d := dockertest.New()
			defer d.Close()
			d.FailAction("abc", tt.upstream)

			err := newTestClient(t, d).ChangeState(context.Background(), "abc", ActionStop)
			var ae *ActionError
			require.True(t, errors.As(err, &ae), "got %v", err)
			assert.Equal(t, tt.want, ae.StatusCode)
			assert.Equal(t, http.StatusText(tt.want), ae.Status)
		})
	}
}

func TestChangeStateUnknownAction(t *testing.T) {
	d := dockertest.New()
	defer d.Close()

	err := newTestClient(t, d).ChangeState(context.Background(), "abc", Action("pause"))
	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Empty(t, d.Calls())
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"start", "stop", "restart", "kill"} {
		a, err := ParseAction(s)
		require.NoError(t, err)
		assert.Equal(t, Action(s), a)
	}
	_, err := ParseAction("rm")
	assert.Error(t, err)
}

func TestLogsDemultiplexed(t *testing.T) {
	d := dockertest.New()
	defer d.Close()

	var raw []byte
	raw = append(raw, dockertest.Frame(1, "first line\n")...)
	raw = append(raw, dockertest.Frame(1, "second ")...)
	raw = append(raw, dockertest.Frame(1, "line æøå\n")...)
	d.SetLogs("abc", raw)

	got, err := newTestClient(t, d).Logs(context.Background(), "abc", 200)
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line æøå\n", string(got))

	calls := d.Calls()
	q, _ := url.ParseQuery(calls[len(calls)-1].Query)
	assert.Equal(t, "200", q.Get("tail"))
	assert.Equal(t, "1", q.Get("stdout"))
}

func TestLogsNotFound(t *testing.T) {
	d := dockertest.New()
	defer d.Close()

	_, err := newTestClient(t, d).Logs(context.Background(), "missing", 10)
	assert.Error(t, err)
}

func TestDemux(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"empty", nil, ""},
		{"tty short", []byte("hi\n"), "hi\n"},
		{"tty long", []byte("plain output from a tty\n"), "plain output from a tty\n"},
		{"stdout and stderr", append(dockertest.Frame(1, "out\n"), dockertest.Frame(2, "err\n")...), "out\nerr\n"},
		{"frame without newline", dockertest.Frame(1, "no newline"), "no newline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Demux(tt.raw)))
		})
	}
}
