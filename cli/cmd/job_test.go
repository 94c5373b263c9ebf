package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envdash/cli/api"
)

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"frontend=release-2", "backend=", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"frontend": "release-2", "backend": "", "note": "a=b"}, opts)

	_, err = parseOptions([]string{"frontend"})
	assert.Error(t, err)
	_, err = parseOptions([]string{"=x"})
	assert.Error(t, err)
}

func TestWaitForJobEventFiltersTarget(t *testing.T) {
	events := make(chan api.Event, 4)
	events <- api.Event{Type: "job.status", Target: "team2/alpha", Payload: []byte(`{"status":"running"}`)}
	events <- api.Event{Type: "container.action", Target: "team1/alpha", Payload: []byte(`{}`)}
	events <- api.Event{Type: "job.status", Target: "team1/alpha", Payload: []byte(`{"status":"running","permalink":"http://rd/3"}`)}
	close(events)

	msg := waitForJobEvent(events, "team1/alpha")()
	update, ok := msg.(jobUpdate)
	require.True(t, ok)
	assert.Equal(t, "running", update.ev.Status)
	assert.Equal(t, "http://rd/3", update.ev.Permalink)

	assert.IsType(t, jobFeedClosed{}, waitForJobEvent(events, "team1/alpha")())
}

func TestJobModelUpdate(t *testing.T) {
	m := newJobModel("Deploying", "team1/alpha", nil)
	next, _ := m.Update(jobUpdate{ev: api.JobEvent{Status: "running", Permalink: "http://rd/3"}})
	jm := next.(jobModel)
	assert.Equal(t, "running", jm.status)
	assert.Equal(t, 1, jm.polls)
	assert.Contains(t, jm.View(), "http://rd/3")

	next, _ = jm.Update(jobDone{res: &api.JobResult{Status: "succeeded", Execution: &api.Execution{ID: 3, Permalink: "http://rd/3"}}})
	assert.Contains(t, next.(jobModel).View(), "Deploying team1/alpha done")
}
