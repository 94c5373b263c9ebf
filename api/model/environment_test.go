package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func states(ss ...string) []Container {
	out := make([]Container, len(ss))
	for i, s := range ss {
		out[i] = Container{State: s}
	}
	return out
}

func TestAggregateState(t *testing.T) {
	tests := []struct {
		name   string
		states []string
		want   Level
	}{
		{"all running", []string{"running", "running"}, LevelSuccess},
		{"single running", []string{"running"}, LevelSuccess},
		{"all exited", []string{"exited", "exited", "exited"}, LevelDanger},
		{"mixed running exited", []string{"running", "exited"}, LevelWarning},
		{"restarting", []string{"running", "restarting"}, LevelWarning},
		{"created only", []string{"created"}, LevelWarning},
		{"exited and paused", []string{"exited", "paused"}, LevelWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateState(states(tt.states...)))
		})
	}
}

func TestFreshnessAt(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name     string
		modified time.Time
		want     Level
	}{
		{"just now", now, LevelSuccess},
		{"one day", now.Add(-day), LevelSuccess},
		{"exactly three days", now.Add(-3 * day), LevelSuccess},
		{"three days and a second", now.Add(-3*day - time.Second), LevelWarning},
		{"five days", now.Add(-5 * day), LevelWarning},
		{"exactly seven days", now.Add(-7 * day), LevelWarning},
		{"seven days and a second", now.Add(-7*day - time.Second), LevelDanger},
		{"a month", now.Add(-30 * day), LevelDanger},
		{"future", now.Add(time.Hour), LevelSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FreshnessAt(tt.modified, now))
		})
	}
}

func TestLookupTopology(t *testing.T) {
	topo, ok := LookupTopology("todoapp")
	assert.True(t, ok)
	assert.Equal(t, "frontend", topo.FrontRole)
	assert.Equal(t, uint16(3000), topo.Services["frontend"])
	assert.Equal(t, uint16(8080), topo.Services["backend"])
	assert.Equal(t, "jz17-backend-app", topo.RepoName("backend"))

	_, ok = LookupTopology("")
	assert.False(t, ok)
	_, ok = LookupTopology("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"todoapp"}, EnvironmentTypes())
}
