package model

import (
	"regexp"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrefix = regexp.MustCompile(regexp.QuoteMeta("registry.example.com:5000") + `/.+?/`)

func TestNormalize(t *testing.T) {
	labels := NewLabels("jz17demo")
	raw := types.Container{
		ID:    "abc123",
		Image: "registry.example.com:5000/jz17-frontend-app/develop:42",
		Names: []string{"/team-a_frontend_1", "/alias"},
		Labels: map[string]string{
			LabelComposeProject:                   "team-a",
			LabelComposeService:                   "frontend",
			"jz17demo.git.commitHash":             "deadbeef",
			"jz17demo.dashboard.environment.type": "todoapp",
			"jz17demo.dashboard.include":          "true",
		},
		State:   "running",
		Created: 1500000000,
		Status:  "Up 2 hours",
		Ports: []types.Port{
			{PrivatePort: 8080, PublicPort: 32001, Type: "tcp"},
			{PrivatePort: 9229, Type: "tcp"},
			{PrivatePort: 3000, PublicPort: 32000, Type: "tcp"},
		},
	}

	c := Normalize(raw, testPrefix, labels)

	assert.Equal(t, "abc123", c.ID)
	assert.Equal(t, "develop:42", c.Version)
	assert.Equal(t, "/team-a_frontend_1", c.Name)
	assert.Equal(t, "team-a", c.ProjectName)
	assert.Equal(t, "frontend", c.ServiceName)
	assert.Equal(t, "deadbeef", c.CommitHash)
	assert.Equal(t, "todoapp", c.EnvironmentType)
	assert.False(t, c.Database)
	assert.Equal(t, "running", c.State)
	assert.Equal(t, int64(1500000000), c.Created)
	assert.Equal(t, "Up 2 hours", c.Status)
	assert.Empty(t, c.ServiceURL)

	require.Len(t, c.Ports, 2)
	assert.Equal(t, uint16(3000), c.Ports[0].PrivatePort)
	assert.Equal(t, uint16(8080), c.Ports[1].PrivatePort)
}

func TestNormalizeMissingLabels(t *testing.T) {
	raws := []types.Container{
		{},
		{ID: "x", Image: "nginx:latest", Labels: map[string]string{}},
		{ID: "y", Image: "redis", Labels: map[string]string{"unrelated": "1"}, Names: []string{}},
	}
	for _, raw := range raws {
		c := Normalize(raw, testPrefix, NewLabels("jz17demo"))
		assert.Empty(t, c.ProjectName)
		assert.Empty(t, c.ServiceName)
		assert.Empty(t, c.CommitHash)
		assert.Empty(t, c.EnvironmentType)
		assert.Empty(t, c.Name)
		assert.Equal(t, raw.Image, c.Version)
		assert.NotNil(t, c.Ports)
		assert.Empty(t, c.Ports)
	}
}

func TestNormalizeNilPrefix(t *testing.T) {
	c := Normalize(types.Container{Image: "registry.example.com:5000/a/b:1"}, nil, NewLabels("ns"))
	assert.Equal(t, "registry.example.com:5000/a/b:1", c.Version)
}

func TestNormalizeDatabaseLabel(t *testing.T) {
	c := Normalize(types.Container{Labels: map[string]string{"ns.dashboard.database": "true"}}, nil, NewLabels("ns"))
	assert.True(t, c.Database)
}

func TestPublicPortsStableOnEqualPrivatePort(t *testing.T) {
	ports := publicPorts([]types.Port{
		{PrivatePort: 80, PublicPort: 2, IP: "0.0.0.0"},
		{PrivatePort: 22, PublicPort: 3},
		{PrivatePort: 80, PublicPort: 1, IP: "::"},
	})
	require.Len(t, ports, 3)
	assert.Equal(t, uint16(22), ports[0].PrivatePort)
	assert.Equal(t, "0.0.0.0", ports[1].IP)
	assert.Equal(t, "::", ports[2].IP)
}

func TestPublicPortFor(t *testing.T) {
	c := Container{Ports: []Port{{PrivatePort: 3000, PublicPort: 32000}}}

	p, ok := c.PublicPortFor(3000)
	assert.True(t, ok)
	assert.Equal(t, uint16(32000), p)

	_, ok = c.PublicPortFor(8080)
	assert.False(t, ok)
}
