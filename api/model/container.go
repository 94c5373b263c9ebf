package model

import (
	"regexp"
	"sort"

	"github.com/docker/docker/api/types"
)

const (
	LabelComposeProject = "com.docker.compose.project"
	LabelComposeService = "com.docker.compose.service"
)

// Labels are the dashboard label keys under one namespace, e.g. "jz17demo".
type Labels struct {
	Include         string // <ns>.dashboard.include
	EnvironmentType string // <ns>.dashboard.environment.type
	CommitHash      string // <ns>.git.commitHash
	Database        string // <ns>.dashboard.database
}

func NewLabels(namespace string) Labels {
	return Labels{
		Include:         namespace + ".dashboard.include",
		EnvironmentType: namespace + ".dashboard.environment.type",
		CommitHash:      namespace + ".git.commitHash",
		Database:        namespace + ".dashboard.database",
	}
}

type Port struct {
	IP          string `json:"ip,omitempty"`
	PrivatePort uint16 `json:"privatePort"`
	PublicPort  uint16 `json:"publicPort"`
	Type        string `json:"type"`
}

// Container is a Docker container as the dashboard sees it.
type Container struct {
	ID              string `json:"id"`
	Image           string `json:"image"`
	Version         string `json:"version"`
	Name            string `json:"name"`
	ProjectName     string `json:"projectName"`
	ServiceName     string `json:"serviceName"`
	CommitHash      string `json:"commitHash,omitempty"`
	EnvironmentType string `json:"environmentType,omitempty"`
	Database        bool   `json:"database,omitempty"`
	State           string `json:"state"`
	Created         int64  `json:"created"`
	Status          string `json:"status"`
	Ports           []Port `json:"ports"`
	ServiceURL      string `json:"serviceUrl,omitempty"`
}

// Normalize maps a raw container from the Docker API. It never fails: absent
// labels leave the derived fields empty. versionPrefix may be nil.
func Normalize(raw types.Container, versionPrefix *regexp.Regexp, labels Labels) Container {
	c := Container{
		ID:              raw.ID,
		Image:           raw.Image,
		Version:         stripFirst(raw.Image, versionPrefix),
		ProjectName:     raw.Labels[LabelComposeProject],
		ServiceName:     raw.Labels[LabelComposeService],
		CommitHash:      raw.Labels[labels.CommitHash],
		EnvironmentType: raw.Labels[labels.EnvironmentType],
		Database:        raw.Labels[labels.Database] == "true",
		State:           raw.State,
		Created:         raw.Created,
		Status:          raw.Status,
		Ports:           publicPorts(raw.Ports),
	}
	if len(raw.Names) > 0 {
		c.Name = raw.Names[0]
	}
	return c
}

func stripFirst(s string, re *regexp.Regexp) string {
	if re == nil {
		return s
	}
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

// publicPorts keeps ports with a public mapping, ascending by private port.
func publicPorts(ports []types.Port) []Port {
	out := []Port{}
	for _, p := range ports {
		if p.PublicPort == 0 {
			continue
		}
		out = append(out, Port{IP: p.IP, PrivatePort: p.PrivatePort, PublicPort: p.PublicPort, Type: p.Type})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PrivatePort < out[j].PrivatePort
	})
	return out
}

// PublicPortFor returns the public port mapped to the given private port.
func (c *Container) PublicPortFor(private uint16) (uint16, bool) {
	for _, p := range c.Ports {
		if p.PrivatePort == private {
			return p.PublicPort, true
		}
	}
	return 0, false
}
