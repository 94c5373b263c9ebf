package model

import "sort"

// Topology describes the services an environment type is built from.
type Topology struct {
	FrontRole  string            // service that fronts the environment
	Services   map[string]uint16 // service name -> private port that serves it
	Apps       []string          // apps with their own registry repositories
	RepoPrefix string
	RepoSuffix string
}

var topologies = map[string]Topology{
	"todoapp": {
		FrontRole: "frontend",
		Services: map[string]uint16{
			"frontend": 3000,
			"backend":  8080,
		},
		Apps:       []string{"frontend", "backend"},
		RepoPrefix: "jz17-",
		RepoSuffix: "-app",
	},
}

// LookupTopology returns the topology for an environment type.
func LookupTopology(envType string) (Topology, bool) {
	t, ok := topologies[envType]
	return t, ok
}

// EnvironmentTypes lists the known environment types, sorted.
func EnvironmentTypes() []string {
	types := make([]string, 0, len(topologies))
	for t := range topologies {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// RepoName is the registry repository an app's images are pushed to.
func (t Topology) RepoName(app string) string {
	return t.RepoPrefix + app + t.RepoSuffix
}
