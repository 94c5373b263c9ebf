package fleet

import (
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/collate"

	"envdash/api/config"
	"envdash/api/model"
)

const timestampLayout = "02/01 15:04"

// Group partitions one host's containers into environments by compose
// project and derives the per-environment fields.
func Group(containers []model.Container, server config.Server, now time.Time) []model.Environment {
	var order []string
	byProject := make(map[string][]model.Container)
	for _, c := range containers {
		if _, ok := byProject[c.ProjectName]; !ok {
			order = append(order, c.ProjectName)
		}
		byProject[c.ProjectName] = append(byProject[c.ProjectName], c)
	}

	col := model.NewCollator()
	envs := make([]model.Environment, 0, len(order))
	for _, name := range order {
		members := byProject[name]
		env := model.Environment{
			Name:       name,
			ServerName: server.Name,
			ServerIP:   server.IP,
			ServerURL:  server.BaseURL,
		}

		front := frontContainer(members)
		env.Type = front.EnvironmentType

		if topo, ok := model.LookupTopology(env.Type); ok {
			populateServiceURLs(members, topo, server.BaseURL)
			// the front is a copy; refresh it after URLs are set
			front = frontContainer(members)
		}
		env.Front = front

		oldest, newest := members[0].Created, members[0].Created
		for _, c := range members[1:] {
			if c.Created < oldest {
				oldest = c.Created
			}
			if c.Created > newest {
				newest = c.Created
			}
		}
		env.Created = time.Unix(oldest, 0)
		env.Modified = time.Unix(newest, 0)
		env.CreatedFormatted = env.Created.Format(timestampLayout)
		env.ModifiedFormatted = env.Modified.Format(timestampLayout)
		env.ModifiedAge = humanize.RelTime(env.Modified, now, "ago", "from now")
		env.State = model.AggregateState(members)
		env.Freshness = model.FreshnessAt(env.Modified, now)

		sortContainers(members, col)
		env.Containers = members
		envs = append(envs, env)
	}

	sort.SliceStable(envs, func(i, j int) bool {
		return col.CompareString(envs[i].Name, envs[j].Name) < 0
	})
	return envs
}

// frontContainer is the first container that plays the front role of its
// environment type, or an empty placeholder.
func frontContainer(containers []model.Container) model.Container {
	for _, c := range containers {
		topo, ok := model.LookupTopology(c.EnvironmentType)
		if ok && c.ServiceName == topo.FrontRole {
			return c
		}
	}
	return model.Container{}
}

// populateServiceURLs points each known service at its public port on the host.
func populateServiceURLs(containers []model.Container, topo model.Topology, baseURL string) {
	for service, private := range topo.Services {
		for i := range containers {
			if containers[i].ServiceName != service {
				continue
			}
			if public, ok := containers[i].PublicPortFor(private); ok {
				containers[i].ServiceURL = baseURL + ":" + strconv.Itoa(int(public))
			}
			break
		}
	}
}

// sortContainers puts database containers first, then orders by service name.
func sortContainers(containers []model.Container, col *collate.Collator) {
	sort.SliceStable(containers, func(i, j int) bool {
		a, b := containers[i], containers[j]
		if a.Database != b.Database {
			return a.Database
		}
		return col.CompareString(a.ServiceName, b.ServiceName) < 0
	})
}
