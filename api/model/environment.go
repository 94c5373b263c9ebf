package model

import "time"

// Level is the bootstrap-style severity used for both state and freshness.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

const (
	freshFor = 3 * 24 * time.Hour
	staleAt  = 7 * 24 * time.Hour
)

// Environment is one compose project on one host.
type Environment struct {
	Name       string      `json:"name"`
	ServerName string      `json:"serverName"`
	ServerIP   string      `json:"serverIp"`
	ServerURL  string      `json:"serverUrl"`
	Containers []Container `json:"containers"`
	Type       string      `json:"environmentType"`
	Front      Container   `json:"frontendContainer"`

	Created           time.Time `json:"created"`
	Modified          time.Time `json:"modified"`
	CreatedFormatted  string    `json:"createdFormattedTimestamp"`
	ModifiedFormatted string    `json:"modifiedFormattedTimestamp"`
	ModifiedAge       string    `json:"modifiedAge"`

	State     Level `json:"state"`
	Freshness Level `json:"freshness"`
}

// HostStatus reports whether a host answered during one fetch.
type HostStatus struct {
	Name       string `json:"name"`
	Up         bool   `json:"up"`
	Containers int    `json:"containers"`
}

// AggregateState is success when every container runs, danger when every
// container has exited, and warning for anything in between.
func AggregateState(containers []Container) Level {
	running, exited := true, true
	for _, c := range containers {
		if c.State != "running" {
			running = false
		}
		if c.State != "exited" {
			exited = false
		}
	}
	switch {
	case running:
		return LevelSuccess
	case exited:
		return LevelDanger
	default:
		return LevelWarning
	}
}

// FreshnessAt classifies the last modification relative to now.
func FreshnessAt(modified, now time.Time) Level {
	if !modified.Before(now.Add(-freshFor)) {
		return LevelSuccess
	}
	if modified.Before(now.Add(-staleAt)) {
		return LevelDanger
	}
	return LevelWarning
}
