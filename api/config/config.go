package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Server is a Docker host that runs team environments.
type Server struct {
	Name       string `yaml:"name" json:"name"`
	IP         string `yaml:"ip" json:"ip"`
	BaseURL    string `yaml:"baseUrl" json:"baseUrl"`
	DockerAPI  string `yaml:"dockerApi" json:"-"`
	APIVersion string `yaml:"apiVersion" json:"-"` // empty means negotiate with the daemon
}

type Registry struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Jobs holds the Rundeck job IDs for one environment type.
type Jobs struct {
	Deploy string `yaml:"deploy"`
	Delete string `yaml:"delete"`
}

type Rundeck struct {
	URL               string          `yaml:"url"`
	APIVersion        string          `yaml:"apiVersion"`
	AuthToken         string          `yaml:"authToken"`
	Timeout           time.Duration   `yaml:"timeout"`
	PollInterval      time.Duration   `yaml:"pollInterval"`
	PollTimeout       time.Duration   `yaml:"pollTimeout"`
	ServerOption      string          `yaml:"serverOption"`
	EnvironmentOption string          `yaml:"environmentOption"` // older jobs read it as "Miljo"
	Jobs              map[string]Jobs `yaml:"jobs"`
}

type Config struct {
	Port     string `yaml:"port"`
	BindAddr string `yaml:"bindAddr"`
	UIDir    string `yaml:"uiDir"`
	LogLevel string `yaml:"logLevel"`

	APIToken           string `yaml:"apiToken"`
	AllowedOrigins     string `yaml:"allowedOrigins"`
	CFAccessTeamDomain string `yaml:"cfAccessTeamDomain"`
	CFAccessAUD        string `yaml:"cfAccessAud"`

	LabelNamespace string        `yaml:"labelNamespace"` // prefix of the dashboard container labels
	DockerTimeout  time.Duration `yaml:"dockerTimeout"`
	HostCheck      time.Duration `yaml:"hostCheckInterval"` // 0 disables the host watcher

	Servers   []Server `yaml:"servers"`
	DBServers []string `yaml:"dbservers"`
	Registry  Registry `yaml:"registry"`
	Rundeck   Rundeck  `yaml:"rundeck"`
}

// Load reads .env (if any), then the YAML file named by ENVDASH_CONFIG,
// then applies environment overrides on top.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := os.Getenv("ENVDASH_CONFIG")
	explicit := path != ""
	if !explicit {
		path = "app-config.yml"
	}
	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:           "3000",
		BindAddr:       "127.0.0.1",
		LogLevel:       "info",
		LabelNamespace: "jz17demo",
		DockerTimeout:  3 * time.Second,
		HostCheck:      30 * time.Second,
		Registry: Registry{
			Timeout: 5 * time.Second,
		},
		Rundeck: Rundeck{
			APIVersion:        "21",
			Timeout:           10 * time.Second,
			PollInterval:      100 * time.Millisecond,
			PollTimeout:       30 * time.Second,
			ServerOption:      "Server",
			EnvironmentOption: "Environment",
		},
	}
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("ENVDASH_PORT", c.Port)
	c.BindAddr = envOr("ENVDASH_BIND_ADDR", c.BindAddr)
	c.UIDir = envOr("ENVDASH_UI_DIR", c.UIDir)
	c.LogLevel = envOr("ENVDASH_LOG_LEVEL", c.LogLevel)
	c.APIToken = envOr("ENVDASH_API_TOKEN", c.APIToken)
	c.AllowedOrigins = envOr("ENVDASH_ALLOWED_ORIGINS", c.AllowedOrigins)
	c.CFAccessTeamDomain = envOr("ENVDASH_CF_ACCESS_TEAM_DOMAIN", c.CFAccessTeamDomain)
	c.CFAccessAUD = envOr("ENVDASH_CF_ACCESS_AUD", c.CFAccessAUD)
	c.LabelNamespace = envOr("ENVDASH_LABEL_NAMESPACE", c.LabelNamespace)
	c.DockerTimeout = durationOr("ENVDASH_DOCKER_TIMEOUT", c.DockerTimeout)
	c.HostCheck = durationOr("ENVDASH_HOST_CHECK_INTERVAL", c.HostCheck)

	c.Registry.URL = envOr("ENVDASH_REGISTRY_URL", c.Registry.URL)

	c.Rundeck.URL = envOr("ENVDASH_RUNDECK_URL", c.Rundeck.URL)
	c.Rundeck.AuthToken = envOr("ENVDASH_RUNDECK_TOKEN", c.Rundeck.AuthToken)
	c.Rundeck.APIVersion = envOr("ENVDASH_RUNDECK_API_VERSION", c.Rundeck.APIVersion)
}

// Validate rejects server lists that cannot be addressed by name.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.Name == "" {
			return fmt.Errorf("servers[%d]: name is required", i)
		}
		if s.DockerAPI == "" {
			return fmt.Errorf("server %s: dockerApi is required", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("server %s: duplicate name", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Server looks up a configured server by name.
func (c *Config) Server(name string) (Server, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return Server{}, false
}

// VersionPrefix matches the registry host and repository part of an image
// reference, so that what remains is "<branch>:<tag>".
func (c *Config) VersionPrefix() *regexp.Regexp {
	if c.Registry.URL == "" {
		return nil
	}
	u, err := url.Parse(c.Registry.URL)
	if err != nil || u.Host == "" {
		return nil
	}
	return regexp.MustCompile(regexp.QuoteMeta(u.Host) + `/.+?/`)
}

// Origins returns the CORS/websocket origins: localhost plus configured extras.
func (c *Config) Origins() []string {
	origins := []string{"http://localhost:5173", "http://localhost:" + c.Port}
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
