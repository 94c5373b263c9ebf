package fleet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"envdash/api/config"
	"envdash/api/docker"
	"envdash/api/model"
)

var (
	ErrUnknownServer      = errors.New("unknown server")
	ErrEnvironmentMissing = errors.New("environment not found")
)

// Host is the slice of the Docker API one server is queried through.
type Host interface {
	Server() config.Server
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context, labelFilters ...string) ([]types.Container, error)
	ChangeState(ctx context.Context, id string, action docker.Action) error
	Logs(ctx context.Context, id string, tail int) ([]byte, error)
}

// Result is the merged view over every configured host.
type Result struct {
	Environments []model.Environment `json:"envs"`
	ServerStatus []model.HostStatus  `json:"serverStatus"`
}

// Fetcher queries every configured host and merges the environments it finds.
type Fetcher struct {
	hosts   []Host
	labels  model.Labels
	prefix  *regexp.Regexp
	timeout time.Duration
	now     func() time.Time
	log     logrus.FieldLogger
}

type Option func(*Fetcher)

// WithClock replaces time.Now for freshness and age.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(f *Fetcher) { f.log = log }
}

// WithHosts replaces the Docker clients built from config.
func WithHosts(hosts ...Host) Option {
	return func(f *Fetcher) { f.hosts = hosts }
}

// NewFetcher builds one Docker client per configured server.
func NewFetcher(cfg *config.Config, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		labels:  model.NewLabels(cfg.LabelNamespace),
		prefix:  cfg.VersionPrefix(),
		timeout: cfg.DockerTimeout,
		now:     time.Now,
		log:     logrus.WithField("component", "fleet"),
	}
	for _, s := range cfg.Servers {
		c, err := docker.NewClient(s)
		if err != nil {
			return nil, err
		}
		f.hosts = append(f.hosts, c)
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.timeout <= 0 {
		f.timeout = 3 * time.Second
	}
	return f, nil
}

// Close releases the Docker clients. Hosts that hold no connections are
// skipped.
func (f *Fetcher) Close() error {
	var errs []error
	for _, h := range f.hosts {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", h.Server().Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Servers lists the configured servers in configuration order.
func (f *Fetcher) Servers() []config.Server {
	out := make([]config.Server, len(f.hosts))
	for i, h := range f.hosts {
		out[i] = h.Server()
	}
	return out
}

// FetchForType queries all hosts at once and waits for every one of them.
// A host that fails is reported down and contributes nothing; it never
// fails the whole fetch. envType may be empty to include every type.
func (f *Fetcher) FetchForType(ctx context.Context, envType string) (*Result, error) {
	type hostResult struct {
		envs []model.Environment
		err  error
	}
	results := make([]hostResult, len(f.hosts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(len(f.hosts), 1))
	for i, h := range f.hosts {
		g.Go(func() error {
			envs, err := f.fetchHost(gctx, h, envType)
			results[i] = hostResult{envs: envs, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Environments: []model.Environment{},
		ServerStatus: make([]model.HostStatus, len(f.hosts)),
	}
	for i, h := range f.hosts {
		r := results[i]
		status := model.HostStatus{Name: h.Server().Name, Up: r.err == nil}
		if r.err != nil {
			f.log.WithFields(logrus.Fields{"server": status.Name, "error": r.err}).Warn("could not fetch containers")
		}
		for _, env := range r.envs {
			status.Containers += len(env.Containers)
		}
		res.ServerStatus[i] = status
		res.Environments = append(res.Environments, r.envs...)
	}
	return res, nil
}

// FetchForServer queries a single host.
func (f *Fetcher) FetchForServer(ctx context.Context, serverName, envType string) ([]model.Environment, error) {
	h, err := f.host(serverName)
	if err != nil {
		return nil, err
	}
	return f.fetchHost(ctx, h, envType)
}

// FindEnvironment looks up one environment on one host.
func (f *Fetcher) FindEnvironment(ctx context.Context, envType, serverName, name string) (*model.Environment, error) {
	envs, err := f.FetchForServer(ctx, serverName, envType)
	if err != nil {
		return nil, err
	}
	for i := range envs {
		if envs[i].Name == name {
			return &envs[i], nil
		}
	}
	return nil, fmt.Errorf("%s on %s: %w", name, serverName, ErrEnvironmentMissing)
}

// ChangeRunningState relays a start/stop/restart/kill to a host.
func (f *Fetcher) ChangeRunningState(ctx context.Context, serverName, containerID string, action docker.Action) error {
	h, err := f.host(serverName)
	if err != nil {
		return err
	}
	f.log.WithFields(logrus.Fields{"server": serverName, "container": containerID, "action": action}).Info("changing container state")

	// stop and restart wait up to 30s for the container before the daemon answers
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second+f.timeout)
	defer cancel()
	return h.ChangeState(ctx, containerID, action)
}

// ContainerLogs returns the tail of a container's log with framing removed.
func (f *Fetcher) ContainerLogs(ctx context.Context, serverName, containerID string, tail int) ([]byte, error) {
	h, err := f.host(serverName)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return h.Logs(ctx, containerID, tail)
}

// Ping reports per host whether its daemon answers.
func (f *Fetcher) Ping(ctx context.Context) map[string]bool {
	up := make([]bool, len(f.hosts))
	var g errgroup.Group
	for i, h := range f.hosts {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()
			up[i] = h.Ping(ctx) == nil
			return nil
		})
	}
	g.Wait()

	out := make(map[string]bool, len(f.hosts))
	for i, h := range f.hosts {
		out[h.Server().Name] = up[i]
	}
	return out
}

func (f *Fetcher) host(name string) (Host, error) {
	for _, h := range f.hosts {
		if h.Server().Name == name {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnknownServer)
}

func (f *Fetcher) fetchHost(ctx context.Context, h Host, envType string) ([]model.Environment, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	labelFilters := []string{f.labels.Include + "=true"}
	if envType != "" {
		labelFilters = append(labelFilters, f.labels.EnvironmentType+"="+envType)
	}

	raw, err := h.ListContainers(ctx, labelFilters...)
	if err != nil {
		return nil, err
	}

	containers := make([]model.Container, len(raw))
	for i, c := range raw {
		containers[i] = model.Normalize(c, f.prefix, f.labels)
	}
	return Group(containers, h.Server(), f.now()), nil
}
