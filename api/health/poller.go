// Package health watches the Docker hosts and announces when one goes up or
// down.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"envdash/api/hub"
)

// Pinger reports, per server name, whether the host answered.
type Pinger interface {
	Ping(ctx context.Context) map[string]bool
}

type Notifier interface {
	Broadcast(hub.Event)
}

// Poller periodically pings every host and broadcasts host.status when a
// host changes state. The first round only records the initial states.
type Poller struct {
	Hosts    Pinger
	WS       Notifier
	Interval time.Duration
	Log      logrus.FieldLogger

	mu   sync.Mutex
	last map[string]bool
}

// Run starts the polling loop. It blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if p.Interval == 0 {
		p.Interval = 30 * time.Second
	}
	if p.Log == nil {
		p.Log = logrus.WithField("component", "health")
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	// Run once immediately on start
	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce pings all hosts and returns the names whose state changed.
func (p *Poller) PollOnce(ctx context.Context) []string {
	states := p.Hosts.Ping(ctx)

	p.mu.Lock()
	first := p.last == nil
	prev := p.last
	p.last = states
	p.mu.Unlock()

	if first {
		for name, up := range states {
			if !up {
				p.Log.WithField("server", name).Warn("docker host is down")
			}
		}
		return nil
	}

	var changed []string
	for name, up := range states {
		if was, ok := prev[name]; ok && was == up {
			continue
		}
		changed = append(changed, name)
		entry := p.Log.WithField("server", name)
		if up {
			entry.Info("docker host is back up")
		} else {
			entry.Warn("docker host went down")
		}
		if p.WS != nil {
			p.WS.Broadcast(hub.Event{
				Type:   "host.status",
				Target: name,
				Payload: map[string]interface{}{
					"up":        up,
					"checkedAt": time.Now().UTC().Format(time.RFC3339),
				},
			})
		}
	}
	return changed
}

// States returns the result of the last round, or nil before the first one.
func (p *Poller) States() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	out := make(map[string]bool, len(p.last))
	for k, v := range p.last {
		out[k] = v
	}
	return out
}
