package health

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envdash/api/hub"
)

type scriptedPinger struct {
	mu     sync.Mutex
	rounds []map[string]bool
}

func (s *scriptedPinger) Ping(ctx context.Context) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rounds[0]
	if len(s.rounds) > 1 {
		s.rounds = s.rounds[1:]
	}
	return r
}

type recorder struct {
	mu     sync.Mutex
	events []hub.Event
}

func (r *recorder) Broadcast(e hub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []hub.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hub.Event(nil), r.events...)
}

func TestPollOnceReportsChanges(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rec := &recorder{}
	p := &Poller{
		Hosts: &scriptedPinger{rounds: []map[string]bool{
			{"team1": true, "team2": false},
			{"team1": true, "team2": false},
			{"team1": false, "team2": true},
		}},
		WS:  rec,
		Log: logger,
	}

	assert.Nil(t, p.States())

	assert.Empty(t, p.PollOnce(context.Background()))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "team2", hook.LastEntry().Data["server"])
	assert.Empty(t, rec.snapshot())

	assert.Empty(t, p.PollOnce(context.Background()))

	changed := p.PollOnce(context.Background())
	sort.Strings(changed)
	assert.Equal(t, []string{"team1", "team2"}, changed)
	assert.Equal(t, map[string]bool{"team1": false, "team2": true}, p.States())

	events := rec.snapshot()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "host.status", e.Type)
		up := e.Payload.(map[string]interface{})["up"].(bool)
		assert.Equal(t, e.Target == "team2", up)
	}
}

func TestPollOnceNewHostCountsAsChange(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := &Poller{
		Hosts: &scriptedPinger{rounds: []map[string]bool{
			{"team1": true},
			{"team1": true, "team3": true},
		}},
		Log: logger,
	}
	p.PollOnce(context.Background())
	assert.Equal(t, []string{"team3"}, p.PollOnce(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := &Poller{
		Hosts:    &scriptedPinger{rounds: []map[string]bool{{"team1": true}}},
		Interval: 10 * time.Millisecond,
		Log:      logger,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.States() != nil }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
