package source

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/psidex/wsmonitor/internal/lib"
)

// Tracker remembers when each participant was last seen.
type Tracker struct {
	mu       *sync.Mutex
	lastSeen map[string]time.Time
	// pinned ids are never reported idle.
	pinned lib.Set[string]
	now    func() time.Time
}

func NewTracker(pinned ...string) *Tracker {
	t := &Tracker{
		mu:       &sync.Mutex{},
		lastSeen: make(map[string]time.Time),
		pinned:   lib.NewSet[string](),
		now:      time.Now,
	}
	for _, id := range pinned {
		t.pinned.Add(id)
	}
	return t
}

func (t *Tracker) Touch(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[id] = t.now()
}

func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSeen, id)
}

// Idle removes and returns, sorted, every unpinned participant not seen within
// timeout.
func (t *Tracker) Idle(timeout time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-timeout)
	var idle []string
	for id, seen := range t.lastSeen {
		if t.pinned.Contains(id) || seen.After(cutoff) {
			continue
		}
		idle = append(idle, id)
		delete(t.lastSeen, id)
	}
	sort.Strings(idle)
	return idle
}

// Sweeper periodically drops idle participants from the graph.
type Sweeper struct {
	logger  *slog.Logger
	tracker *Tracker
	graph   Graph
	timeout time.Duration
	cron    *cron.Cron
}

// NewSweeper schedules a sweep on every, e.g. "@every 5s".
func NewSweeper(logger *slog.Logger, tracker *Tracker, graph Graph, timeout time.Duration, every string) (*Sweeper, error) {
	if logger == nil {
		logger = lib.QuietLogger()
	}
	s := &Sweeper{
		logger:  logger,
		tracker: tracker,
		graph:   graph,
		timeout: timeout,
		cron:    cron.New(),
	}
	if _, err := s.cron.AddFunc(every, func() { s.Sweep() }); err != nil {
		return nil, err
	}
	return s, nil
}

// Sweep drops every idle participant now and returns their ids.
func (s *Sweeper) Sweep() []string {
	idle := s.tracker.Idle(s.timeout)
	for _, id := range idle {
		s.graph.DropNode(id)
	}
	if len(idle) > 0 {
		s.logger.Info("Dropped idle participants", "count", len(idle), "timeout", s.timeout)
	}
	return idle
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
