package monitor

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/psidex/wsmonitor/internal/chart"
	"github.com/psidex/wsmonitor/internal/lib"
	"github.com/psidex/wsmonitor/internal/metrics"
)

var (
	ErrAlreadyInitialized = errors.New("graph already initialized")
	ErrTornDown           = errors.New("graph controller torn down")
)

// Series is the single data series of a network chart that the controller drives.
// *chart.Network satisfies it.
type Series interface {
	AddPoint(from, to string)
	Nodes() []*chart.Node
}

// Edge is a pending (from, to) pair.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// State is where a node is in its lifecycle.
type State int

const (
	// StateAbsent covers both never-seen nodes and removed ones.
	StateAbsent State = iota
	StateActive
	StateFading
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFading:
		return "fading"
	case StateRemoved:
		return "removed"
	default:
		return "absent"
	}
}

// Controller owns a network chart for one dashboard session: the registry of drawn
// nodes, the pending-edge queue and its drain loop, and the fade-out of departing
// nodes. All chart mutations happen with mu held.
type Controller struct {
	mu     sync.Mutex
	logger *slog.Logger
	series Series
	opts   Options

	root  string
	known lib.Set[string]
	nodes map[string]*chart.Node

	pending *lib.Queue[Edge]
	// drain is the running drain loop's ticker, nil when the loop is stopped.
	drain    *time.Ticker
	colorIdx int

	fades map[string]*fade

	done   chan struct{}
	closed bool
}

func New(logger *slog.Logger, series Series, opts Options) *Controller {
	if logger == nil {
		logger = lib.QuietLogger()
	}
	return &Controller{
		logger:  logger,
		series:  series,
		opts:    opts.withDefaults(),
		known:   lib.NewSet[string](),
		nodes:   make(map[string]*chart.Node),
		pending: lib.NewQueue[Edge](),
		fades:   make(map[string]*fade),
		done:    make(chan struct{}),
	}
}

// Init seeds the graph with a self loop on hostname so the root node is always drawn.
func (c *Controller) Init(hostname string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrTornDown
	}
	if c.root != "" {
		return ErrAlreadyInitialized
	}
	c.root = hostname
	c.logger.Info("Graph initialized", "root", hostname)
	c.addEdge(hostname, hostname)
	return nil
}

// Root returns the hostname given to Init.
func (c *Controller) Root() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// AddEdge queues from -> to for insertion unless both endpoints are already drawn.
func (c *Controller) AddEdge(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.addEdge(from, to)
}

func (c *Controller) addEdge(from, to string) {
	if c.known.Contains(from) && c.known.Contains(to) {
		metrics.EdgesSkipped.Inc()
		return
	}

	c.pending.Enqueue(Edge{From: from, To: to})
	metrics.EdgesEnqueued.Inc()
	metrics.QueueDepth.Set(float64(c.pending.Size()))
	c.logger.Debug("Edge queued", "from", from, "to", to, "pending", c.pending.Size())

	c.startDrain()
}

// DropNode fades out and removes the node with the given id. Unknown ids and nodes
// that are already fading are ignored.
func (c *Controller) DropNode(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for _, node := range c.series.Nodes() {
		if node.ID() == name {
			c.removeNode(node)
			return
		}
	}
}

// SetOptions replaces the options. Running loops keep their period, new ones and
// every later step use the new values.
func (c *Controller) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts.withDefaults()
}

// Options returns the options in effect, defaults applied.
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Known returns the ids of every registered node, sorted.
func (c *Controller) Known() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lib.Sorted(c.known)
}

// IsKnown reports whether id is registered.
func (c *Controller) IsKnown(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.known.Contains(id)
}

// Node returns the chart node registered under id.
func (c *Controller) Node(id string) (*chart.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.nodes[id]
	return node, ok
}

// Pending returns the edges still waiting to be drawn, head first.
func (c *Controller) Pending() []Edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Items()
}

// Draining reports whether the drain loop is running.
func (c *Controller) Draining() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drain != nil
}

// Fading returns the ids of nodes currently fading out, sorted.
func (c *Controller) Fading() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fadingLocked()
}

func (c *Controller) fadingLocked() []string {
	ids := make([]string, 0, len(c.fades))
	for id := range c.fades {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats is a point-in-time view of the controller's registries.
type Stats struct {
	Root     string
	Known    []string
	Pending  int
	Draining bool
	Fading   []string
}

// Stats reads every registry under one lock.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Root:     c.root,
		Known:    lib.Sorted(c.known),
		Pending:  c.pending.Size(),
		Draining: c.drain != nil,
		Fading:   c.fadingLocked(),
	}
}

func (c *Controller) State(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.fades[id]; ok {
		return f.state
	}
	if c.known.Contains(id) {
		return StateActive
	}
	return StateAbsent
}

// Teardown stops the drain loop, drops pending edges and completes every fade. The
// controller ignores all calls afterwards.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)

	if c.drain != nil {
		c.drain.Stop()
		c.drain = nil
	}
	c.pending.Clear()
	metrics.QueueDepth.Set(0)

	for _, f := range c.fades {
		c.completeFade(f)
	}
	c.logger.Info("Graph torn down", "root", c.root)
}
