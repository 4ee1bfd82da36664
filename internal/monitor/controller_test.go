package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psidex/wsmonitor/internal/chart"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

func fastOptions() Options {
	return Options{
		DrainInterval: time.Millisecond,
		FadeInterval:  2 * time.Millisecond,
		FadeDeadline:  60 * time.Millisecond,
	}
}

func newTestController(t *testing.T, opts Options) (*Controller, *chart.Network) {
	t.Helper()
	net := chart.NewNetwork(nil)
	c := New(nil, net, opts)
	t.Cleanup(c.Teardown)
	return c, net
}

func waitDrained(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !c.Draining() && len(c.Pending()) == 0
	}, waitFor, tick)
}

func networkIDs(net *chart.Network) []string {
	out := []string{}
	for _, n := range net.Nodes() {
		out = append(out, n.ID())
	}
	return out
}

func TestInitSeedsRootNode(t *testing.T) {
	c, net := newTestController(t, fastOptions())

	require.NoError(t, c.Init("S-1"))
	waitDrained(t, c)

	assert.Equal(t, []string{"S-1"}, c.Known())
	assert.Equal(t, []string{"S-1"}, networkIDs(net))
	assert.Equal(t, "S-1", c.Root())

	root, ok := c.Node("S-1")
	require.True(t, ok)
	assert.Equal(t, 20.0, root.Radius())
	assert.Equal(t, "#000000", root.Color())

	assert.ErrorIs(t, c.Init("S-2"), ErrAlreadyInitialized)
}

func TestAddEdgeSkipsKnownEndpoints(t *testing.T) {
	c, net := newTestController(t, fastOptions())
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	waitDrained(t, c)
	links := len(net.Links())

	c.AddEdge("S-1", "A-1")
	c.AddEdge("A-1", "S-1")
	c.AddEdge("S-1", "S-1")

	assert.Empty(t, c.Pending())
	assert.False(t, c.Draining())
	assert.Len(t, net.Links(), links)
}

func TestPendingQueueKeepsInsertionOrder(t *testing.T) {
	opts := fastOptions()
	opts.DrainInterval = time.Hour
	c, _ := newTestController(t, opts)

	c.AddEdge("S-1", "A-1")
	c.AddEdge("S-1", "B-1")
	c.AddEdge("B-1", "C-1")

	assert.Equal(t, []Edge{
		{From: "S-1", To: "A-1"},
		{From: "S-1", To: "B-1"},
		{From: "B-1", To: "C-1"},
	}, c.Pending())
	assert.True(t, c.Draining())
}

func TestDrainIsFIFO(t *testing.T) {
	c, net := newTestController(t, fastOptions())
	require.NoError(t, c.Init("S-1"))
	for i := 0; i < 5; i++ {
		c.AddEdge("S-1", fmt.Sprintf("C-%d", i))
	}
	waitDrained(t, c)

	links := net.Links()
	require.Len(t, links, 6)
	assert.Equal(t, "S-1", links[0].To().ID())
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("C-%d", i), links[i+1].To().ID())
	}
	assert.Equal(t, []string{"S-1", "C-0", "C-1", "C-2", "C-3", "C-4"}, networkIDs(net))
}

func TestDrainLoopStopsWhenEmptyAndRestarts(t *testing.T) {
	opts := fastOptions()
	opts.DrainInterval = 20 * time.Millisecond
	c, _ := newTestController(t, opts)

	c.AddEdge("S-1", "A-1")
	assert.True(t, c.Draining())
	waitDrained(t, c)
	assert.False(t, c.Draining())

	c.AddEdge("S-1", "B-1")
	assert.True(t, c.Draining())
	waitDrained(t, c)
	assert.Equal(t, []string{"A-1", "B-1", "S-1"}, c.Known())
}

func TestStatsReadsRegistriesTogether(t *testing.T) {
	opts := fastOptions()
	opts.DrainInterval = time.Hour
	c, _ := newTestController(t, opts)
	require.NoError(t, c.Init("S-1"))

	c.AddEdge("S-1", "A-1")
	c.AddEdge("S-1", "B-1")

	stats := c.Stats()
	assert.Equal(t, "S-1", stats.Root)
	assert.Equal(t, []string{"S-1"}, stats.Known)
	assert.Equal(t, 2, stats.Pending)
	assert.True(t, stats.Draining)
	assert.Empty(t, stats.Fading)
	assert.Equal(t, len(c.Pending()), stats.Pending)
}

func TestEveryNodeRegisteredOnce(t *testing.T) {
	c, net := newTestController(t, fastOptions())
	require.NoError(t, c.Init("S-1"))

	// The same new node referenced by several edges before the first one is drawn.
	c.AddEdge("S-1", "A-1")
	c.AddEdge("A-1", "S-1")
	c.AddEdge("A-1", "B-1")
	c.AddEdge("B-1", "A-1")
	waitDrained(t, c)

	assert.Equal(t, []string{"A-1", "B-1", "S-1"}, c.Known())
	assert.ElementsMatch(t, c.Known(), networkIDs(net))

	// Each client got exactly one palette color.
	a, _ := c.Node("A-1")
	b, _ := c.Node("B-1")
	assert.Equal(t, DefaultPalette[0], a.Color())
	assert.Equal(t, DefaultPalette[1], b.Color())
}

func TestServerNodesAreNeverPaletteColored(t *testing.T) {
	opts := fastOptions()
	opts.ServerPrefixes = []string{"s-", "server-"}
	c, _ := newTestController(t, opts)

	require.NoError(t, c.Init("S-root"))
	c.AddEdge("abc123", "Server-web1")
	c.AddEdge("s-web2", "def456")
	waitDrained(t, c)

	for _, id := range []string{"S-root", "Server-web1", "s-web2"} {
		node, ok := c.Node(id)
		require.True(t, ok, id)
		assert.Equal(t, "#000000", node.Color(), id)
		assert.Equal(t, 20.0, node.Radius(), id)
		assert.Equal(t, id, node.Label(), id)
	}

	abc, _ := c.Node("abc123")
	assert.Equal(t, DefaultPalette[0], abc.Color())
	assert.Equal(t, "abc", abc.Label())
	assert.Equal(t, float64(chart.DefaultRadius), abc.Radius())

	def, _ := c.Node("def456")
	assert.Equal(t, DefaultPalette[1], def.Color())
	assert.Equal(t, "def", def.Label())
}

func TestPaletteCyclesInFirstSeenOrder(t *testing.T) {
	c, _ := newTestController(t, fastOptions())
	require.NoError(t, c.Init("S-1"))

	n := len(DefaultPalette) + 2
	for i := 0; i < n; i++ {
		c.AddEdge("S-1", fmt.Sprintf("client-%02d", i))
	}
	waitDrained(t, c)

	for i := 0; i < n; i++ {
		node, ok := c.Node(fmt.Sprintf("client-%02d", i))
		require.True(t, ok)
		assert.Equal(t, DefaultPalette[i%len(DefaultPalette)], node.Color(), i)
		assert.Equal(t, "cli", node.Label())
	}
}

func TestDropUnknownNodeIsNoop(t *testing.T) {
	c, net := newTestController(t, fastOptions())
	require.NoError(t, c.Init("S-1"))
	waitDrained(t, c)

	c.DropNode("nobody")

	assert.Equal(t, StateAbsent, c.State("nobody"))
	assert.Empty(t, c.fades)
	assert.Equal(t, []string{"S-1"}, c.Known())
	assert.Equal(t, []string{"S-1"}, networkIDs(net))
}

func TestDropNodeFadesThenRemoves(t *testing.T) {
	opts := fastOptions()
	opts.FadeDeadline = 200 * time.Millisecond
	c, net := newTestController(t, opts)
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	c.AddEdge("B-1", "A-1")
	waitDrained(t, c)

	a, _ := c.Node("A-1")
	startColor := a.Color()

	c.DropNode("A-1")
	assert.Equal(t, StateFading, c.State("A-1"))
	assert.True(t, a.LabelHidden())
	for _, link := range append(a.LinksFrom(), a.LinksTo()...) {
		assert.Equal(t, "rgb(230,230,230)", link.Color())
	}

	require.Eventually(t, func() bool { return a.Color() != startColor }, waitFor, tick)

	require.Eventually(t, func() bool { return !c.IsKnown("A-1") }, waitFor, tick)
	assert.Equal(t, StateAbsent, c.State("A-1"))
	assert.False(t, a.Attached())
	_, ok := c.Node("A-1")
	assert.False(t, ok)
	assert.Equal(t, []string{"S-1", "B-1"}, networkIDs(net))
	assert.Equal(t, []string{"B-1", "S-1"}, c.Known())
}

func TestDeadlineRemovesNodeWhenColorStalls(t *testing.T) {
	opts := fastOptions()
	opts.FadeInterval = time.Hour
	opts.FadeDeadline = 40 * time.Millisecond
	c, net := newTestController(t, opts)
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	waitDrained(t, c)

	a, _ := c.Node("A-1")
	color := a.Color()

	start := time.Now()
	c.DropNode("A-1")
	require.Eventually(t, func() bool { return !c.IsKnown("A-1") }, waitFor, tick)
	assert.Less(t, time.Since(start), opts.FadeDeadline+100*time.Millisecond)

	assert.Equal(t, color, a.Color())
	assert.Equal(t, []string{"S-1"}, networkIDs(net))
}

func TestColorLoopStopsAtZeroOpacity(t *testing.T) {
	opts := fastOptions()
	opts.FadeDeadline = 150 * time.Millisecond
	c, _ := newTestController(t, opts)
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	waitDrained(t, c)

	a, _ := c.Node("A-1")
	a.SetOpacity(0)
	color := a.Color()

	c.DropNode("A-1")
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		f, ok := c.fades["A-1"]
		return ok && !f.colorActive
	}, waitFor, tick)
	assert.Equal(t, color, a.Color())
	assert.Equal(t, StateFading, c.State("A-1"))

	require.Eventually(t, func() bool { return !c.IsKnown("A-1") }, waitFor, tick)
}

func TestDropNodeTwiceKeepsOneFade(t *testing.T) {
	opts := fastOptions()
	opts.FadeDeadline = time.Hour
	c, _ := newTestController(t, opts)
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	waitDrained(t, c)

	c.DropNode("A-1")
	c.mu.Lock()
	first := c.fades["A-1"]
	c.mu.Unlock()
	require.NotNil(t, first)

	c.DropNode("A-1")
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.fades, 1)
	assert.Same(t, first, c.fades["A-1"])
}

func TestConcurrentFadesAreIndependent(t *testing.T) {
	opts := fastOptions()
	opts.FadeDeadline = 50 * time.Millisecond
	c, _ := newTestController(t, opts)
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	c.AddEdge("S-1", "B-1")
	c.AddEdge("S-1", "C-1")
	waitDrained(t, c)

	c.DropNode("A-1")
	time.Sleep(10 * time.Millisecond)
	c.DropNode("B-1")

	require.Eventually(t, func() bool {
		return !c.IsKnown("A-1") && !c.IsKnown("B-1")
	}, waitFor, tick)
	assert.Equal(t, []string{"C-1", "S-1"}, c.Known())
	assert.Equal(t, StateActive, c.State("C-1"))
}

func TestNodeCanReturnAfterRemoval(t *testing.T) {
	opts := fastOptions()
	opts.FadeDeadline = 20 * time.Millisecond
	c, _ := newTestController(t, opts)
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	waitDrained(t, c)

	c.DropNode("A-1")
	require.Eventually(t, func() bool { return !c.IsKnown("A-1") }, waitFor, tick)

	c.AddEdge("S-1", "A-1")
	waitDrained(t, c)
	a, ok := c.Node("A-1")
	require.True(t, ok)
	assert.Equal(t, DefaultPalette[1], a.Color())
	assert.False(t, a.LabelHidden())
}

func TestTeardown(t *testing.T) {
	opts := fastOptions()
	opts.DrainInterval = 20 * time.Millisecond
	opts.FadeDeadline = time.Hour
	c, net := newTestController(t, opts)
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	waitDrained(t, c)

	c.DropNode("A-1")
	c.AddEdge("S-1", "B-1")
	require.True(t, c.Draining())

	c.Teardown()

	assert.False(t, c.Draining())
	assert.Empty(t, c.Pending())
	assert.False(t, c.IsKnown("A-1"))
	assert.Equal(t, []string{"S-1"}, networkIDs(net))

	c.AddEdge("S-1", "C-1")
	assert.Empty(t, c.Pending())
	assert.ErrorIs(t, c.Init("S-2"), ErrTornDown)
	c.Teardown()
}

func TestSetOptionsAppliesToLaterNodes(t *testing.T) {
	c, _ := newTestController(t, fastOptions())
	require.NoError(t, c.Init("S-1"))
	c.AddEdge("S-1", "A-1")
	waitDrained(t, c)

	opts := fastOptions()
	opts.Palette = []string{"#111111"}
	opts.LabelLength = 1
	c.SetOptions(opts)

	c.AddEdge("S-1", "B-1")
	waitDrained(t, c)

	b, _ := c.Node("B-1")
	assert.Equal(t, "#111111", b.Color())
	assert.Equal(t, "B", b.Label())
	assert.Equal(t, []string{"#111111"}, c.Options().Palette)
}

func TestDashboardExample(t *testing.T) {
	opts := fastOptions()
	opts.DrainInterval = 20 * time.Millisecond
	c, net := newTestController(t, opts)

	require.NoError(t, c.Init("S-1"))
	waitDrained(t, c)
	assert.Equal(t, []string{"S-1"}, c.Known())

	c.AddEdge("S-1", "A-1")
	assert.Len(t, c.Pending(), 1)
	waitDrained(t, c)
	assert.Equal(t, []string{"A-1", "S-1"}, c.Known())

	c.DropNode("A-1")
	require.Eventually(t, func() bool {
		return len(c.Known()) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"S-1"}, c.Known())
	assert.Equal(t, []string{"S-1"}, networkIDs(net))
}
