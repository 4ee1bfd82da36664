package monitor

import (
	"time"

	"github.com/psidex/wsmonitor/internal/chart"
	"github.com/psidex/wsmonitor/internal/metrics"
)

// fade is one node's departure. Each fading node owns its own color ticker and
// deadline timer; the deadline is the only way a fade completes.
type fade struct {
	node     *chart.Node
	state    State
	ticker   *time.Ticker
	deadline *time.Timer
	// stop is closed when the color loop must exit.
	stop        chan struct{}
	colorActive bool
}

// removeNode starts node's fade-out. c.mu must be held.
func (c *Controller) removeNode(node *chart.Node) {
	id := node.ID()
	if _, fading := c.fades[id]; fading {
		c.logger.Debug("Node already fading", "id", id)
		return
	}

	node.HideLabel()
	linkColor := grayRGB(c.opts.FadeThreshold)
	for _, link := range node.LinksFrom() {
		link.SetColor(linkColor)
	}
	for _, link := range node.LinksTo() {
		link.SetColor(linkColor)
	}

	f := &fade{
		node:        node,
		state:       StateFading,
		ticker:      time.NewTicker(c.opts.FadeInterval),
		stop:        make(chan struct{}),
		colorActive: true,
	}
	c.fades[id] = f
	f.deadline = time.AfterFunc(c.opts.FadeDeadline, func() { c.fadeDeadline(f) })
	go c.fadeLoop(f)

	metrics.FadesStarted.Inc()
	metrics.ActiveFades.Set(float64(len(c.fades)))
	c.logger.Debug("Node fading", "id", id, "deadline", c.opts.FadeDeadline)
}

func (c *Controller) fadeLoop(f *fade) {
	for {
		select {
		case <-f.ticker.C:
			if !c.fadeTick(f) {
				return
			}
		case <-f.stop:
			return
		}
	}
}

func (c *Controller) fadeTick(f *fade) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f.state != StateFading || !f.colorActive {
		return false
	}
	// The renderer may fade the node out on its own.
	if !f.node.Attached() || f.node.Opacity() <= 0 {
		f.stopColor()
		return false
	}

	if next, ok := stepTowardGray(f.node.Color(), c.opts.FadeThreshold, c.opts.FadeStep); ok {
		f.node.SetColor(next)
	}
	return true
}

func (c *Controller) fadeDeadline(f *fade) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.state != StateFading {
		return
	}
	c.completeFade(f)
}

// completeFade detaches the node and forgets it. c.mu must be held.
func (c *Controller) completeFade(f *fade) {
	f.stopColor()
	f.deadline.Stop()
	f.state = StateRemoved

	id := f.node.ID()
	if c.fades[id] == f {
		delete(c.fades, id)
	}
	c.known.Remove(id)
	delete(c.nodes, id)
	if f.node.Attached() {
		f.node.Remove()
	}

	metrics.NodesRemoved.Inc()
	metrics.ActiveFades.Set(float64(len(c.fades)))
	c.logger.Debug("Node removed", "id", id)
}

func (f *fade) stopColor() {
	if !f.colorActive {
		return
	}
	f.colorActive = false
	f.ticker.Stop()
	close(f.stop)
}
