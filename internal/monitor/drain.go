package monitor

import (
	"time"

	"github.com/psidex/wsmonitor/internal/chart"
	"github.com/psidex/wsmonitor/internal/metrics"
)

// startDrain starts the drain loop if it isn't running. c.mu must be held.
func (c *Controller) startDrain() {
	if c.drain != nil {
		return
	}
	t := time.NewTicker(c.opts.DrainInterval)
	c.drain = t
	go c.drainLoop(t)
}

func (c *Controller) drainLoop(t *time.Ticker) {
	for {
		select {
		case <-t.C:
			if !c.drainTick(t) {
				return
			}
		case <-c.done:
			return
		}
	}
}

// drainTick moves one pending edge into the chart. It returns false once the loop
// owning t should exit.
func (c *Controller) drainTick(t *time.Ticker) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drain != t {
		return false
	}

	edge, ok := c.pending.Dequeue()
	if !ok {
		t.Stop()
		c.drain = nil
		c.logger.Debug("Edge queue empty, drain loop stopped")
		return false
	}
	metrics.QueueDepth.Set(float64(c.pending.Size()))

	c.series.AddPoint(edge.From, edge.To)
	metrics.EdgesDrained.Inc()

	// The chart may have created both endpoints in that one call, so look at every
	// node rather than just the two ids of the edge.
	for _, node := range c.series.Nodes() {
		if c.known.Contains(node.ID()) {
			continue
		}
		c.known.Add(node.ID())
		c.nodes[node.ID()] = node
		c.style(node)
	}
	return true
}

func (c *Controller) style(node *chart.Node) {
	id := node.ID()
	if c.opts.IsServer(id) {
		node.SetRadius(c.opts.ServerRadius)
		node.SetColor(c.opts.ServerColor)
		metrics.NodesAdded.WithLabelValues("server").Inc()
		c.logger.Debug("Server node added", "id", id)
		return
	}

	node.SetLabel(c.opts.shortLabel(id))
	node.SetColor(c.nextColor())
	metrics.NodesAdded.WithLabelValues("client").Inc()
	c.logger.Debug("Client node added", "id", id, "color", node.Color())
}

func (c *Controller) nextColor() string {
	color := c.opts.Palette[c.colorIdx%len(c.opts.Palette)]
	c.colorIdx++
	return color
}
