package chart

import (
	"strconv"
	"sync"
)

// DefaultRadius is the marker radius a node gets when it is created.
const DefaultRadius = 13

// Network is a network chart with a single series: an ordered node list and the links
// between them. It is safe for concurrent use.
type Network struct {
	mu       *sync.Mutex
	observer Observer
	nodes    []*Node
	links    []*Link
	// Link keys are never reused, even after the link is removed.
	linkCount int
}

func NewNetwork(observer Observer) *Network {
	return &Network{
		mu:       &sync.Mutex{},
		observer: observer,
	}
}

// SetObserver replaces the observer, nil disables notifications.
func (n *Network) SetObserver(observer Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observer = observer
}

// AddPoint adds a link from -> to, creating whichever endpoints don't exist yet. Both
// endpoints can be created by the same call.
func (n *Network) AddPoint(from, to string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fromNode := n.findOrCreate(from)
	toNode := n.findOrCreate(to)

	n.linkCount++
	link := &Link{
		net:  n,
		key:  strconv.Itoa(n.linkCount),
		from: fromNode,
		to:   toNode,
	}
	n.links = append(n.links, link)
	fromNode.linksFrom = append(fromNode.linksFrom, link)
	toNode.linksTo = append(toNode.linksTo, link)

	n.notify(Event{Type: EdgeAdded, Data: link.data()})
}

// Nodes returns the current node list in insertion order.
func (n *Network) Nodes() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.nodes))
	copy(out, n.nodes)
	return out
}

// Node finds a node by id.
func (n *Network) Node(id string) (*Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	node := n.find(id)
	return node, node != nil
}

// Links returns the current link list in insertion order.
func (n *Network) Links() []*Link {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Link, len(n.links))
	copy(out, n.links)
	return out
}

// Sync calls fn with the events that rebuild the current network from nothing. The
// network is locked for the duration of fn, so no mutation can be observed twice or
// missed by whoever fn registers.
func (n *Network) Sync(fn func([]Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()

	events := make([]Event, 0, len(n.nodes)+len(n.links))
	for _, node := range n.nodes {
		events = append(events, Event{Type: NodeAdded, Data: node.data()})
	}
	for _, link := range n.links {
		events = append(events, Event{Type: EdgeAdded, Data: link.data()})
	}
	fn(events)
}

// Snapshot returns the current network as a Graph.
func (n *Network) Snapshot() Graph {
	n.mu.Lock()
	defer n.mu.Unlock()

	g := Graph{
		Nodes: make([]NodeData, 0, len(n.nodes)),
		Edges: make([]EdgeData, 0, len(n.links)),
	}
	for _, node := range n.nodes {
		g.Nodes = append(g.Nodes, node.data())
	}
	for _, link := range n.links {
		g.Edges = append(g.Edges, link.data())
	}
	return g
}

func (n *Network) find(id string) *Node {
	for _, node := range n.nodes {
		if node.id == id {
			return node
		}
	}
	return nil
}

func (n *Network) findOrCreate(id string) *Node {
	if node := n.find(id); node != nil {
		return node
	}
	node := &Node{
		net:      n,
		id:       id,
		label:    id,
		radius:   DefaultRadius,
		opacity:  1,
		attached: true,
	}
	n.nodes = append(n.nodes, node)
	n.notify(Event{Type: NodeAdded, Data: node.data()})
	return node
}

// remove detaches node and every link touching it. n.mu must be held.
func (n *Network) remove(node *Node) {
	if !node.attached {
		return
	}

	incident := make([]*Link, 0, len(node.linksFrom)+len(node.linksTo))
	incident = append(incident, node.linksFrom...)
	incident = append(incident, node.linksTo...)
	for _, link := range incident {
		n.removeLink(link)
	}

	for i, candidate := range n.nodes {
		if candidate == node {
			n.nodes = append(n.nodes[:i], n.nodes[i+1:]...)
			break
		}
	}
	node.attached = false
	n.notify(Event{Type: NodeDropped, Data: NodeData{Key: node.id}})
}

func (n *Network) removeLink(link *Link) {
	if link.removed {
		return
	}
	link.removed = true
	n.links = without(n.links, link)
	link.from.linksFrom = without(link.from.linksFrom, link)
	link.to.linksTo = without(link.to.linksTo, link)
	n.notify(Event{Type: EdgeDropped, Data: EdgeData{
		Key:    link.key,
		Source: link.from.id,
		Target: link.to.id,
	}})
}

func (n *Network) notify(ev Event) {
	if n.observer != nil {
		n.observer.Observe(ev)
	}
}

func without(links []*Link, target *Link) []*Link {
	out := links[:0]
	for _, l := range links {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}
