package chart

// Node is a vertex of a Network. Its style fields are mutable and every change is
// reported to the network's observer.
type Node struct {
	net         *Network
	id          string
	label       string
	color       string
	radius      float64
	labelHidden bool
	opacity     float64
	attached    bool
	linksFrom   []*Link
	linksTo     []*Link
}

func (n *Node) ID() string { return n.id }

func (n *Node) Label() string {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	return n.label
}

func (n *Node) Color() string {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	return n.color
}

func (n *Node) Radius() float64 {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	return n.radius
}

func (n *Node) LabelHidden() bool {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	return n.labelHidden
}

func (n *Node) Opacity() float64 {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	return n.opacity
}

// Attached reports whether the node still belongs to its network's series.
func (n *Node) Attached() bool {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	return n.attached
}

// LinksFrom returns the links leaving this node.
func (n *Node) LinksFrom() []*Link {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	return append([]*Link(nil), n.linksFrom...)
}

// LinksTo returns the links arriving at this node.
func (n *Node) LinksTo() []*Link {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	return append([]*Link(nil), n.linksTo...)
}

func (n *Node) SetColor(color string) {
	n.update(func() { n.color = color })
}

func (n *Node) SetLabel(label string) {
	n.update(func() { n.label = label })
}

func (n *Node) SetRadius(radius float64) {
	n.update(func() { n.radius = radius })
}

func (n *Node) HideLabel() {
	n.update(func() { n.labelHidden = true })
}

// SetOpacity is how a renderer reports its own fade of the node.
func (n *Node) SetOpacity(opacity float64) {
	n.update(func() { n.opacity = opacity })
}

// Remove deletes the node and its links from the network. Removing a detached node
// does nothing.
func (n *Node) Remove() {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	n.net.remove(n)
}

func (n *Node) update(apply func()) {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	apply()
	if n.attached {
		n.net.notify(Event{Type: NodeUpdated, Data: n.data()})
	}
}

func (n *Node) data() NodeData {
	return NodeData{
		Key: n.id,
		Attributes: NodeAttributes{
			Label:       n.label,
			Color:       n.color,
			Size:        n.radius,
			LabelHidden: n.labelHidden,
			Opacity:     n.opacity,
		},
	}
}

// Link is a directed edge between two nodes.
type Link struct {
	net     *Network
	key     string
	from    *Node
	to      *Node
	color   string
	removed bool
}

func (l *Link) Key() string { return l.key }
func (l *Link) From() *Node { return l.from }
func (l *Link) To() *Node   { return l.to }

func (l *Link) Color() string {
	l.net.mu.Lock()
	defer l.net.mu.Unlock()
	return l.color
}

func (l *Link) SetColor(color string) {
	l.net.mu.Lock()
	defer l.net.mu.Unlock()
	l.color = color
	if !l.removed {
		l.net.notify(Event{Type: EdgeUpdated, Data: l.data()})
	}
}

func (l *Link) data() EdgeData {
	return EdgeData{
		Key:    l.key,
		Source: l.from.id,
		Target: l.to.id,
		Attributes: EdgeAttributes{
			Color: l.color,
		},
	}
}
