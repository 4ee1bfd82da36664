package chart

// EventType names a mutation of the network, as sent to the frontend.
type EventType string

const (
	NodeAdded   EventType = "node"
	NodeUpdated EventType = "nodeupdate"
	NodeDropped EventType = "dropnode"
	EdgeAdded   EventType = "edge"
	EdgeUpdated EventType = "edgeupdate"
	EdgeDropped EventType = "dropedge"
)

type NodeAttributes struct {
	Label       string  `json:"label"`
	Color       string  `json:"color,omitempty"`
	Size        float64 `json:"size"`
	LabelHidden bool    `json:"labelHidden,omitempty"`
	Opacity     float64 `json:"opacity"`
}

type NodeData struct {
	Key        string         `json:"key"`
	Attributes NodeAttributes `json:"attributes"`
}

type EdgeAttributes struct {
	Color string `json:"color,omitempty"`
}

type EdgeData struct {
	Key        string         `json:"key"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Attributes EdgeAttributes `json:"attributes"`
}

// Event is one mutation. Data is a NodeData for node events and an EdgeData for edge
// events.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Observer receives every mutation of a Network. Observe is called with the network
// lock held, so it must not call back into the network.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Graph is the JSON form of a whole network.
type Graph struct {
	Nodes []NodeData `json:"nodes"`
	Edges []EdgeData `json:"edges"`
}
