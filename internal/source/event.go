package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/psidex/wsmonitor/internal/lib"
	"github.com/psidex/wsmonitor/internal/metrics"
)

// Graph is what the monitor feed drives. *monitor.Controller satisfies it.
type Graph interface {
	AddEdge(from, to string)
	DropNode(name string)
}

// EventDisconnect marks an explicit departure of MonitorEvent.SID.
const EventDisconnect = "disconnect"

// MonitorEvent is a WS_MONITOR_EVENT payload. The backend stamps every relayed event
// with who sent it, who it went to, and when each hop happened (unix milliseconds).
type MonitorEvent struct {
	// Type is empty for relayed events.
	Type string `json:"type,omitempty"`
	SID  string `json:"sid,omitempty"`

	UUID        string `json:"uuid,omitempty"`
	Server      string `json:"server,omitempty"`
	EmittedBy   string `json:"_ts_1_eid,omitempty"`
	EmittedTo   string `json:"_ts_3_eid,omitempty"`
	ClientEvent string `json:"_c_emit,omitempty"`
	ServerEvent string `json:"_s_emit,omitempty"`
	ClientTs    int64  `json:"_ts_1,omitempty"`
	ServerRecv  int64  `json:"_ts_2,omitempty"`
	ServerEmit  int64  `json:"_ts_3,omitempty"`
}

// DecodeEvent converts a socket.io payload (already decoded from JSON into maps) or raw
// JSON bytes into a MonitorEvent.
func DecodeEvent(data any) (MonitorEvent, error) {
	var ev MonitorEvent

	var raw []byte
	switch v := data.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		var err error
		if raw, err = json.Marshal(v); err != nil {
			return ev, fmt.Errorf("re-encode monitor event: %w", err)
		}
	}

	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("decode monitor event: %w", err)
	}
	return ev, nil
}

// Applier turns monitor events into graph mutations.
type Applier struct {
	logger   *slog.Logger
	graph    Graph
	tracker  *Tracker
	enricher Enricher
	// enrichTimeout bounds each enrichment lookup.
	enrichTimeout time.Duration
}

// NewApplier builds an Applier, tracker may be nil if idle participants are never
// swept.
func NewApplier(logger *slog.Logger, graph Graph, tracker *Tracker) *Applier {
	if logger == nil {
		logger = lib.QuietLogger()
	}
	return &Applier{logger: logger, graph: graph, tracker: tracker, enrichTimeout: time.Second}
}

// SetEnricher makes the applier complete relayed events with e before drawing them.
func (a *Applier) SetEnricher(e Enricher, timeout time.Duration) {
	a.enricher = e
	if timeout > 0 {
		a.enrichTimeout = timeout
	}
}

// Apply draws emitter -> server and server -> recipient for a relayed event, or drops
// the participant for a disconnect.
func (a *Applier) Apply(origin string, ev MonitorEvent) {
	a.ApplyContext(context.Background(), origin, ev)
}

func (a *Applier) ApplyContext(ctx context.Context, origin string, ev MonitorEvent) {
	metrics.MonitorEvents.WithLabelValues(origin).Inc()

	if ev.Type == EventDisconnect {
		if ev.SID == "" {
			a.logger.Warn("Disconnect event without sid", "origin", origin)
			return
		}
		a.logger.Debug("Participant disconnected", "sid", ev.SID)
		if a.tracker != nil {
			a.tracker.Forget(ev.SID)
		}
		a.graph.DropNode(ev.SID)
		return
	}

	if ev.Server == "" {
		a.logger.Debug("Monitor event without server, ignored", "uuid", ev.UUID)
		return
	}
	if a.enricher != nil {
		ctx, cancel := context.WithTimeout(ctx, a.enrichTimeout)
		if err := a.enricher.Enrich(ctx, &ev); err != nil {
			a.logger.Warn("Monitor event enrichment failed", "uuid", ev.UUID, "err", err)
		}
		cancel()
	}
	a.touch(ev.Server)

	if ev.EmittedBy != "" {
		a.touch(ev.EmittedBy)
		a.graph.AddEdge(ev.EmittedBy, ev.Server)
	}
	if ev.EmittedTo != "" {
		a.touch(ev.EmittedTo)
		a.graph.AddEdge(ev.Server, ev.EmittedTo)
	}

	if ev.ClientTs > 0 && ev.ServerRecv >= ev.ClientTs {
		metrics.EventLatency.WithLabelValues("client_to_server").Observe(msSeconds(ev.ServerRecv - ev.ClientTs))
	}
	if ev.ServerRecv > 0 && ev.ServerEmit >= ev.ServerRecv {
		metrics.EventLatency.WithLabelValues("server_to_client").Observe(msSeconds(ev.ServerEmit - ev.ServerRecv))
	}
}

func (a *Applier) touch(id string) {
	if a.tracker != nil {
		a.tracker.Touch(id)
	}
}

func msSeconds(ms int64) float64 {
	return (time.Duration(ms) * time.Millisecond).Seconds()
}
