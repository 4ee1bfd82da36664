package source

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/psidex/wsmonitor/internal/lib"
)

const (
	// JoinEvent subscribes this client to the monitor room.
	JoinEvent = "WS_MONITOR"
	// RelayEvent carries one MonitorEvent.
	RelayEvent = "WS_MONITOR_EVENT"
)

var ErrConnectTimeout = errors.New("timed out waiting for socket.io connection")

type SocketIOConfig struct {
	URL                string
	Namespace          string
	Token              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIO is a live connection to the backend's monitor room.
type SocketIO struct {
	logger *slog.Logger
	io     *socket.Socket
}

// DialSocketIO connects, joins the monitor room on every (re)connect, and feeds relayed
// events to applier until Close.
func DialSocketIO(ctx context.Context, logger *slog.Logger, cfg SocketIOConfig, applier *Applier) (*SocketIO, error) {
	if logger == nil {
		logger = lib.QuietLogger()
	}
	logger = logger.With("url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetReconnection(true)
	if cfg.Token != "" {
		opts.SetAuth(map[string]any{"Authorization": "Bearer " + cfg.Token})
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	connectChan := make(chan error, 1)
	signal := func(err error) {
		select {
		case connectChan <- err:
		default:
		}
	}

	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Connected to monitor feed", "sid", io.Id())
		if err := io.Emit(JoinEvent); err != nil {
			logger.Error("Failed to join monitor room", "err", err)
		}
		signal(nil)
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect error: %v", errs)
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		logger.Warn("Monitor feed connect error", "err", err)
		signal(err)
	})

	io.On(types.EventName("disconnect"), func(reason ...any) {
		logger.Warn("Monitor feed disconnected", "reason", reason)
	})

	io.On(types.EventName(RelayEvent), func(args ...any) {
		if len(args) == 0 {
			return
		}
		ev, err := DecodeEvent(args[0])
		if err != nil {
			logger.Warn("Dropping malformed monitor event", "err", err)
			return
		}
		applier.Apply("socketio", ev)
	})

	io.Connect()

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketIO{logger: logger, io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	case <-time.After(timeout):
		io.Disconnect()
		return nil, ErrConnectTimeout
	}
}

func (s *SocketIO) Close() {
	s.logger.Info("Closing monitor feed", "sid", s.io.Id())
	s.io.Disconnect()
}
