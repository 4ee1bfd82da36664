package source

import (
	"context"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sioserver "github.com/zishang520/socket.io/v2/socket"
)

// startMonitorServer answers each JoinEvent with one relayed edge pair and a disconnect.
func startMonitorServer(t *testing.T) (string, func() any) {
	t.Helper()

	var (
		mu   sync.Mutex
		auth any
	)

	srv := sioserver.NewServer(nil, nil)
	srv.On("connection", func(clients ...any) {
		client := clients[0].(*sioserver.Socket)
		mu.Lock()
		auth = client.Handshake().Auth
		mu.Unlock()

		client.On(JoinEvent, func(...any) {
			_ = client.Emit(RelayEvent, map[string]any{
				"server":    "Server-x",
				"_ts_1_eid": "a",
				"_ts_3_eid": "b",
			})
			_ = client.Emit(RelayEvent, map[string]any{"type": "disconnect", "sid": "a"})
		})
	})

	ts := httptest.NewServer(srv.ServeHandler(nil))
	t.Cleanup(func() {
		srv.Close(nil)
		ts.Close()
	})

	return ts.URL, func() any {
		mu.Lock()
		defer mu.Unlock()
		return auth
	}
}

func TestDialSocketIOJoinsAndApplies(t *testing.T) {
	url, handshakeAuth := startMonitorServer(t)
	g := &recordingGraph{}
	applier := NewApplier(nil, g, NewTracker())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	feed, err := DialSocketIO(ctx, nil, SocketIOConfig{
		URL:            url,
		Token:          "secret",
		ConnectTimeout: 5 * time.Second,
	}, applier)
	require.NoError(t, err)
	defer feed.Close()

	require.Eventually(t, func() bool {
		_, dropped := g.snapshot()
		return len(dropped) == 1
	}, 5*time.Second, 10*time.Millisecond)

	edges, dropped := g.snapshot()
	assert.Equal(t, [][2]string{{"a", "Server-x"}, {"Server-x", "b"}}, edges)
	assert.Equal(t, []string{"a"}, dropped)

	auth, ok := handshakeAuth().(map[string]any)
	require.True(t, ok, "auth payload %#v", handshakeAuth())
	assert.Equal(t, "Bearer secret", auth["Authorization"])
}

func TestDialSocketIOUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	feed, err := DialSocketIO(context.Background(), nil, SocketIOConfig{
		URL:            "http://" + addr,
		ConnectTimeout: 2 * time.Second,
	}, NewApplier(nil, &recordingGraph{}, NewTracker()))
	assert.Error(t, err)
	assert.Nil(t, feed)
}

func TestDialSocketIOBadURL(t *testing.T) {
	_, err := DialSocketIO(context.Background(), nil, SocketIOConfig{URL: "http://[::1"}, nil)
	assert.Error(t, err)
}
