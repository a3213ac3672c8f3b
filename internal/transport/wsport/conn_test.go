package wsport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"proof_bridge/internal/transport"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades every request and posts back whatever it hears, prefixed.
func echoServer(t *testing.T) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		port := New(ws)
		port.Listen(func(data []byte) {
			port.Post(context.Background(), append([]byte("echo:"), data...))
		})
		<-port.Done()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRoundTrip(t *testing.T) {
	url := echoServer(t)

	port, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer port.Close()

	got := make(chan string, 1)
	port.Listen(func(data []byte) { got <- string(data) })

	require.NoError(t, port.Post(context.Background(), []byte("ping")))

	select {
	case m := <-got:
		assert.Equal(t, "echo:ping", m)
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}
}

func TestPostAfterClose(t *testing.T) {
	url := echoServer(t)

	port, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)
	require.NoError(t, port.Close())

	select {
	case <-port.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}
	assert.ErrorIs(t, port.Post(context.Background(), []byte("x")), transport.ErrClosed)
}

func TestBacklogKeepsArrivalOrder(t *testing.T) {
	const n = 200

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		port := New(ws)
		for i := 0; i < n; i++ {
			if port.Post(context.Background(), []byte(strconv.Itoa(i))) != nil {
				return
			}
		}
		<-port.Done()
	}))
	defer srv.Close()

	port, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer port.Close()

	// Let part of the stream pile up before anyone listens.
	time.Sleep(20 * time.Millisecond)

	var (
		mu       sync.Mutex
		got      []int
		inFlight int
		overlap  bool
	)
	port.Listen(func(data []byte) {
		mu.Lock()
		inFlight++
		if inFlight > 1 {
			overlap = true
		}
		mu.Unlock()

		v, _ := strconv.Atoi(string(data))
		time.Sleep(100 * time.Microsecond)

		mu.Lock()
		got = append(got, v)
		inFlight--
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == n
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, overlap)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
