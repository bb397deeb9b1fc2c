package live

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDelay = 20 * time.Millisecond

func frame(id string) string {
	return fmt.Sprintf(`{"type":"booking:created","booking":{"id":%q,"departmentId":"d-1","candidateCount":2,"bookingDate":"2026-09-01","status":"pending","userId":"u-1"},"timestamp":"2026-08-26T10:15:00Z"}`, id)
}

// newTestServer serves /ws and hands each accepted connection to onConn with
// its 1-based dial number. Returned counter tracks every hit on /ws,
// including ones rejected before the upgrade.
func newTestServer(t *testing.T, onConn func(n int32, conn *websocket.Conn)) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	var mu sync.Mutex
	var conns []*websocket.Conn
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		n := atomic.AddInt32(&hits, 1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns = append(conns, conn)
		mu.Unlock()
		onConn(n, conn)
	}))

	t.Cleanup(func() {
		mu.Lock()
		for _, c := range conns {
			c.Close()
		}
		mu.Unlock()
		srv.Close()
	})
	return srv, &hits
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Logf("test server write: %v", err)
	}
}

func collect(t *testing.T, events <-chan BookingEvent, n int) []BookingEvent {
	t.Helper()
	var got []BookingEvent
	for len(got) < n {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", len(got)+1, n)
		}
	}
	return got
}

func assertNoEvent(t *testing.T, events <-chan BookingEvent) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s for booking %s", ev.Kind, ev.Booking.ID)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestChannelDeliversWellFormedFramesInOrder(t *testing.T) {
	srv, _ := newTestServer(t, func(_ int32, conn *websocket.Conn) {
		send(t, conn, frame("b-1"))
		send(t, conn, `{"type":"booking:created"`) // cut off mid-frame
		send(t, conn, `{"type":"booking:created","booking":{"id":"b-x","candidateCount":"two"},"timestamp":"2026-08-26T10:15:00Z"}`)
		send(t, conn, frame("b-2"))
		send(t, conn, frame("b-3"))
	})

	events := make(chan BookingEvent, 16)
	ch := NewChannel(srv.URL, "", WithReconnectDelay(testDelay))
	t.Cleanup(ch.Close)
	ch.Open(func(ev BookingEvent) { events <- ev })

	got := collect(t, events, 3)
	assert.Equal(t, "b-1", got[0].Booking.ID)
	assert.Equal(t, "b-2", got[1].Booking.ID)
	assert.Equal(t, "b-3", got[2].Booking.ID)
	assertNoEvent(t, events)
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	srv, hits := newTestServer(t, func(n int32, conn *websocket.Conn) {
		send(t, conn, frame(fmt.Sprintf("b-%d", n)))
		conn.Close()
	})

	events := make(chan BookingEvent, 16)
	ch := NewChannel(srv.URL, "", WithReconnectDelay(testDelay))
	t.Cleanup(ch.Close)
	ch.Open(func(ev BookingEvent) { events <- ev })

	got := collect(t, events, 3)
	assert.Equal(t, "b-1", got[0].Booking.ID)
	assert.Equal(t, "b-2", got[1].Booking.ID)
	assert.Equal(t, "b-3", got[2].Booking.ID)
	assert.GreaterOrEqual(t, atomic.LoadInt32(hits), int32(3))
}

func TestChannelRetriesFailedDialsUntilSuccess(t *testing.T) {
	var hits int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n <= 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		send(t, conn, frame("b-ok"))
	}))
	t.Cleanup(srv.Close)

	events := make(chan BookingEvent, 4)
	ch := NewChannel(srv.URL, "", WithReconnectDelay(testDelay))
	t.Cleanup(ch.Close)
	ch.Open(func(ev BookingEvent) { events <- ev })

	got := collect(t, events, 1)
	assert.Equal(t, "b-ok", got[0].Booking.ID)
	// Three rejected dials, each scheduling exactly one retry, then success.
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
}

func TestCloseStopsReconnection(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ch := NewChannel(srv.URL, "", WithReconnectDelay(testDelay))
	ch.Open(func(BookingEvent) {})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&hits) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	ch.Close()
	assert.Equal(t, StateClosed, ch.State())

	settled := atomic.LoadInt32(&hits)
	time.Sleep(10 * testDelay)
	// A dial may have been in flight when Close landed; it must be the last.
	assert.LessOrEqual(t, atomic.LoadInt32(&hits), settled+1)
	assert.Equal(t, StateClosed, ch.State())
}

func TestCloseFromHandlerSuppressesPendingFrames(t *testing.T) {
	srv, _ := newTestServer(t, func(_ int32, conn *websocket.Conn) {
		send(t, conn, frame("b-1"))
		send(t, conn, frame("b-2"))
	})

	events := make(chan BookingEvent, 4)
	ch := NewChannel(srv.URL, "", WithReconnectDelay(testDelay))
	ch.Open(func(ev BookingEvent) {
		events <- ev
		ch.Close() // closing from inside the handler must be safe
	})

	got := collect(t, events, 1)
	assert.Equal(t, "b-1", got[0].Booking.ID)
	assertNoEvent(t, events)
	assert.Equal(t, StateClosed, ch.State())
}

func TestOpenSupersedesPriorHandler(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newTestServer(t, func(_ int32, conn *websocket.Conn) {
		<-release
		send(t, conn, frame("b-1"))
	})

	first := make(chan BookingEvent, 4)
	second := make(chan BookingEvent, 4)
	ch := NewChannel(srv.URL, "", WithReconnectDelay(testDelay))
	t.Cleanup(ch.Close)

	ch.Open(func(ev BookingEvent) { first <- ev })
	ch.Open(func(ev BookingEvent) { second <- ev })
	close(release)

	got := collect(t, second, 1)
	assert.Equal(t, "b-1", got[0].Booking.ID)
	assertNoEvent(t, first)
}

func TestHandleCloseClosesChannel(t *testing.T) {
	ch := NewChannel("http://127.0.0.1:1", "", WithReconnectDelay(testDelay))
	h := ch.Open(func(BookingEvent) {})
	h.Close()
	assert.Equal(t, StateClosed, ch.State())
}

func TestCloseIsIdempotentAndTerminal(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ch := NewChannel(srv.URL, "", WithReconnectDelay(testDelay))
	ch.Close()
	ch.Close()
	assert.Equal(t, StateClosed, ch.State())

	// Opening a closed channel must not dial.
	ch.Open(func(BookingEvent) {})
	time.Sleep(5 * testDelay)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	assert.Equal(t, StateClosed, ch.State())
}
