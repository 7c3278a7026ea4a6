package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradeboard/internal/api/middleware"
	"github.com/newthinker/tradeboard/internal/present"
	"github.com/newthinker/tradeboard/internal/view"
)

type liveCounter struct{ n atomic.Int32 }

func (c *liveCounter) LiveSubscriberInc() { c.n.Add(1) }
func (c *liveCounter) LiveSubscriberDec() { c.n.Add(-1) }

func TestLiveHandler_PushesChanges(t *testing.T) {
	s := startSession(t, newStubFetcher(3))
	counter := &liveCounter{}
	h := NewLiveHandler(counter, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r.WithContext(middleware.WithSession(r.Context(), s)))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first present.Dashboard
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 3, first.Table.Total)
	assert.Equal(t, int32(1), counter.n.Load())

	_, err = s.UpdateFilters(func(f *view.Filters) { f.Ticker = "MSFT" })
	require.NoError(t, err)

	var next present.Dashboard
	require.NoError(t, conn.ReadJSON(&next))
	assert.Greater(t, next.Version, first.Version)
	assert.Equal(t, "MSFT", next.Filters.Ticker)
	assert.Equal(t, 1, next.Table.Total)

	// closing the session ends the stream
	s.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
			break
		}
	}
	require.Eventually(t, func() bool { return counter.n.Load() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLiveHandler_RequiresSession(t *testing.T) {
	h := NewLiveHandler(nil, nil)
	w := httptest.NewRecorder()
	h.Serve(w, httptest.NewRequest(http.MethodGet, "/api/live", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
