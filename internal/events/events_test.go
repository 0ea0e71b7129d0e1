package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func sampleEvent() Event {
	return Event{Type: TypeLineItemsAggregated, DealID: "1001", TotalFound: 3, TotalFormatted: 3, ProductsFound: 2,
		At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func TestKafkaPublisher_KeysByDeal(t *testing.T) {
	fw := &fakeWriter{}
	p := newKafkaPublisherWith(fw)

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "1001", string(fw.msgs[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &got))
	assert.Equal(t, sampleEvent(), got)
}

func TestMultiPublisher_TriesAll(t *testing.T) {
	failing := newKafkaPublisherWith(&fakeWriter{fail: true})
	ok := &fakeWriter{}
	m := NewMultiPublisher(failing, nil, newKafkaPublisherWith(ok))

	err := m.Publish(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Len(t, ok.msgs, 1)
}

func TestHub_BroadcastsToWebsocketClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", WSHandler(hub, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "1001", got.DealID)
	assert.Equal(t, TypeLineItemsAggregated, got.Type)
}

func TestHub_SlowClientDoesNotBlockHub(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", WSHandler(hub, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, time.Second, 10*time.Millisecond)

	// hold the client's write lock to simulate a write stuck on a slow panel
	hub.mu.Lock()
	var wmu *sync.Mutex
	for _, m := range hub.clients {
		wmu = m
	}
	hub.mu.Unlock()
	wmu.Lock()

	done := make(chan struct{})
	go func() {
		_ = hub.Publish(context.Background(), sampleEvent())
		close(done)
	}()

	statsDone := make(chan Stats, 1)
	go func() { statsDone <- hub.Stats() }()
	select {
	case st := <-statsDone:
		assert.Equal(t, 1, st.WSClients)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stats blocked behind an in-flight write")
	}

	wmu.Unlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish did not finish after the write lock was released")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"deal_id":"1001"`)
}
