package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upagupta2003/sales-analytics/internal/model"
)

// testStreamServer is a minimal WebSocket server that pushes pre-canned
// frames to every client that connects. Server-side connections are exposed
// on conns so tests can terminate them directly.
type testStreamServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	frames   [][]byte
	conns    chan *websocket.Conn
}

func newTestStreamServer(t *testing.T, frames [][]byte) *testStreamServer {
	t.Helper()

	s := &testStreamServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		frames: frames,
		conns:  make(chan *websocket.Conn, 4),
	}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		select {
		case s.conns <- conn:
		default:
		}

		for _, frame := range s.frames {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}

		// Keep the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	t.Cleanup(s.server.Close)
	return s
}

func (s *testStreamServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func decodeUpdate(data []byte, out chan<- model.SalesUpdate) error {
	var update model.SalesUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return err
	}
	out <- update
	return nil
}

func Test_NewClient_ConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing endpoint",
			cfg:     Config{Handler: decodeUpdate},
			wantErr: "endpoint URL is required",
		},
		{
			name:    "missing handler",
			cfg:     Config{Endpoint: "ws://localhost:1/ws/sales"},
			wantErr: "message handler is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Nil(t, client)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func Test_Client_ReceivesUpdates(t *testing.T) {
	updates := []model.SalesUpdate{
		{
			Type:          model.UpdateTypeNewSale,
			AmountUSD:     decimal.NewFromFloat(250.00),
			SalesRep:      "Alice",
			Region:        "East",
			TotalSalesUSD: decimal.NewFromFloat(250.00),
		},
		{
			Type:          model.UpdateTypeSnapshot,
			TotalSalesUSD: decimal.NewFromFloat(250.00),
		},
	}

	frames := make([][]byte, 0, len(updates))
	for _, u := range updates {
		data, err := json.Marshal(u)
		require.NoError(t, err)
		frames = append(frames, data)
	}

	server := newTestStreamServer(t, frames)

	client, err := NewClient(context.Background(), Config{
		Endpoint: server.wsURL(),
		Handler:  decodeUpdate,
	})
	require.NoError(t, err)
	defer client.Close()

	for _, want := range updates {
		select {
		case got := <-client.Updates:
			assert.Equal(t, want.Type, got.Type)
			assert.True(t, want.TotalSalesUSD.Equal(got.TotalSalesUSD),
				"expected total %s, got %s", want.TotalSalesUSD, got.TotalSalesUSD)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for sales update")
		}
	}
}

func Test_Client_HandlerPanicIsIsolated(t *testing.T) {
	frames := [][]byte{
		[]byte(`not json`),
		[]byte(`{"type":"snapshot","total_sales_usd":"42"}`),
	}

	server := newTestStreamServer(t, frames)

	handler := func(data []byte, out chan<- model.SalesUpdate) error {
		if string(data) == "not json" {
			panic("boom")
		}
		return decodeUpdate(data, out)
	}

	client, err := NewClient(context.Background(), Config{
		Endpoint: server.wsURL(),
		Handler:  handler,
	})
	require.NoError(t, err)
	defer client.Close()

	select {
	case got := <-client.Updates:
		assert.Equal(t, model.UpdateTypeSnapshot, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not survive handler panic")
	}
}

func Test_Client_HandlerErrorDoesNotKillConnection(t *testing.T) {
	frames := [][]byte{
		[]byte(`{"broken"`),
		[]byte(`{"type":"snapshot","total_sales_usd":"7"}`),
	}

	server := newTestStreamServer(t, frames)

	handler := func(data []byte, out chan<- model.SalesUpdate) error {
		var update model.SalesUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			return errors.New("decode failed")
		}
		out <- update
		return nil
	}

	client, err := NewClient(context.Background(), Config{
		Endpoint: server.wsURL(),
		Handler:  handler,
	})
	require.NoError(t, err)
	defer client.Close()

	select {
	case got := <-client.Updates:
		assert.Equal(t, model.UpdateTypeSnapshot, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sales update")
	}
}

func Test_Client_DisconnectSignal(t *testing.T) {
	server := newTestStreamServer(t, nil)

	client, err := NewClient(context.Background(), Config{
		Endpoint: server.wsURL(),
		Handler:  decodeUpdate,
	})
	require.NoError(t, err)

	// Terminate the connection from the server side. The upgraded connection
	// is hijacked from the HTTP server, so it must be closed directly.
	select {
	case conn := <-server.conns:
		require.NoError(t, conn.Close())
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the connection")
	}

	select {
	case <-client.Disconnected():
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect signal never fired")
	}

	client.Close()
}

func Test_Client_ContextCancellation(t *testing.T) {
	server := newTestStreamServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	client, err := NewClient(ctx, Config{
		Endpoint: server.wsURL(),
		Handler:  decodeUpdate,
	})
	require.NoError(t, err)

	cancel()

	select {
	case <-client.Disconnected():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not shut down on context cancellation")
	}
}

func Test_Client_CloseIsIdempotent(t *testing.T) {
	server := newTestStreamServer(t, nil)

	client, err := NewClient(context.Background(), Config{
		Endpoint: server.wsURL(),
		Handler:  decodeUpdate,
	})
	require.NoError(t, err)

	client.Close()
	assert.NotPanics(t, func() { client.Close() })
}

func Test_Client_CloseDoesNotStall(t *testing.T) {
	server := newTestStreamServer(t, nil)

	client, err := NewClient(context.Background(), Config{
		Endpoint: server.wsURL(),
		Handler:  decodeUpdate,
	})
	require.NoError(t, err)

	start := time.Now()
	client.Close()

	// Close must return as soon as the read and ping loops exit, well under
	// the bounded wait it falls back to.
	assert.Less(t, time.Since(start), 2*time.Second,
		"Close should not wait out the goroutine timeout")
}
