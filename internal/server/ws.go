package server

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/upagupta2003/sales-analytics/internal/model"
)

const (
	// defaultPushInterval is the period of proactive snapshot pushes.
	defaultPushInterval = time.Second

	// wsWriteTimeout bounds a single send to a subscriber so a slow client
	// cannot stall the connection's push loop indefinitely.
	wsWriteTimeout = 5 * time.Second
)

// WSHandler handles the /ws/sales streaming endpoint.
//
// Each connection is registered as one live subscriber. The push loop
// interleaves two delivery paths: event-driven updates from the dispatcher
// and a periodic snapshot of the running total. Delivery is best-effort; any
// send failure closes the connection and unregisters the subscriber.
type WSHandler struct {
	core         SalesCore
	upgrader     websocket.Upgrader
	pushInterval time.Duration
	log          zerolog.Logger
}

// NewWSHandler creates a streaming handler. A non-positive pushInterval
// selects the one-second default.
func NewWSHandler(core SalesCore, pushInterval time.Duration, log zerolog.Logger) *WSHandler {
	if pushInterval <= 0 {
		pushInterval = defaultPushInterval
	}
	return &WSHandler{
		core: core,
		upgrader: websocket.Upgrader{
			// The dashboard frontend is served from a different origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pushInterval: pushInterval,
		log:          log,
	}
}

// Stream handles GET /ws/sales.
func (h *WSHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub, err := h.core.Subscribe()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to register subscriber")
		return
	}
	defer func() {
		if err := h.core.Unsubscribe(sub); err != nil {
			h.log.Error().Err(err).Msg("failed to unregister subscriber")
		}
	}()

	h.log.Info().Str("remote_addr", r.RemoteAddr).Msg("new streaming subscriber")

	// Read pump: the client sends nothing meaningful, but reading is how we
	// notice a disconnect and how control frames get processed.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-disconnected:
			h.log.Info().Str("remote_addr", r.RemoteAddr).Msg("streaming subscriber disconnected")
			return
		case update, ok := <-sub.Updates():
			if !ok {
				// Dispatcher shut down or unregistered us.
				return
			}
			if err := h.send(conn, update); err != nil {
				h.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("send failed, dropping subscriber")
				return
			}
		case <-ticker.C:
			snapshot := model.SalesUpdate{
				Type:          model.UpdateTypeSnapshot,
				TotalSalesUSD: h.core.Metrics().TotalSalesUSD,
			}
			if err := h.send(conn, snapshot); err != nil {
				h.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("snapshot send failed, dropping subscriber")
				return
			}
		}
	}
}

// send writes one update with a bounded deadline.
func (h *WSHandler) send(conn *websocket.Conn, update model.SalesUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
