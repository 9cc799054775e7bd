// Package websocket provides a WebSocket client for consuming the live
// sales-update stream.
//
// The client manages the full connection lifecycle: dialing, keepalive
// pings, message decoding through a pluggable handler, and graceful
// shutdown. It is used by the streaming CLI consumer; the server side of the
// stream lives in internal/server.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/upagupta2003/sales-analytics/internal/model"
)

const (
	// defaultPingPeriod defines the default interval for keepalive pings.
	defaultPingPeriod = 15 * time.Second

	// defaultSendTimeout defines the default timeout for write operations.
	defaultSendTimeout = 5 * time.Second

	// defaultReadLimit defines the maximum size of incoming messages.
	defaultReadLimit = 1 << 20 // 1MB

	// defaultHandshakeTimeout defines the maximum time for the handshake.
	defaultHandshakeTimeout = 10 * time.Second
)

// ErrClientShuttingDown indicates that the client is shutting down.
var ErrClientShuttingDown = errors.New("client is shutting down")

// Config defines settings for the stream client.
type Config struct {
	// Endpoint is the WebSocket URL of the sales stream.
	// Required: this field must be provided and non-empty.
	Endpoint string

	// Handler is called for each incoming frame and is expected to decode
	// it and deliver the result to the update channel.
	// Required: this field must be provided and non-nil.
	Handler func([]byte, chan<- model.SalesUpdate) error

	// PingPeriod is the interval between keepalive pings.
	PingPeriod time.Duration

	// SendTimeout is the maximum time allowed for write operations.
	SendTimeout time.Duration
}

// Client wraps a websocket.Conn with lifecycle and message handling logic.
type Client struct {
	// conn stores the active connection using atomic operations.
	conn atomic.Value // stores *websocket.Conn

	// Updates delivers decoded sales updates to the consumer. Closed when
	// the connection is lost or the client shuts down.
	Updates chan model.SalesUpdate

	// disconnect signals when the connection is lost.
	disconnect chan struct{}

	// errChan reports fatal errors that cause connection termination.
	errChan chan error

	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// NewClient returns a connected stream client with its read and ping loops
// already running.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint URL is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("message handler is required")
	}

	if cfg.PingPeriod == 0 {
		cfg.PingPeriod = defaultPingPeriod
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = defaultSendTimeout
	}

	ctx, cancel := context.WithCancel(ctx)

	client := &Client{
		cfg:        &cfg,
		ctx:        ctx,
		cancel:     cancel,
		disconnect: make(chan struct{}),
		errChan:    make(chan error, 1),
		Updates:    make(chan model.SalesUpdate, 100),
	}

	if err := client.run(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start client: %w", err)
	}

	return client, nil
}

// run dials the endpoint and starts the background goroutines.
func (c *Client) run() error {
	logger := log.With().Str("endpoint", c.cfg.Endpoint).Logger()
	logger.Info().Msg("connecting to sales stream")

	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(c.ctx, c.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.conn.Store(conn)

	conn.SetReadLimit(defaultReadLimit)
	conn.SetPongHandler(func(string) error {
		// Refresh the read deadline whenever the server answers a ping.
		deadline := time.Now().Add(c.cfg.PingPeriod * 2)
		if err := conn.SetReadDeadline(deadline); err != nil {
			logger.Warn().Err(err).Msg("failed to set read deadline in pong handler")
		}
		return nil
	})

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.readLoop()
	}()
	go func() {
		defer c.wg.Done()
		c.pingLoop()
	}()

	// Not tracked by the WaitGroup: it calls Close itself, and Close waits
	// on the WaitGroup.
	go c.shutdownListener()

	return nil
}

// readLoop continuously reads frames and hands them to the handler.
func (c *Client) readLoop() {
	conn := c.conn.Load().(*websocket.Conn)
	logger := log.With().
		Str("endpoint", c.cfg.Endpoint).
		Str("component", "readLoop").
		Logger()

	defer func() {
		logger.Info().Msg("read loop exiting")
		close(c.disconnect)
		close(c.Updates)

		select {
		case c.errChan <- ErrClientShuttingDown:
		default:
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info().Err(err).Msg("stream closed normally")
				} else if websocket.IsUnexpectedCloseError(err) {
					logger.Warn().Err(err).Msg("unexpected stream closure")
				} else {
					logger.Error().Err(err).Msg("read error")
				}

				select {
				case c.errChan <- err:
				default:
				}
				return
			}

			func() {
				// Isolate handler panics so one bad frame cannot kill the client.
				defer func() {
					if r := recover(); r != nil {
						logger.Error().Any("recover", r).Msg("panic in message handler")
					}
				}()

				if err := c.cfg.Handler(data, c.Updates); err != nil {
					logger.Error().Err(err).Msg("failed to handle sales update")
				}
			}()
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	logger := log.With().
		Str("endpoint", c.cfg.Endpoint).
		Str("component", "pingLoop").
		Logger()

	for {
		select {
		case <-ticker.C:
			connVal := c.conn.Load()
			if connVal == nil {
				continue
			}
			conn := connVal.(*websocket.Conn)

			if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.SendTimeout)); err != nil {
				logger.Warn().Err(err).Msg("failed to set write deadline")
				continue
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn().Err(err).Msg("ping error")
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// shutdownListener closes the client when the context is cancelled.
func (c *Client) shutdownListener() {
	<-c.ctx.Done()
	c.Close()
}

// Disconnected is closed when the connection is lost for any reason.
func (c *Client) Disconnected() <-chan struct{} {
	return c.disconnect
}

// Close gracefully shuts down the client. Safe to call multiple times.
func (c *Client) Close() {
	c.once.Do(func() {
		logger := log.With().Str("endpoint", c.cfg.Endpoint).Logger()
		logger.Info().Msg("closing stream client")

		c.cancel()

		if connVal := c.conn.Load(); connVal != nil {
			conn := connVal.(*websocket.Conn)
			if err := conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			); err != nil {
				logger.Warn().Err(err).Msg("failed to send close frame")
			}
			if err := conn.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing connection")
			}
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			logger.Warn().Msg("timeout waiting for goroutines to complete")
		}
	})
}
