package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config defines settings for the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// PushInterval is the period of proactive websocket snapshot pushes.
	PushInterval time.Duration
}

// Server is the HTTP/WebSocket front of the sales analytics service.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New assembles the routed HTTP server over the given collaborators.
func New(cfg Config, core SalesCore, txLedger TransactionLedger, converter Converter, log zerolog.Logger) *Server {
	sales := NewSalesHandler(core, txLedger, converter, log)
	ws := NewWSHandler(core, cfg.PushInterval, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sales", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sales.ListSales(w, r)
		case http.MethodPost:
			sales.CreateSale(w, r)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
	mux.HandleFunc("/api/analytics/realTime/total_revenue", requireGet(sales.TotalRevenue))
	mux.HandleFunc("/api/analytics/realTime/top_sales_reps", requireGet(sales.TopSalesReps))
	mux.HandleFunc("/api/analytics/realTime/top_regions", requireGet(sales.TopRegions))
	mux.HandleFunc("/ws/sales", ws.Stream)
	mux.HandleFunc("/healthz", requireGet(sales.Health))
	mux.Handle("/metrics", promhttp.Handler())

	handler := Logging(log)(Recovery(log)(CORS(mux)))

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// requireGet rejects non-GET requests for read-only endpoints.
func requireGet(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
