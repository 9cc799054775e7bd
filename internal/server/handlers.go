// Package server exposes the HTTP and WebSocket surface of the sales
// analytics service.
//
// The package contains no aggregation logic of its own: handlers validate
// input, delegate to the ledger, currency converter, and sales service, and
// shape responses. The streaming endpoint registers WebSocket clients as
// live subscribers of the sales service.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/upagupta2003/sales-analytics/internal/ledger"
	"github.com/upagupta2003/sales-analytics/internal/model"
	"github.com/upagupta2003/sales-analytics/internal/service"
	"github.com/upagupta2003/sales-analytics/internal/utils"
)

// defaultTopLimit is the top-N size used when the query omits a limit.
const defaultTopLimit = 10

// SalesCore is the slice of the sales service the handlers consume.
type SalesCore interface {
	Record(ctx context.Context, tx model.Transaction) error
	Metrics() model.MetricsSnapshot
	TopReps(n int) ([]model.RankedEntry, error)
	TopRegions(n int) ([]model.RankedEntry, error)
	Subscribe() (*service.Subscriber, error)
	Unsubscribe(sub *service.Subscriber) error
}

// TransactionLedger is the slice of the durable ledger the handlers consume.
type TransactionLedger interface {
	Insert(ctx context.Context, tx *model.Transaction) error
	List(ctx context.Context, f ledger.Filter) ([]model.Transaction, error)
}

// Converter converts origin-currency amounts into USD.
type Converter interface {
	ConvertToUSD(ctx context.Context, amount decimal.Decimal, from string) (decimal.Decimal, error)
}

// SalesHandler handles transaction and analytics endpoints.
type SalesHandler struct {
	core      SalesCore
	ledger    TransactionLedger
	converter Converter
	validate  *validator.Validate
	log       zerolog.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(core SalesCore, txLedger TransactionLedger, converter Converter, log zerolog.Logger) *SalesHandler {
	return &SalesHandler{
		core:      core,
		ledger:    txLedger,
		converter: converter,
		validate:  validator.New(),
		log:       log,
	}
}

// createSaleRequest is the POST /api/sales payload.
type createSaleRequest struct {
	CustomerName string          `json:"customer_name" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency" validate:"required"`
	SalesRep     string          `json:"sales_rep"`
	Region       string          `json:"region"`
	Date         *time.Time      `json:"date"`
}

// CreateSale handles POST /api/sales.
//
// The transaction is converted to the reference currency, durably committed
// to the ledger, and only then applied to the running aggregates — a
// transaction that fails to persist never reaches the aggregation core.
func (h *SalesHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !req.Amount.IsPositive() {
		WriteError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	currency, err := utils.NormalizeCurrency(req.Currency)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	converted, err := h.converter.ConvertToUSD(ctx, req.Amount, currency)
	if err != nil {
		h.log.Error().Err(err).Str("currency", currency).Msg("currency conversion failed")
		WriteError(w, http.StatusBadGateway, "currency conversion failed")
		return
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = *req.Date
	}

	tx := model.Transaction{
		Date:               date,
		CustomerName:       req.CustomerName,
		Amount:             req.Amount,
		Currency:           currency,
		ConvertedAmountUSD: converted,
		SalesRep:           req.SalesRep,
		Region:             req.Region,
	}

	if err := h.ledger.Insert(ctx, &tx); err != nil {
		h.log.Error().Err(err).Msg("failed to persist transaction")
		WriteError(w, http.StatusInternalServerError, "failed to persist transaction")
		return
	}

	// Committed: apply to the running aggregates and broadcast.
	if err := h.core.Record(ctx, tx); err != nil {
		h.log.Error().Err(err).Int64("transaction_id", tx.ID).Msg("failed to apply transaction to aggregates")
		WriteError(w, http.StatusInternalServerError, "failed to update real-time metrics")
		return
	}

	WriteJSON(w, http.StatusCreated, tx)
}

// ListSales handles GET /api/sales with optional filters.
func (h *SalesHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var f ledger.Filter

	if raw := q.Get("start_date"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "start_date must be RFC3339")
			return
		}
		f.Start = start
	}
	if raw := q.Get("end_date"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "end_date must be RFC3339")
			return
		}
		f.End = end
	}
	f.Region = q.Get("region")
	f.SalesRep = q.Get("sales_rep")

	skip, err := utils.ParseLimit(q.Get("skip"), 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := utils.ParseLimit(q.Get("limit"), 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.Offset = skip
	f.Limit = limit

	transactions, err := h.ledger.List(ctx, f)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list transactions")
		WriteError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// TotalRevenue handles GET /api/analytics/realTime/total_revenue.
func (h *SalesHandler) TotalRevenue(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.core.Metrics())
}

// repEntry is one row of the top-sales-reps response.
type repEntry struct {
	SalesRep      string          `json:"sales_rep"`
	TotalSalesUSD decimal.Decimal `json:"total_sales_usd"`
}

// TopSalesReps handles GET /api/analytics/realTime/top_sales_reps.
func (h *SalesHandler) TopSalesReps(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.ParseLimit(r.URL.Query().Get("limit"), defaultTopLimit)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.core.TopReps(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to query top sales reps")
		WriteError(w, http.StatusInternalServerError, "failed to query top sales reps")
		return
	}

	out := make([]repEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, repEntry{SalesRep: e.Key, TotalSalesUSD: e.TotalUSD})
	}
	WriteJSON(w, http.StatusOK, out)
}

// regionEntry is one row of the top-regions response.
type regionEntry struct {
	Region        string          `json:"region"`
	TotalSalesUSD decimal.Decimal `json:"total_sales_usd"`
}

// TopRegions handles GET /api/analytics/realTime/top_regions.
func (h *SalesHandler) TopRegions(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.ParseLimit(r.URL.Query().Get("limit"), defaultTopLimit)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.core.TopRegions(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to query top regions")
		WriteError(w, http.StatusInternalServerError, "failed to query top regions")
		return
	}

	out := make([]regionEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, regionEntry{Region: e.Key, TotalSalesUSD: e.TotalUSD})
	}
	WriteJSON(w, http.StatusOK, out)
}

// Health handles GET /healthz.
func (h *SalesHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
