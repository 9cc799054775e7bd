// Package model defines core data types for the sales analytics service.
//
// This package contains the fundamental data structures used throughout the
// system for representing sales transactions, aggregate metrics, and real-time
// update payloads. All monetary values use decimal.Decimal for precise
// financial calculations to avoid floating-point precision issues common in
// financial applications.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Monetary fields are part of the JSON wire format and must serialize as
// numbers, not quoted strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Dimension identifies a categorical attribute used to group revenue
// for ranked top-N queries.
type Dimension string

const (
	// DimensionRep groups revenue by sales representative.
	DimensionRep Dimension = "rep"

	// DimensionRegion groups revenue by geographic region.
	DimensionRegion Dimension = "region"
)

// Transaction represents a persisted sales transaction.
//
// The transaction is created by the HTTP layer after currency conversion and
// is read-only to the aggregation core. ConvertedAmountUSD is the amount in
// the reference currency (USD) and is the only monetary field the aggregation
// core consumes.
type Transaction struct {
	ID                 int64           `json:"id"`                   // Ledger-assigned identifier
	Date               time.Time       `json:"date"`                 // Business timestamp of the sale
	CustomerName       string          `json:"customer_name"`        // Customer the sale was made to
	Amount             decimal.Decimal `json:"amount"`               // Original amount in the origin currency
	Currency           string          `json:"currency"`             // ISO code of the origin currency
	ConvertedAmountUSD decimal.Decimal `json:"converted_amount_usd"` // Amount in the reference currency
	SalesRep           string          `json:"sales_rep"`            // Sales representative (may be empty)
	Region             string          `json:"region"`               // Geographic region (may be empty)
	CreatedAt          time.Time       `json:"created_at"`           // Ledger insertion time
	UpdatedAt          time.Time       `json:"updated_at"`           // Last ledger update time
}

// DimensionTotal is one grouped sum read from the durable ledger,
// used to seed a dimension ranking during bulk load.
//
// The order of a []DimensionTotal slice is significant: it defines the
// first-seen order of the seeded keys, which breaks ties among keys with
// equal accumulated revenue in top-N results.
type DimensionTotal struct {
	Key      string          // Dimension key (sales rep name or region name)
	TotalUSD decimal.Decimal // Accumulated revenue for the key, in USD
}

// RankedEntry is one row of a top-N query result, ordered by
// accumulated revenue descending.
type RankedEntry struct {
	Key      string          // Dimension key
	TotalUSD decimal.Decimal // Accumulated revenue for the key, in USD
}

// MetricsSnapshot is a point-in-time read of the running aggregate metrics.
type MetricsSnapshot struct {
	TotalSalesUSD decimal.Decimal `json:"total_sales_usd"` // Accumulated revenue across all transactions
}

// Update type discriminators carried in SalesUpdate.Type.
const (
	// UpdateTypeNewSale marks an event-driven update emitted for a single
	// ingested transaction.
	UpdateTypeNewSale = "new_sale"

	// UpdateTypeSnapshot marks a periodic snapshot push carrying only the
	// current running total.
	UpdateTypeSnapshot = "snapshot"
)

// SalesUpdate is the payload pushed to live subscribers.
//
// Event-driven updates (type "new_sale") carry the per-transaction fields and
// the running total that already includes the transaction. Periodic snapshot
// pushes (type "snapshot") carry only the running total.
type SalesUpdate struct {
	Type          string          `json:"type"`                // "new_sale" or "snapshot"
	AmountUSD     decimal.Decimal `json:"amount_usd"`          // Converted amount of the triggering sale
	SalesRep      string          `json:"sales_rep,omitempty"` // Sales rep of the triggering sale
	Region        string          `json:"region,omitempty"`    // Region of the triggering sale
	TotalSalesUSD decimal.Decimal `json:"total_sales_usd"`     // Running total after the sale was applied
}
