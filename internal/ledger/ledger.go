// Package ledger provides access to the durable sales-transaction ledger.
//
// The ledger is a Postgres table that is the system of record for sales
// transactions. The aggregation core reads it exactly once at startup, to
// reconstruct the in-memory aggregates from grouped sums; the HTTP layer
// uses it for transaction persistence and historical range scans. The
// running aggregates themselves are never stored here.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/upagupta2003/sales-analytics/internal/model"
)

const (
	// defaultListLimit caps historical scans when no limit is requested.
	defaultListLimit = 100

	// maxListLimit is the hard ceiling for a single historical scan.
	maxListLimit = 1000
)

// Store wraps a sql.DB handle with ledger queries.
type Store struct {
	db *sql.DB
}

// NewStore creates a ledger store over an open database handle.
// The caller owns the handle's lifecycle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the sales_transactions table and its indexes if they
// do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sales_transactions (
	id                   BIGSERIAL PRIMARY KEY,
	date                 TIMESTAMPTZ NOT NULL DEFAULT now(),
	customer_name        TEXT NOT NULL,
	amount               NUMERIC(18,2) NOT NULL,
	currency             TEXT NOT NULL,
	converted_amount_usd NUMERIC(18,2) NOT NULL CHECK (converted_amount_usd >= 0),
	sales_rep            TEXT,
	region               TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sales_transactions_date ON sales_transactions (date);
CREATE INDEX IF NOT EXISTS idx_sales_transactions_sales_rep ON sales_transactions (sales_rep);
CREATE INDEX IF NOT EXISTS idx_sales_transactions_region ON sales_transactions (region);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return nil
}

// TotalConverted returns the sum of converted amounts across all committed
// transactions. An empty ledger yields zero.
func (s *Store) TotalConverted(ctx context.Context) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(converted_amount_usd), 0) FROM sales_transactions`

	var raw string
	if err := s.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("failed to query ledger total: %w", err)
	}

	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed ledger total %q: %w", raw, err)
	}
	return total, nil
}

// TotalsByRep returns converted-amount sums grouped by sales representative,
// ordered by sum descending. Rows without a rep are excluded; their revenue
// still appears in TotalConverted.
func (s *Store) TotalsByRep(ctx context.Context) ([]model.DimensionTotal, error) {
	return s.totalsBy(ctx, "sales_rep")
}

// TotalsByRegion returns converted-amount sums grouped by region,
// ordered by sum descending.
func (s *Store) TotalsByRegion(ctx context.Context) ([]model.DimensionTotal, error) {
	return s.totalsBy(ctx, "region")
}

// totalsBy runs a grouped-sum query over one of the dimension columns.
// The column name is restricted to the two known dimensions, never caller input.
// The secondary sort on the key keeps first-seen seeding order reproducible
// across restarts when totals are equal.
func (s *Store) totalsBy(ctx context.Context, column string) ([]model.DimensionTotal, error) {
	query := fmt.Sprintf(`
SELECT %s, SUM(converted_amount_usd) AS total
FROM sales_transactions
WHERE %s IS NOT NULL AND %s <> ''
GROUP BY %s
ORDER BY total DESC, %s ASC`, column, column, column, column, column)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s totals: %w", column, err)
	}
	defer rows.Close()

	var totals []model.DimensionTotal
	for rows.Next() {
		var (
			key string
			raw string
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s total: %w", column, err)
		}
		total, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed %s total %q: %w", column, raw, err)
		}
		totals = append(totals, model.DimensionTotal{Key: key, TotalUSD: total})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s totals: %w", column, err)
	}

	return totals, nil
}

// Insert persists a new transaction and fills in its ledger-assigned
// identifier and timestamps.
func (s *Store) Insert(ctx context.Context, tx *model.Transaction) error {
	const query = `
INSERT INTO sales_transactions
	(date, customer_name, amount, currency, converted_amount_usd, sales_rep, region)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		tx.Date,
		tx.CustomerName,
		tx.Amount,
		tx.Currency,
		tx.ConvertedAmountUSD,
		tx.SalesRep,
		tx.Region,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// Filter narrows a historical range scan. Zero-valued fields are ignored.
type Filter struct {
	Start    time.Time // Earliest business date, inclusive
	End      time.Time // Latest business date, inclusive
	Region   string    // Exact region match
	SalesRep string    // Exact sales rep match
	Offset   int       // Rows to skip
	Limit    int       // Max rows to return; 0 means defaultListLimit
}

// buildListQuery assembles the filtered range-scan query and its arguments.
// Split out from List so the SQL assembly is testable without a database.
func buildListQuery(f Filter) (string, []interface{}) {
	var (
		sb   strings.Builder
		args []interface{}
	)

	sb.WriteString(`
SELECT id, date, customer_name, amount, currency, converted_amount_usd,
       COALESCE(sales_rep, ''), COALESCE(region, ''), created_at, updated_at
FROM sales_transactions`)

	var conds []string
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.Start.IsZero() {
		add("date >= $%d", f.Start)
	}
	if !f.End.IsZero() {
		add("date <= $%d", f.End)
	}
	if f.Region != "" {
		add("region = $%d", f.Region)
	}
	if f.SalesRep != "" {
		add("sales_rep = $%d", f.SalesRep)
	}

	if len(conds) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	args = append(args, limit)
	sb.WriteString(fmt.Sprintf("\nORDER BY date DESC\nLIMIT $%d", len(args)))
	args = append(args, f.Offset)
	sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))

	return sb.String(), args
}

// List returns historical transactions matching the filter,
// newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]model.Transaction, error) {
	query, args := buildListQuery(f)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]model.Transaction, 0)
	for rows.Next() {
		var (
			tx           model.Transaction
			amount       string
			convertedUSD string
		)
		if err := rows.Scan(
			&tx.ID,
			&tx.Date,
			&tx.CustomerName,
			&amount,
			&tx.Currency,
			&convertedUSD,
			&tx.SalesRep,
			&tx.Region,
			&tx.CreatedAt,
			&tx.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("malformed amount %q: %w", amount, err)
		}
		if tx.ConvertedAmountUSD, err = decimal.NewFromString(convertedUSD); err != nil {
			return nil, fmt.Errorf("malformed converted amount %q: %w", convertedUSD, err)
		}

		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return transactions, nil
}
