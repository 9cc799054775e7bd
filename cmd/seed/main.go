/*
Package main implements a sample-data generator for the sales analytics API.

It produces randomized sales transactions (customer, amount, currency, sales
rep, region, date within the last 30 days) and submits them through the
ingestion endpoint so the server performs currency conversion, ledger
persistence, and live broadcasting exactly as it would for real traffic.

Usage:

	go run main.go -url=http://localhost:8080 -count=100
*/
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Command-line flags for configuring the generator
var (
	// baseURL is the root URL of the sales analytics server
	baseURL = flag.String("url", "http://localhost:8080", "Base URL of the sales analytics server")
	// count is the number of sample transactions to generate
	count = flag.Int("count", 100, "Number of sample transactions to generate")
	// delay spaces out submissions so live dashboards show a steady stream
	delay = flag.Duration("delay", 0, "Delay between submissions (0 for none)")
)

// Sample value pools for generated transactions
var (
	currencies = []string{"USD", "EUR", "GBP", "JPY", "AUD"}
	regions    = []string{"North America", "Europe", "Asia Pacific", "Latin America", "Middle East"}
	salesReps  = []string{"John Smith", "Emma Wilson", "Carlos Rodriguez", "Sarah Chen", "Michael Brown"}
	companies  = []string{"Acme", "Globex", "Initech", "Umbrella", "Stark Industries", "Wayne Enterprises"}
)

// createSaleRequest mirrors the ingestion endpoint's request body.
type createSaleRequest struct {
	Date         time.Time       `json:"date"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	SalesRep     string          `json:"sales_rep"`
	Region       string          `json:"region"`
}

func main() {
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.InfoLevel).With().Timestamp().Logger()

	if *count <= 0 {
		log.Fatal().Int("count", *count).Msg("count must be greater than 0")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	endpoint := *baseURL + "/api/sales"

	log.Info().Str("endpoint", endpoint).Int("count", *count).Msg("seeding sample transactions")

	ok := 0
	for i := 0; i < *count; i++ {
		req := randomSale()
		if err := submit(client, endpoint, req); err != nil {
			log.Error().Err(err).Str("customer", req.CustomerName).Msg("failed to submit transaction")
			continue
		}
		ok++

		if *delay > 0 {
			time.Sleep(*delay)
		}
	}

	log.Info().Int("submitted", ok).Int("failed", *count-ok).Msg("seeding complete")
}

// randomSale builds one randomized transaction dated within the last 30 days
// with an amount between 100 and 10000 in a supported currency.
func randomSale() createSaleRequest {
	amount := decimal.NewFromFloat(100 + rand.Float64()*9900).Round(2)
	date := time.Now().UTC().Add(-time.Duration(rand.Int63n(int64(30 * 24 * time.Hour))))

	return createSaleRequest{
		Date:         date,
		CustomerName: fmt.Sprintf("%s %s", companies[rand.Intn(len(companies))], uuid.NewString()[:8]),
		Amount:       amount,
		Currency:     currencies[rand.Intn(len(currencies))],
		SalesRep:     salesReps[rand.Intn(len(salesReps))],
		Region:       regions[rand.Intn(len(regions))],
	}
}

// submit POSTs one transaction to the ingestion endpoint and verifies the
// server accepted it.
func submit(client *http.Client, endpoint string, sale createSaleRequest) error {
	body, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	return nil
}
