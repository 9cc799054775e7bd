/*
Package main implements a WebSocket client for following the live sales stream.

This client connects to a sales analytics server, subscribes to the
/ws/sales endpoint, and logs each broadcast update: per-sale events with the
sales rep and region, and periodic snapshots of the running USD total. It
supports graceful shutdown via OS signals.

Usage:

	go run main.go -addr=ws://localhost:8080/ws/sales

The client will continuously receive and log sales updates until interrupted.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/upagupta2003/sales-analytics/internal/model"
	"github.com/upagupta2003/sales-analytics/internal/websocket"
)

// Command-line flags for configuring the client connection
var (
	// serverAddr specifies the WebSocket endpoint of the sales stream
	serverAddr = flag.String("addr", "ws://localhost:8080/ws/sales", "The sales stream WebSocket URL")
)

// main is the entry point of the sales stream client.
// It connects to the sales analytics server, subscribes to the live stream,
// and continuously receives and logs sales updates.
func main() {
	// Parse command-line flags
	flag.Parse()

	// Initialize structured logger with timestamp and info level
	log := zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	// Validate configuration before proceeding
	if err := validateConfig(); err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	// Create context for managing application lifecycle and cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	// This allows the client to properly close the connection when receiving
	// interrupt signals like Ctrl+C or SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	log.Info().Str("addr", *serverAddr).Msg("subscribing to sales stream")

	// Establish the WebSocket connection and start the stream
	client, err := websocket.NewClient(ctx, websocket.Config{
		Endpoint: *serverAddr,
		Handler:  decodeUpdate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect")
	}
	defer client.Close()

	// Main message receiving loop
	// Continuously receive and log sales updates until the stream ends
	// or the context is cancelled
	for update := range client.Updates {
		switch update.Type {
		case model.UpdateTypeNewSale:
			log.Info().
				Str("type", update.Type).
				Str("amount_usd", update.AmountUSD.StringFixed(2)).
				Str("sales_rep", update.SalesRep).
				Str("region", update.Region).
				Str("total_sales_usd", update.TotalSalesUSD.StringFixed(2)).
				Msg("received sale")
		default:
			log.Info().
				Str("type", update.Type).
				Str("total_sales_usd", update.TotalSalesUSD.StringFixed(2)).
				Msg("received snapshot")
		}
	}

	log.Info().Msg("stream has closed")
}

// decodeUpdate parses a raw stream frame into a sales update and forwards it
// to the consumer channel.
func decodeUpdate(data []byte, out chan<- model.SalesUpdate) error {
	var update model.SalesUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	out <- update
	return nil
}

// validateConfig performs validation of command-line configuration.
// It ensures that required parameters are properly set before the client
// attempts to connect to the server.
//
// Returns an error if any validation fails, nil otherwise.
func validateConfig() error {
	// Ensure server address is provided
	if *serverAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	return nil
}
