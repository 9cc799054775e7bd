package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/upagupta2003/sales-analytics/internal/model"
	"github.com/upagupta2003/sales-analytics/internal/store"
)

// MockLedgerReader is a mock implementation of LedgerReader for testing.
type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) TotalConverted(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerReader) TotalsByRep(ctx context.Context) ([]model.DimensionTotal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DimensionTotal), args.Error(1)
}

func (m *MockLedgerReader) TotalsByRegion(ctx context.Context) ([]model.DimensionTotal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DimensionTotal), args.Error(1)
}

// newTestLedger configures a mock ledger with a known aggregate snapshot.
func newTestLedger() *MockLedgerReader {
	ledger := new(MockLedgerReader)
	ledger.On("TotalConverted", mock.Anything).Return(decimal.NewFromInt(1000), nil)
	ledger.On("TotalsByRep", mock.Anything).Return([]model.DimensionTotal{
		{Key: "A", TotalUSD: decimal.NewFromInt(600)},
		{Key: "B", TotalUSD: decimal.NewFromInt(400)},
	}, nil)
	ledger.On("TotalsByRegion", mock.Anything).Return([]model.DimensionTotal{
		{Key: "East", TotalUSD: decimal.NewFromInt(1000)},
	}, nil)
	return ledger
}

// newTestService builds a started service over a fresh store and dispatcher.
func newTestService(t *testing.T, ledger LedgerReader) *SalesService {
	t.Helper()

	svc := NewSalesService(store.NewAggregateStore(), ledger, NewDispatcher(DispatcherConfig{}))
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

// Test_SalesService_Start tests startup reconstruction from the ledger
func Test_SalesService_Start(t *testing.T) {
	ledger := newTestLedger()
	svc := newTestService(t, ledger)

	snapshot := svc.Metrics()
	assert.True(t, snapshot.TotalSalesUSD.Equal(decimal.NewFromInt(1000)),
		"Total should reflect the ledger sum")

	top, err := svc.TopReps(1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "A", top[0].Key)
	assert.True(t, top[0].TotalUSD.Equal(decimal.NewFromInt(600)))

	regions, err := svc.TopRegions(10)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "East", regions[0].Key)

	ledger.AssertExpectations(t)

	err = svc.Start(context.Background())
	require.Error(t, err, "Should reject a second start")
	assert.Contains(t, err.Error(), "already started")
}

// Test_SalesService_Start_ReconstructionFailure tests that a ledger failure is fatal
func Test_SalesService_Start_ReconstructionFailure(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockLedgerReader)
		description string
	}{
		{
			name: "Total query fails",
			setupMock: func(m *MockLedgerReader) {
				m.On("TotalConverted", mock.Anything).Return(decimal.Zero, errors.New("connection refused"))
			},
			description: "Should fail start on total query error",
		},
		{
			name: "Rep totals query fails",
			setupMock: func(m *MockLedgerReader) {
				m.On("TotalConverted", mock.Anything).Return(decimal.NewFromInt(10), nil)
				m.On("TotalsByRep", mock.Anything).Return(nil, errors.New("connection reset"))
			},
			description: "Should fail start on rep totals error",
		},
		{
			name: "Region totals query fails",
			setupMock: func(m *MockLedgerReader) {
				m.On("TotalConverted", mock.Anything).Return(decimal.NewFromInt(10), nil)
				m.On("TotalsByRep", mock.Anything).Return([]model.DimensionTotal{}, nil)
				m.On("TotalsByRegion", mock.Anything).Return(nil, errors.New("timeout"))
			},
			description: "Should fail start on region totals error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := new(MockLedgerReader)
			tt.setupMock(ledger)

			svc := NewSalesService(store.NewAggregateStore(), ledger, NewDispatcher(DispatcherConfig{}))
			err := svc.Start(context.Background())

			require.Error(t, err, tt.description)
			assert.Contains(t, err.Error(), "failed to reconstruct aggregates")
			assert.False(t, svc.started.Load(), "Service must not be marked started")

			// A failed start must keep the service unusable.
			assert.ErrorIs(t, svc.Record(context.Background(), model.Transaction{}), ErrNotStarted)
		})
	}
}

// Test_SalesService_Record tests the ingestion path ordering and broadcast
func Test_SalesService_Record(t *testing.T) {
	svc := newTestService(t, newTestLedger())

	sub, err := svc.Subscribe()
	require.NoError(t, err)
	settle()

	tx := model.Transaction{
		ConvertedAmountUSD: decimal.NewFromInt(500),
		SalesRep:           "B",
		Region:             "West",
	}
	require.NoError(t, svc.Record(context.Background(), tx))

	select {
	case update := <-sub.Updates():
		assert.Equal(t, model.UpdateTypeNewSale, update.Type)
		assert.Equal(t, "B", update.SalesRep)
		assert.Equal(t, "West", update.Region)
		assert.True(t, update.AmountUSD.Equal(decimal.NewFromInt(500)))
		// The broadcast total must already include the transaction.
		assert.True(t, update.TotalSalesUSD.Equal(decimal.NewFromInt(1500)),
			"Broadcast total should include the recorded sale, got %s", update.TotalSalesUSD)
	case <-time.After(time.Second):
		t.Fatal("no update was broadcast for the recorded sale")
	}

	// The query surface reflects the update as well.
	top, err := svc.TopReps(1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "B", top[0].Key, "B should lead after the new sale")
}

// Test_SalesService_Record_InvalidAmount tests that a failed increment
// surfaces to the caller and produces no broadcast
func Test_SalesService_Record_InvalidAmount(t *testing.T) {
	svc := newTestService(t, newTestLedger())

	sub, err := svc.Subscribe()
	require.NoError(t, err)
	settle()

	tx := model.Transaction{ConvertedAmountUSD: decimal.NewFromInt(-5)}
	err = svc.Record(context.Background(), tx)
	require.ErrorIs(t, err, store.ErrNegativeAmount, "Should surface the increment failure")

	select {
	case update := <-sub.Updates():
		t.Fatalf("no broadcast expected for a rejected transaction, got %+v", update)
	case <-time.After(100 * time.Millisecond):
	}

	assert.True(t, svc.Metrics().TotalSalesUSD.Equal(decimal.NewFromInt(1000)),
		"Store must be unchanged after a rejected transaction")
}

// Test_SalesService_Stop tests shutdown semantics
func Test_SalesService_Stop(t *testing.T) {
	svc := NewSalesService(store.NewAggregateStore(), newTestLedger(), NewDispatcher(DispatcherConfig{}))

	assert.ErrorIs(t, svc.Stop(), ErrNotStarted, "Should reject stop before start")

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop())

	assert.ErrorIs(t, svc.Record(context.Background(), model.Transaction{}), ErrNotStarted,
		"Should reject ingestion after stop")
}

// Test_SalesService_StopDuringStart tests that a stop racing a slow startup
// reconstruction still tears the service down cleanly
func Test_SalesService_StopDuringStart(t *testing.T) {
	release := make(chan struct{})

	ledger := new(MockLedgerReader)
	ledger.On("TotalConverted", mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return(decimal.Zero, nil)
	ledger.On("TotalsByRep", mock.Anything).Return(nil, nil).Maybe()
	ledger.On("TotalsByRegion", mock.Anything).Return(nil, nil).Maybe()

	svc := NewSalesService(store.NewAggregateStore(), ledger, NewDispatcher(DispatcherConfig{}))

	started := make(chan error, 1)
	go func() {
		started <- svc.Start(context.Background())
	}()

	// Stop returns ErrNotStarted until Start has flipped the state flag;
	// once it succeeds, Start is still blocked inside reconstruction.
	require.Eventually(t, func() bool {
		return svc.Stop() == nil
	}, time.Second, 5*time.Millisecond, "Stop should succeed while Start is in flight")

	close(release)
	<-started

	assert.ErrorIs(t, svc.Record(context.Background(), model.Transaction{}), ErrNotStarted,
		"Service must remain stopped after the racing stop")
}
