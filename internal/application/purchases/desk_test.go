package purchases

import (
	"context"
	"errors"
	"testing"
	"time"

	"energy-exchange/internal/application/backend"
	"energy-exchange/internal/application/listings"
	"energy-exchange/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDesk(t *testing.T) (*Desk, *listings.MemoryStore) {
	store := listings.NewMemoryStore()
	factory := func(mode backend.Mode) (backend.Backend, error) {
		switch mode {
		case backend.ModeSimulated:
			return backend.NewSimulated(store), nil
		case backend.ModeLive:
			return &fakeBackend{mode: backend.ModeLive, fn: func(context.Context, uuid.UUID) (*domain.Receipt, error) {
				return nil, domain.BackendFailure("ledger timeout")
			}}, nil
		}
		return nil, errors.New("unknown mode")
	}
	d, err := NewDesk(store, NewLocalGuard(), factory, backend.ModeSimulated)
	require.NoError(t, err)
	return d, store
}

func TestDesk_SetMode(t *testing.T) {
	d, _ := setupDesk(t)
	assert.Equal(t, backend.ModeSimulated, d.Mode())

	first := d.Orchestrator()
	require.NoError(t, d.SetMode(backend.ModeSimulated))
	assert.Same(t, first, d.Orchestrator())

	require.NoError(t, d.SetMode(backend.ModeLive))
	assert.Equal(t, backend.ModeLive, d.Mode())
	assert.NotSame(t, first, d.Orchestrator())

	assert.Error(t, d.SetMode("carrier-pigeon"))
	assert.Equal(t, backend.ModeLive, d.Mode())
}

func TestDesk_LiveFailureNotRetriedOnSimulated(t *testing.T) {
	d, store := setupDesk(t)
	ctx := context.Background()
	id, err := store.Add(ctx, domain.Listing{
		Source: domain.SourceSolar, Amount: decimal.NewFromInt(20), Price: decimal.RequireFromString("0.4"), Seller: "s",
	})
	require.NoError(t, err)

	require.NoError(t, d.SetMode(backend.ModeLive))
	a, err := d.Orchestrator().Purchase(ctx, id, "buyer-1")
	require.Error(t, err)
	assert.Equal(t, string(backend.ModeLive), a.Mode)

	l, _ := store.Get(ctx, id)
	assert.True(t, l.Available)

	require.NoError(t, d.SetMode(backend.ModeSimulated))
	a, err = d.Orchestrator().Purchase(ctx, id, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, string(backend.ModeSimulated), a.Mode)
	require.NotNil(t, a.Receipt)
	assert.Equal(t, string(backend.ModeSimulated), a.Receipt.Mode)
}

func TestDesk_SwitchAbandonsIdleAttempts(t *testing.T) {
	d, store := setupDesk(t)
	ctx := context.Background()
	id, err := store.Add(ctx, domain.Listing{
		Source: domain.SourceWind, Amount: decimal.NewFromInt(5), Price: decimal.NewFromInt(1), Seller: "s",
	})
	require.NoError(t, err)

	a, err := d.Orchestrator().Begin(ctx, id, "buyer-1")
	require.NoError(t, err)
	require.NoError(t, d.SetMode(backend.ModeLive))

	_, err = d.Orchestrator().Confirm(ctx, a.AttemptID)
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
}

func TestDesk_RunJanitor(t *testing.T) {
	d, store := setupDesk(t)
	ctx, cancel := context.WithCancel(context.Background())
	id, err := store.Add(ctx, domain.Listing{
		Source: domain.SourceHydro, Amount: decimal.NewFromInt(5), Price: decimal.NewFromInt(1), Seller: "s",
	})
	require.NoError(t, err)
	a, err := d.Orchestrator().Begin(ctx, id, "buyer-1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		d.RunJanitor(ctx, 5*time.Millisecond, time.Nanosecond)
		close(done)
	}()
	assert.Eventually(t, func() bool {
		_, err := d.Orchestrator().Attempt(a.AttemptID)
		return errors.Is(err, domain.ErrAttemptNotFound)
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
