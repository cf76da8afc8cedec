package purchases

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"energy-exchange/internal/application/backend"
	"energy-exchange/internal/application/listings"
	"energy-exchange/internal/domain"
	"energy-exchange/internal/infrastructure/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gormStore(t *testing.T) listings.Store {
	db, err := database.Open("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &listings.GormStore{DB: db}
}

func TestPurchase_SimulatedRaceOnEveryStack(t *testing.T) {
	stacks := []struct {
		name  string
		setup func(t *testing.T) (listings.Store, Guard)
	}{
		{"memory+local", func(t *testing.T) (listings.Store, Guard) {
			return listings.NewMemoryStore(), NewLocalGuard()
		}},
		{"gorm+redis", func(t *testing.T) (listings.Store, Guard) {
			g, _ := setupRedisGuard(t)
			return gormStore(t), g
		}},
	}

	for _, tc := range stacks {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store, guard := tc.setup(t)
			id, err := store.Add(ctx, domain.Listing{
				Source:   domain.SourceSolar,
				Amount:   decimal.NewFromInt(20),
				Price:    decimal.RequireFromString("0.4"),
				Seller:   "seller-1",
				Location: "Austin, TX",
			})
			require.NoError(t, err)
			o := NewOrchestrator(store, guard, backend.NewSimulated(store))

			const n = 16
			var wg sync.WaitGroup
			var succeeded, lost atomic.Int32
			others := make(chan error, n)
			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := o.Purchase(ctx, id, "buyer")
					switch {
					case err == nil:
						succeeded.Add(1)
					case errors.Is(err, domain.ErrAlreadyLocked), errors.Is(err, domain.ErrAlreadyUnavailable):
						lost.Add(1)
					default:
						others <- err
					}
				}()
			}
			close(start)
			wg.Wait()
			close(others)

			for err := range others {
				t.Errorf("unexpected purchase error: %v", err)
			}
			assert.Equal(t, int32(1), succeeded.Load())
			assert.Equal(t, int32(n-1), lost.Load())

			_, err = o.Purchase(ctx, id, "late-buyer")
			assert.ErrorIs(t, err, domain.ErrAlreadyUnavailable)
			l, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.False(t, l.Available)
		})
	}
}
