package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_HydratesOncePerSession(t *testing.T) {
	ctx := context.Background()
	snaps := newFakeSnapshots()
	snaps.data["cart:s1"] = []byte(`{"items":[{"productId":"p1","size":"M","price":10,"quantity":3}]}`)
	reg := NewRegistry(snaps, logger.Discard())

	var wg sync.WaitGroup
	got := make([]*Store, 50)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.Get(ctx, "s1")
		}(i)
	}
	wg.Wait()

	for _, st := range got {
		assert.Same(t, got[0], st)
	}
	assert.Equal(t, int32(1), snaps.loads.Load())
	assert.Equal(t, 3, got[0].Snapshot().TotalItems)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	snaps := newFakeSnapshots()
	reg := NewRegistry(snaps, logger.Discard())

	_, err := reg.Get(ctx, "a").AddItem(ctx, product("p1", 100), "M", 1)
	require.NoError(t, err)

	assert.True(t, reg.Get(ctx, "b").Snapshot().IsEmpty())
	assert.Equal(t, "cart:a", reg.Get(ctx, "a").Key())
}

func TestRegistry_DropRehydratesFromStorage(t *testing.T) {
	ctx := context.Background()
	snaps := newFakeSnapshots()
	reg := NewRegistry(snaps, logger.Discard())

	first := reg.Get(ctx, "a")
	_, err := first.AddItem(ctx, product("p1", 100), "M", 2)
	require.NoError(t, err)

	reg.Drop("a")
	second := reg.Get(ctx, "a")

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, second.Snapshot().TotalItems)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "₹1500.00", FormatCurrency(decimal.NewFromInt(1500)))
	assert.Equal(t, "₹0.50", FormatCurrency(decimal.RequireFromString("0.5")))

	c := Reduce(empty(), AddAction(product("p1", 500), "M", 2))
	c = Reduce(c, AddAction(product("p1", 500), "L", 1))
	sum := Summarize(c)

	assert.Equal(t, 3, sum.TotalItems)
	assert.Equal(t, "₹1500.00", FormatCurrency(sum.Subtotal))
	assert.Equal(t, "₹120.00", FormatCurrency(sum.Tax))
	assert.Equal(t, "₹1620.00", FormatCurrency(sum.Total))
}

func TestRegistry_StorageReadFailureKeepsSavedCart(t *testing.T) {
	ctx := context.Background()
	snaps := newFakeSnapshots()
	snaps.data["cart:s1"] = []byte(`{"items":[{"productId":"p1","size":"M","price":10,"quantity":1},{"productId":"p2","size":"L","price":20,"quantity":1}]}`)
	reg := NewRegistry(snaps, logger.Discard())

	snaps.setLoadErr(errors.New("connection reset"))
	degraded := reg.Get(ctx, "s1")
	assert.True(t, degraded.Snapshot().IsEmpty())
	assert.Zero(t, reg.Len())

	_, err := degraded.AddItem(ctx, product("p3", 30), "S", 1)
	require.NoError(t, err)
	assert.Zero(t, snaps.saves.Load())
	assert.ErrorIs(t, degraded.Flush(ctx), ErrStorageUnread)
	assert.Len(t, snaps.stored(t, "cart:s1").Items, 2)

	snaps.setLoadErr(nil)
	st := reg.Get(ctx, "s1")
	assert.NotSame(t, degraded, st)
	assert.Equal(t, 2, st.Snapshot().TotalItems)
	assert.Equal(t, 1, reg.Len())

	_, err = st.AddItem(ctx, product("p3", 30), "S", 1)
	require.NoError(t, err)
	assert.Len(t, snaps.stored(t, "cart:s1").Items, 3)
}
