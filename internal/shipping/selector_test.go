package shipping_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pasar-checkout/internal/cart"
	"github.com/noah-isme/pasar-checkout/internal/money"
	"github.com/noah-isme/pasar-checkout/internal/obs"
	"github.com/noah-isme/pasar-checkout/internal/shipping"
)

func snapshot(t *testing.T, stores ...string) cart.Snapshot {
	t.Helper()
	lines := make([]cart.Line, 0, len(stores))
	for i, store := range stores {
		l, err := cart.NewLine("", store, "item", money.MustNew(int64(10_000*(i+1)), "IDR"), 1, 10)
		require.NoError(t, err)
		lines = append(lines, l)
	}
	snap, err := cart.NewSnapshot(lines)
	require.NoError(t, err)
	return snap
}

func TestSelectRejectsUnknownOption(t *testing.T) {
	snap := snapshot(t, "store-a")
	catalog := shipping.NewCatalog([]shipping.Option{
		{ID: "reg", StoreID: "store-a", Price: money.MustNew(15_000, "IDR"), ETA: "2-3"},
	})
	sel := shipping.Selector{Catalog: catalog}

	_, err := sel.Select(snap, "store-a", "bogus")
	require.True(t, errors.Is(err, shipping.ErrUnknownShippingOption))

	// The snapshot is untouched on rejection.
	g, _ := snap.Group("store-a")
	require.Empty(t, g.ShippingOptionID)
}

func TestSelectRecordsAndReplaces(t *testing.T) {
	snap := snapshot(t, "store-a")
	catalog := shipping.NewCatalog([]shipping.Option{
		{ID: "reg", StoreID: "store-a", Price: money.MustNew(15_000, "IDR")},
		{ID: "yes", StoreID: "store-a", Price: money.MustNew(30_000, "IDR")},
	})
	sel := shipping.Selector{Catalog: catalog}

	next, err := sel.Select(snap, "store-a", "reg")
	require.NoError(t, err)
	next, err = sel.Select(next, "store-a", "yes")
	require.NoError(t, err)

	g, _ := next.Group("store-a")
	require.Equal(t, "yes", g.ShippingOptionID)
}

func TestIsComplete(t *testing.T) {
	snap := snapshot(t, "store-a", "store-b")
	catalog := shipping.NewCatalog([]shipping.Option{
		{ID: "a-reg", StoreID: "store-a", Price: money.MustNew(15_000, "IDR")},
		{ID: "b-reg", StoreID: "store-b", Price: money.MustNew(25_000, "IDR")},
	})
	sel := shipping.Selector{Catalog: catalog}

	require.False(t, sel.IsComplete(snap))

	next, err := sel.Select(snap, "store-a", "a-reg")
	require.NoError(t, err)
	require.False(t, sel.IsComplete(next))

	next, err = sel.Select(next, "store-b", "b-reg")
	require.NoError(t, err)
	require.True(t, sel.IsComplete(next))
}

func TestCatalogResolve(t *testing.T) {
	catalog := shipping.NewCatalog([]shipping.Option{
		{ID: "reg", StoreID: "store-a", Service: "REG", Price: money.MustNew(15_000, "IDR")},
		{ID: "yes", StoreID: "store-a", Service: "YES", Price: money.MustNew(30_000, "IDR")},
	})
	opt, ok := catalog.Resolve("store-a", "yes")
	require.True(t, ok)
	require.Equal(t, "YES", opt.Service)

	_, ok = catalog.Resolve("store-b", "yes")
	require.False(t, ok)

	options := catalog.OptionsFor("store-a")
	require.Len(t, options, 2)
	require.Equal(t, "reg", options[0].ID, "catalog must preserve source order")
}

func TestCachedSourceServesFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	obs.MustRegisterDomainMetrics("pasar", prometheus.NewRegistry())
	hitsBefore := testutil.ToFloat64(obs.RateCacheHits.WithLabelValues("hit"))
	missesBefore := testutil.ToFloat64(obs.RateCacheHits.WithLabelValues("miss"))

	counting := &countingSource{next: shipping.MockSource{}}
	cached := shipping.CachedSource{Next: counting, Client: client, TTL: time.Minute}

	ctx := context.Background()
	first, err := cached.OptionsFor(ctx, "store-a", "BDG")
	require.NoError(t, err)
	second, err := cached.OptionsFor(ctx, "store-a", "BDG")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, counting.calls, "second read must come from cache")

	hits := testutil.ToFloat64(obs.RateCacheHits.WithLabelValues("hit")) - hitsBefore
	misses := testutil.ToFloat64(obs.RateCacheHits.WithLabelValues("miss")) - missesBefore
	require.Equal(t, float64(1), misses, "first read misses the cache")
	require.Equal(t, float64(1), hits, "second read hits the cache")
}

type countingSource struct {
	next  shipping.RateSource
	calls int
}

func (c *countingSource) OptionsFor(ctx context.Context, storeID, destination string) ([]shipping.Option, error) {
	c.calls++
	return c.next.OptionsFor(ctx, storeID, destination)
}
