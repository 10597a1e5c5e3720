package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storebot/internal/models"
)

func newInventoryFixture() (*memStore, *fakeCache, *fakeAnnouncer, *InventoryService, *int) {
	store := newMemStore()
	cache := newFakeCache()
	announcer := &fakeAnnouncer{}
	wakeups := 0
	svc := NewInventoryService(store, cache, announcer, func() { wakeups++ })
	return store, cache, announcer, svc, &wakeups
}

func TestAddStockCreatesProductAndWakesScheduler(t *testing.T) {
	store, cache, announcer, svc, wakeups := newInventoryFixture()

	result, err := svc.AddStock(context.Background(), "DL", "Diamond Lock", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "dl", result.Code)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 2, result.Total)

	count, _ := store.CountItems(context.Background(), "dl")
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, cache.counts["dl"])
	assert.Equal(t, 1, announcer.stockAdded)
	assert.Equal(t, 1, *wakeups)
}

func TestAddStockDeduplicatesPayloads(t *testing.T) {
	store, _, _, svc, wakeups := newInventoryFixture()
	store.seedProduct("dl", "Diamond Lock", 50, "a")

	result, err := svc.AddStock(context.Background(), "dl", "", []string{"a", "b", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, *wakeups)
}

func TestAddStockWithoutTitleRequiresExistingProduct(t *testing.T) {
	_, _, _, svc, wakeups := newInventoryFixture()

	_, err := svc.AddStock(context.Background(), "dl", "", []string{"a"})
	assert.ErrorIs(t, err, models.ErrInvalidProduct)
	assert.Zero(t, *wakeups)
}

func TestAddStockValidation(t *testing.T) {
	_, _, _, svc, _ := newInventoryFixture()

	_, err := svc.AddStock(context.Background(), "???", "Junk", []string{"a"})
	assert.ErrorIs(t, err, models.ErrInvalidProduct)

	_, err = svc.AddStock(context.Background(), "dl", "Diamond Lock", nil)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestSetPriceRejectsNegative(t *testing.T) {
	store, _, _, svc, _ := newInventoryFixture()
	store.seedProduct("dl", "Diamond Lock", 50)

	assert.ErrorIs(t, svc.SetPrice(context.Background(), "dl", -1), models.ErrInvalidAmount)
	require.NoError(t, svc.SetPrice(context.Background(), "dl", 75))

	p, _ := store.GetProduct(context.Background(), "dl")
	assert.Equal(t, int64(75), p.Price)
}

func TestDeleteProductDropsItemsAndCache(t *testing.T) {
	store, cache, _, svc, _ := newInventoryFixture()
	store.seedProduct("dl", "Diamond Lock", 50, "a", "b", "c")
	cache.counts["dl"] = 3

	removed, err := svc.DeleteProduct(context.Background(), "dl")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, err = store.GetProduct(context.Background(), "dl")
	assert.ErrorIs(t, err, models.ErrInvalidProduct)
	_, ok := cache.counts["dl"]
	assert.False(t, ok)
}

func TestStockCountServedFromCache(t *testing.T) {
	store, cache, _, svc, _ := newInventoryFixture()
	store.seedProduct("dl", "Diamond Lock", 50, "a")
	// a mirror hit wins even when it disagrees with the database
	cache.counts["dl"] = 7

	count, err := svc.StockCount(context.Background(), "DL")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestStockCountMissFallsBackAndSeeds(t *testing.T) {
	store, cache, _, svc, _ := newInventoryFixture()
	store.seedProduct("dl", "Diamond Lock", 50, "a", "b")

	count, err := svc.StockCount(context.Background(), "dl")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, cache.counts["dl"])

	_, err = svc.StockCount(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrInvalidProduct)
}

func TestSyncStockCacheSeedsCounts(t *testing.T) {
	store, cache, _, svc, _ := newInventoryFixture()
	store.seedProduct("dl", "Diamond Lock", 50, "a", "b")
	store.seedProduct("bgl", "Blue Gem Lock", 5000)

	require.NoError(t, svc.SyncStockCache(context.Background()))
	assert.Equal(t, 2, cache.counts["dl"])
	assert.Equal(t, 0, cache.counts["bgl"])
}
