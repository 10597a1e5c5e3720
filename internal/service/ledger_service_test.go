package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storebot/internal/models"
)

func newLedgerFixture() (*memStore, *fakeGateway, *fakeAnnouncer, *LedgerService) {
	store := newMemStore()
	gateway := &fakeGateway{}
	announcer := &fakeAnnouncer{}
	svc := NewLedgerService(store, gateway, announcer, 5)
	return store, gateway, announcer, svc
}

func TestRegisterNewAccount(t *testing.T) {
	_, _, _, svc := newLedgerFixture()

	acc, created, err := svc.Register(context.Background(), 1, "Alice_99!")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice99", acc.GrowID)
	assert.Zero(t, acc.Balance)
}

func TestRegisterRenamesExistingAccount(t *testing.T) {
	store, _, _, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 500, 3)

	acc, created, err := svc.Register(context.Background(), 1, "AliceNew")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alicenew", acc.GrowID)
	// renaming keeps balance and points
	assert.Equal(t, int64(500), acc.Balance)
}

func TestRegisterSameNameIsNoop(t *testing.T) {
	store, _, _, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 500, 0)

	acc, created, err := svc.Register(context.Background(), 1, "ALICE")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice", acc.GrowID)
}

func TestRegisterRejectsTakenGrowID(t *testing.T) {
	store, _, _, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 0, 0)

	_, _, err := svc.Register(context.Background(), 2, "alice")
	assert.ErrorIs(t, err, models.ErrGrowIDTaken)
}

func TestRegisterRejectsEmptyAfterNormalization(t *testing.T) {
	_, _, _, svc := newLedgerFixture()

	_, _, err := svc.Register(context.Background(), 1, "!!! ???")
	assert.ErrorIs(t, err, models.ErrInvalidGrowID)
}

func TestTopupCreditsRegisteredGrowID(t *testing.T) {
	store, gateway, announcer, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 100, 0)

	acc, balance, err := svc.Topup(context.Background(), "Alice", 250)
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.UserID)
	assert.Equal(t, int64(350), balance)
	assert.Len(t, gateway.sent, 1)
	assert.Equal(t, 1, announcer.topups)
}

func TestTopupRejectsUnregisteredGrowID(t *testing.T) {
	_, gateway, _, svc := newLedgerFixture()

	_, _, err := svc.Topup(context.Background(), "nobody", 250)
	assert.ErrorIs(t, err, models.ErrNotRegistered)
	assert.Empty(t, gateway.sent)
}

func TestTopupStandsWhenDMFails(t *testing.T) {
	store, gateway, _, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 0, 0)
	gateway.fail = true

	_, balance, err := svc.Topup(context.Background(), "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestAdjustBalanceNeverGoesNegative(t *testing.T) {
	store, _, _, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 50, 0)

	_, err := svc.AdjustBalance(context.Background(), "alice", -100)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	balance, err := svc.AdjustBalance(context.Background(), "alice", -50)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestRedeemPointsConvertsWholeMultiples(t *testing.T) {
	store, _, _, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 100, 12)

	wlGained, pointsLeft, err := svc.RedeemPoints(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), wlGained)
	assert.Equal(t, int64(2), pointsLeft)

	acc, _ := store.GetAccountByUserID(context.Background(), 1)
	assert.Equal(t, int64(102), acc.Balance)
	assert.Equal(t, int64(2), acc.Points)

	// a second redeem with nothing to convert is a no-op
	wlGained, pointsLeft, err = svc.RedeemPoints(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, wlGained)
	assert.Equal(t, int64(2), pointsLeft)
}

func TestAwardPointsByGrowID(t *testing.T) {
	store, _, _, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 0, 4)

	wlGained, pointsLeft, err := svc.AwardPoints(context.Background(), "Alice", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(2), wlGained)
	assert.Equal(t, int64(0), pointsLeft)

	_, _, err = svc.AwardPoints(context.Background(), "alice", 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, _, err = svc.AwardPoints(context.Background(), "nobody", 5)
	assert.ErrorIs(t, err, models.ErrNotRegistered)
}

func TestLeaderboardRichestFirst(t *testing.T) {
	store, _, _, svc := newLedgerFixture()
	store.seedAccount(1, "alice", 100, 0)
	store.seedAccount(2, "bob", 300, 0)
	store.seedAccount(3, "carol", 200, 0)

	rows, err := svc.Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0].GrowID)
	assert.Equal(t, "carol", rows[1].GrowID)
}
