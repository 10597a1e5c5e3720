package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storebot/internal/models"
	"storebot/internal/notify"
	"storebot/internal/util"
)

// LedgerService handles registration, balance queries and every credit path
// into the ledger: topups, point conversion and administrative adjustments.
type LedgerService struct {
	ledger       Ledger
	gateway      notify.Gateway
	announcer    Announcer
	exchangeRate int
	logger       *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(ledger Ledger, gateway notify.Gateway, announcer Announcer, exchangeRate int) *LedgerService {
	return &LedgerService{
		ledger:       ledger,
		gateway:      gateway,
		announcer:    announcer,
		exchangeRate: exchangeRate,
		logger:       util.GetLogger(),
	}
}

// Register creates or renames the account for a user. The chosen growid is
// normalized and must not belong to someone else.
func (ls *LedgerService) Register(ctx context.Context, userID int64, rawName string) (*models.Account, bool, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.Register")
	defer span.End()

	growid := NormalizeGrowID(rawName)
	if growid == "" {
		return nil, false, models.ErrInvalidGrowID
	}

	if other, err := ls.ledger.GetAccountByGrowID(ctx, growid); err == nil && other.UserID != userID {
		return nil, false, models.ErrGrowIDTaken
	}

	existing, err := ls.ledger.GetAccountByUserID(ctx, userID)
	switch {
	case err == nil:
		if existing.GrowID == growid {
			return existing, false, nil
		}
		if err := ls.ledger.RenameAccount(ctx, userID, growid); err != nil {
			return nil, false, err
		}
		existing.GrowID = growid
		ls.logger.Info("GrowID updated",
			zap.Int64("user_id", userID),
			zap.String("growid", growid))
		return existing, false, nil
	case err == models.ErrNotRegistered:
		acc, err := ls.ledger.CreateAccount(ctx, userID, growid)
		if err != nil {
			return nil, false, err
		}
		ls.logger.Info("Account registered",
			zap.Int64("user_id", userID),
			zap.String("growid", growid))
		return acc, true, nil
	default:
		return nil, false, err
	}
}

// Profile returns the account for a user id
func (ls *LedgerService) Profile(ctx context.Context, userID int64) (*models.Account, error) {
	return ls.ledger.GetAccountByUserID(ctx, userID)
}

// ProfileByGrowID returns the account for a growid
func (ls *LedgerService) ProfileByGrowID(ctx context.Context, growid string) (*models.Account, error) {
	return ls.ledger.GetAccountByGrowID(ctx, NormalizeGrowID(growid))
}

// AdjustBalance applies an administrative signed delta to an account,
// addressed by growid. The result may never go negative.
func (ls *LedgerService) AdjustBalance(ctx context.Context, growid string, delta int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.AdjustBalance")
	defer span.End()

	if delta == 0 {
		return 0, models.ErrInvalidAmount
	}
	g := NormalizeGrowID(growid)
	if g == "" {
		return 0, models.ErrInvalidGrowID
	}

	balance, err := ls.ledger.AdjustBalanceByGrowID(ctx, g, delta)
	if err != nil {
		return 0, err
	}

	ls.logger.Info("Balance adjusted",
		zap.String("growid", g),
		zap.Int64("delta", delta),
		zap.Int64("balance", balance))
	return balance, nil
}

// RedeemPoints converts the accumulated purchase points into balance at the
// configured exchange rate. Whole multiples are credited, the remainder stays
// in the accumulator.
func (ls *LedgerService) RedeemPoints(ctx context.Context, userID int64) (wlGained, pointsLeft int64, err error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.RedeemPoints")
	defer span.End()

	wlGained, pointsLeft, err = ls.ledger.AdjustPoints(ctx, userID, 0, ls.exchangeRate)
	if err != nil {
		return 0, 0, err
	}

	ls.logger.Info("Points redeemed",
		zap.Int64("user_id", userID),
		zap.Int64("wl_gained", wlGained),
		zap.Int64("points_left", pointsLeft))
	return wlGained, pointsLeft, nil
}

// AwardPoints grants points to an account by growid, converting whole
// multiples on the spot. Used by administrative promotions.
func (ls *LedgerService) AwardPoints(ctx context.Context, growid string, delta int64) (wlGained, pointsLeft int64, err error) {
	if delta <= 0 {
		return 0, 0, models.ErrInvalidAmount
	}
	acc, err := ls.ledger.GetAccountByGrowID(ctx, NormalizeGrowID(growid))
	if err != nil {
		return 0, 0, err
	}
	return ls.ledger.AdjustPoints(ctx, acc.UserID, delta, ls.exchangeRate)
}

// Topup credits a cleared deposit to a registered growid. Unregistered
// growids are rejected: deposits never create accounts.
func (ls *LedgerService) Topup(ctx context.Context, rawGrowID string, amount int64) (*models.Account, int64, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.Topup")
	defer span.End()

	if amount <= 0 {
		return nil, 0, models.ErrInvalidAmount
	}
	growid := NormalizeGrowID(rawGrowID)
	if growid == "" {
		return nil, 0, models.ErrInvalidGrowID
	}

	acc, err := ls.ledger.GetAccountByGrowID(ctx, growid)
	if err != nil {
		return nil, 0, err
	}

	balance, err := ls.ledger.AdjustBalanceByGrowID(ctx, growid, amount)
	if err != nil {
		return nil, 0, err
	}

	util.TopupsCreditedTotal.Inc()
	ls.logger.Info("Topup credited",
		zap.String("growid", growid),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance))

	// Confirmation DM and announcement are best-effort: the credit stands
	// whether or not either lands.
	dm := fmt.Sprintf(
		"✅ Topup credited for GrowID %s\n➕ Amount : %s WL\nBalance now : %s WL",
		growid, util.FormatWL(amount), util.FormatWL(balance))
	if err := ls.gateway.SendDirect(ctx, acc.UserID, dm); err != nil {
		util.NotificationFailuresTotal.WithLabelValues("topup").Inc()
		ls.logger.Warn("Topup confirmation DM failed", zap.Error(err))
	}

	event := &models.TopupCreditedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTopupCredited,
			Timestamp: time.Now(),
		},
		UserID:     acc.UserID,
		GrowID:     growid,
		Amount:     amount,
		NewBalance: balance,
	}
	if err := ls.announcer.PublishTopupCredited(ctx, event); err != nil {
		ls.logger.Warn("Failed to publish TopupCredited event", zap.Error(err))
	}

	return acc, balance, nil
}

// Leaderboard returns the top balances, richest first
func (ls *LedgerService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return ls.ledger.TopBalances(ctx, limit)
}
