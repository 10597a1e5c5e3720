package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storebot/internal/models"
	"storebot/internal/notify"
	"storebot/internal/util"
)

// PreorderService records prepaid deferred demand. Pre-orders are debited up
// front at the current price; the allocation scheduler serves them FIFO as
// stock arrives.
type PreorderService struct {
	ledger    Ledger
	inventory Inventory
	preorders Preorders
	gateway   notify.Gateway
	cap       int
	logger    *zap.Logger
}

// NewPreorderService creates a new preorder service
func NewPreorderService(
	ledger Ledger,
	inventory Inventory,
	preorders Preorders,
	gateway notify.Gateway,
	preorderCap int,
) *PreorderService {
	return &PreorderService{
		ledger:    ledger,
		inventory: inventory,
		preorders: preorders,
		gateway:   gateway,
		cap:       preorderCap,
		logger:    util.GetLogger(),
	}
}

// Ticket reports an accepted preorder back to the caller.
type Ticket struct {
	PreorderID    int64 `json:"preorder_id"`
	QueuePosition int   `json:"queue_position"`
	Amount        int   `json:"amount"`
	Total         int64 `json:"total"`
	NewBalance    int64 `json:"new_balance"`
}

// Enqueue records a prepaid preorder for the given user.
func (ps *PreorderService) Enqueue(ctx context.Context, userID int64, code string, amount int) (*Ticket, error) {
	ctx, span := util.StartSpan(ctx, "PreorderService.Enqueue")
	defer span.End()

	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	acc, err := ps.ledger.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := ps.inventory.GetProduct(ctx, code)
	if err != nil {
		return nil, err
	}

	// Early rejection on a stale read; the authoritative cap check lives
	// inside the enqueue transaction.
	waiting, err := ps.preorders.WaitingTotal(ctx, userID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to read waiting total: %w", err)
	}
	if waiting+amount > ps.cap {
		return nil, models.ErrPreorderCapExceeded
	}

	total := product.Price * int64(amount)
	if acc.Balance < total {
		return nil, models.ErrInsufficientFunds
	}

	// Prepaid: debit and waiting row land together or not at all.
	poID, err := ps.preorders.EnqueuePreorder(ctx, userID, acc.GrowID, code, amount, total, ps.cap)
	if err != nil {
		return nil, err
	}

	pos, err := ps.preorders.QueuePosition(ctx, poID)
	if err != nil {
		ps.logger.Warn("Failed to compute queue position", zap.Error(err))
		pos = 0
	}

	// The confirmation DM is mandatory: a recipient the gateway cannot
	// reach now will not be reachable at fulfillment time either, so the
	// preorder is cancelled on the spot.
	dm := fmt.Sprintf(
		"📦 Pre Order Recorded\n--------------------------\nProduct : %s\nAmount  : %d\nStatus  : waiting for stock\nQueue   : #%d",
		code, amount, pos)
	if err := ps.gateway.SendDirect(ctx, userID, dm); err != nil {
		util.NotificationFailuresTotal.WithLabelValues("preorder_confirm").Inc()
		util.PreordersCancelledTotal.WithLabelValues("dm_failed").Inc()
		if cancelErr := ps.preorders.CancelPreorder(ctx, poID); cancelErr != nil {
			ps.logger.Error("Failed to cancel undeliverable preorder",
				zap.Int64("preorder_id", poID),
				zap.Error(cancelErr))
		}
		return nil, models.ErrNotificationFailed
	}

	util.PreordersEnqueuedTotal.Inc()
	ps.logger.Info("Preorder enqueued",
		zap.Int64("preorder_id", poID),
		zap.Int64("user_id", userID),
		zap.String("code", code),
		zap.Int("amount", amount),
		zap.Int("queue_position", pos))

	return &Ticket{
		PreorderID:    poID,
		QueuePosition: pos,
		Amount:        amount,
		Total:         total,
		NewBalance:    acc.Balance - total,
	}, nil
}

// Status returns a preorder with its live queue position. Position is zero
// for rows no longer waiting.
func (ps *PreorderService) Status(ctx context.Context, preorderID int64) (*models.Preorder, int, error) {
	po, err := ps.preorders.GetPreorder(ctx, preorderID)
	if err != nil {
		return nil, 0, err
	}
	if po.Status != models.PreorderStatusWaiting {
		return po, 0, nil
	}
	pos, err := ps.preorders.QueuePosition(ctx, preorderID)
	if err != nil {
		return nil, 0, err
	}
	return po, pos, nil
}
