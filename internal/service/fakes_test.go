package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storebot/internal/models"
)

// memStore is an in-memory stand-in for *store.Store covering the Ledger,
// Inventory, Orders and Preorders interfaces.
type memStore struct {
	accounts  map[int64]*models.Account
	products  map[string]*models.Product
	items     map[string][]models.StockItem
	preorders []*models.Preorder
	txns      map[int64]*models.Transaction
	txnItems  map[int64][]models.TransactionItem

	nextItemID int64
	nextPoID   int64
	nextTxnID  int64

	// afterTake runs between the reserve read and the commit, to simulate a
	// concurrent consumer.
	afterTake func()
	// afterWaitingTotal runs between the caller's cap pre-check and the
	// enqueue, to simulate a concurrent enqueue.
	afterWaitingTotal func()
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int64]*models.Account),
		products: make(map[string]*models.Product),
		items:    make(map[string][]models.StockItem),
		txns:     make(map[int64]*models.Transaction),
		txnItems: make(map[int64][]models.TransactionItem),
	}
}

func (m *memStore) seedAccount(userID int64, growid string, balance, points int64) *models.Account {
	acc := &models.Account{
		ID:        userID,
		UserID:    userID,
		GrowID:    growid,
		Balance:   balance,
		Points:    points,
		CreatedAt: time.Now(),
	}
	m.accounts[userID] = acc
	return acc
}

func (m *memStore) seedProduct(code, title string, price int64, payloads ...string) {
	m.products[code] = &models.Product{Code: code, Title: title, Price: price, CreatedAt: time.Now()}
	for _, p := range payloads {
		m.nextItemID++
		m.items[code] = append(m.items[code], models.StockItem{ID: m.nextItemID, Code: code, Payload: p})
	}
}

func (m *memStore) seedPreorder(userID int64, growid, code string, amount int) *models.Preorder {
	m.nextPoID++
	po := &models.Preorder{
		ID:        m.nextPoID,
		UserID:    userID,
		GrowID:    growid,
		Code:      code,
		Amount:    amount,
		Status:    models.PreorderStatusWaiting,
		CreatedAt: time.Now(),
	}
	m.preorders = append(m.preorders, po)
	return po
}

// Ledger

func (m *memStore) GetAccountByUserID(_ context.Context, userID int64) (*models.Account, error) {
	acc, ok := m.accounts[userID]
	if !ok {
		return nil, models.ErrNotRegistered
	}
	cp := *acc
	return &cp, nil
}

func (m *memStore) GetAccountByGrowID(_ context.Context, growid string) (*models.Account, error) {
	for _, acc := range m.accounts {
		if acc.GrowID == growid {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, models.ErrNotRegistered
}

func (m *memStore) CreateAccount(_ context.Context, userID int64, growid string) (*models.Account, error) {
	for _, acc := range m.accounts {
		if acc.GrowID == growid {
			return nil, models.ErrGrowIDTaken
		}
	}
	return m.seedAccount(userID, growid, 0, 0), nil
}

func (m *memStore) RenameAccount(_ context.Context, userID int64, growid string) error {
	acc, ok := m.accounts[userID]
	if !ok {
		return models.ErrNotRegistered
	}
	acc.GrowID = growid
	return nil
}

func (m *memStore) AdjustBalance(_ context.Context, userID, delta int64) (int64, error) {
	acc, ok := m.accounts[userID]
	if !ok {
		return 0, models.ErrNotRegistered
	}
	if acc.Balance+delta < 0 {
		return 0, models.ErrInsufficientFunds
	}
	acc.Balance += delta
	return acc.Balance, nil
}

func (m *memStore) AdjustBalanceByGrowID(ctx context.Context, growid string, delta int64) (int64, error) {
	for _, acc := range m.accounts {
		if acc.GrowID == growid {
			return m.AdjustBalance(ctx, acc.UserID, delta)
		}
	}
	return 0, models.ErrNotRegistered
}

func (m *memStore) AdjustPoints(_ context.Context, userID, delta int64, rate int) (int64, int64, error) {
	acc, ok := m.accounts[userID]
	if !ok {
		return 0, 0, models.ErrNotRegistered
	}
	accrued := acc.Points + delta
	wlGained := accrued / int64(rate)
	acc.Points = accrued % int64(rate)
	acc.Balance += wlGained
	return wlGained, acc.Points, nil
}

func (m *memStore) TopBalances(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	entries := make([]models.LeaderboardEntry, 0, len(m.accounts))
	for _, acc := range m.accounts {
		entries = append(entries, models.LeaderboardEntry{GrowID: acc.GrowID, Balance: acc.Balance})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Balance > entries[j].Balance })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Inventory

func (m *memStore) GetProduct(_ context.Context, code string) (*models.Product, error) {
	p, ok := m.products[code]
	if !ok {
		return nil, models.ErrInvalidProduct
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateProduct(_ context.Context, code, title string) error {
	if _, ok := m.products[code]; ok {
		return models.ErrProductExists
	}
	m.products[code] = &models.Product{Code: code, Title: title, CreatedAt: time.Now()}
	return nil
}

func (m *memStore) SetPrice(_ context.Context, code string, price int64) error {
	p, ok := m.products[code]
	if !ok {
		return models.ErrInvalidProduct
	}
	p.Price = price
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, code string) (int, error) {
	if _, ok := m.products[code]; !ok {
		return 0, models.ErrInvalidProduct
	}
	removed := len(m.items[code])
	delete(m.products, code)
	delete(m.items, code)
	return removed, nil
}

func (m *memStore) CountItems(_ context.Context, code string) (int, error) {
	return len(m.items[code]), nil
}

func (m *memStore) TakeItems(_ context.Context, code string, n int) ([]models.StockItem, error) {
	pool := m.items[code]
	if len(pool) < n {
		return nil, models.ErrInsufficientStock
	}
	out := make([]models.StockItem, n)
	copy(out, pool[:n])
	if m.afterTake != nil {
		m.afterTake()
	}
	return out, nil
}

func (m *memStore) AddItems(_ context.Context, code string, payloads []string) (int, error) {
	seen := make(map[string]bool, len(m.items[code]))
	for _, item := range m.items[code] {
		seen[item.Payload] = true
	}
	added := 0
	for _, p := range payloads {
		if seen[p] {
			continue
		}
		seen[p] = true
		m.nextItemID++
		m.items[code] = append(m.items[code], models.StockItem{ID: m.nextItemID, Code: code, Payload: p})
		added++
	}
	return added, nil
}

func (m *memStore) ListProducts(_ context.Context) ([]models.ProductSummary, error) {
	out := make([]models.ProductSummary, 0, len(m.products))
	for code, p := range m.products {
		out = append(out, models.ProductSummary{
			Code:  code,
			Title: p.Title,
			Count: len(m.items[code]),
			Price: p.Price,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memStore) deleteItems(code string, items []models.StockItem) int {
	ids := make(map[int64]bool, len(items))
	for _, it := range items {
		ids[it.ID] = true
	}
	kept := m.items[code][:0]
	deleted := 0
	for _, it := range m.items[code] {
		if ids[it.ID] {
			deleted++
			continue
		}
		kept = append(kept, it)
	}
	m.items[code] = kept
	return deleted
}

func (m *memStore) recordTransaction(userID int64, code string, items []models.StockItem, unitPrice int64) int64 {
	m.nextTxnID++
	m.txns[m.nextTxnID] = &models.Transaction{
		ID:        m.nextTxnID,
		UserID:    userID,
		Code:      code,
		Quantity:  len(items),
		UnitPrice: unitPrice,
		CreatedAt: time.Now(),
	}
	for _, it := range items {
		m.txnItems[m.nextTxnID] = append(m.txnItems[m.nextTxnID], models.TransactionItem{
			TransactionID: m.nextTxnID,
			Payload:       it.Payload,
		})
	}
	return m.nextTxnID
}

// Orders

func (m *memStore) CommitPurchase(_ context.Context, commit models.PurchaseCommit) (*models.PurchaseResult, error) {
	acc, ok := m.accounts[commit.UserID]
	if !ok {
		return nil, models.ErrNotRegistered
	}
	if acc.Balance-commit.Debit < 0 {
		return nil, models.ErrInsufficientFunds
	}

	if deleted := m.deleteItems(commit.Code, commit.Items); deleted < len(commit.Items) {
		return nil, models.ErrStockChanged
	}

	acc.Balance -= commit.Debit
	acc.Points += commit.AccruePoints
	txnID := m.recordTransaction(commit.UserID, commit.Code, commit.Items, commit.UnitPrice)

	return &models.PurchaseResult{
		TransactionID: txnID,
		NewBalance:    acc.Balance,
		PointsTotal:   acc.Points,
	}, nil
}

func (m *memStore) CommitAllocation(_ context.Context, commit models.AllocationCommit) (int64, error) {
	if deleted := m.deleteItems(commit.Code, commit.Items); deleted < len(commit.Items) {
		return 0, models.ErrStockChanged
	}
	txnID := m.recordTransaction(commit.UserID, commit.Code, commit.Items, commit.UnitPrice)
	for _, po := range m.preorders {
		if po.ID != commit.PreorderID {
			continue
		}
		if commit.Remaining == 0 {
			po.Status = models.PreorderStatusSuccess
		} else {
			po.Amount = commit.Remaining
		}
	}
	return txnID, nil
}

func (m *memStore) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	txn, ok := m.txns[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *txn
	return &cp, nil
}

func (m *memStore) GetTransactionItems(_ context.Context, txnID int64) ([]models.TransactionItem, error) {
	return m.txnItems[txnID], nil
}

func (m *memStore) RevenueReport(_ context.Context, period string) (*models.RevenueSummary, error) {
	var total int64
	for _, txn := range m.txns {
		total += txn.UnitPrice * int64(txn.Quantity)
	}
	return &models.RevenueSummary{Period: period, Total: total, Changed: total}, nil
}

// Preorders

func (m *memStore) EnqueuePreorder(ctx context.Context, userID int64, growid, code string, amount int, debit int64, cap int) (int64, error) {
	// cap guard against the live waiting sum, like the conditional INSERT
	waiting, _ := m.WaitingTotal(ctx, userID, code)
	if waiting+amount > cap {
		return 0, models.ErrPreorderCapExceeded
	}
	if _, err := m.AdjustBalance(ctx, userID, -debit); err != nil {
		return 0, err
	}
	po := m.seedPreorder(userID, growid, code, amount)
	return po.ID, nil
}

func (m *memStore) GetPreorder(_ context.Context, id int64) (*models.Preorder, error) {
	for _, po := range m.preorders {
		if po.ID == id {
			cp := *po
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) WaitingTotal(_ context.Context, userID int64, code string) (int, error) {
	total := 0
	for _, po := range m.preorders {
		if po.UserID == userID && po.Code == code && po.Status == models.PreorderStatusWaiting {
			total += po.Amount
		}
	}
	if m.afterWaitingTotal != nil {
		hook := m.afterWaitingTotal
		m.afterWaitingTotal = nil
		hook()
	}
	return total, nil
}

func (m *memStore) WaitingPreorders(_ context.Context, code string) ([]models.Preorder, error) {
	var out []models.Preorder
	for _, po := range m.preorders {
		if po.Code == code && po.Status == models.PreorderStatusWaiting {
			out = append(out, *po)
		}
	}
	return out, nil
}

func (m *memStore) DistinctWaitingCodes(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, po := range m.preorders {
		if po.Status == models.PreorderStatusWaiting && !seen[po.Code] {
			seen[po.Code] = true
			out = append(out, po.Code)
		}
	}
	return out, nil
}

func (m *memStore) QueuePosition(_ context.Context, preorderID int64) (int, error) {
	var target *models.Preorder
	for _, po := range m.preorders {
		if po.ID == preorderID {
			target = po
			break
		}
	}
	if target == nil {
		return 0, models.ErrNotFound
	}
	pos := 0
	for _, po := range m.preorders {
		if po.Code == target.Code && po.Status == models.PreorderStatusWaiting && po.ID <= target.ID {
			pos++
		}
	}
	return pos, nil
}

func (m *memStore) CancelPreorder(_ context.Context, preorderID int64) error {
	for _, po := range m.preorders {
		if po.ID == preorderID {
			po.Status = models.PreorderStatusCancelled
			return nil
		}
	}
	return models.ErrNotFound
}

// fakeGateway records DMs and can be told to fail, globally or per user.
type fakeGateway struct {
	sent     []string
	sentTo   []int64
	fail     bool
	failFor  map[int64]bool
	failOnce bool
}

func (g *fakeGateway) SendDirect(_ context.Context, userID int64, content string) error {
	if g.fail || g.failFor[userID] {
		if g.failOnce {
			g.fail = false
		}
		return errors.New("gateway unreachable")
	}
	g.sent = append(g.sent, content)
	g.sentTo = append(g.sentTo, userID)
	return nil
}

// fakeAnnouncer counts published events per type.
type fakeAnnouncer struct {
	sales      int
	fulfilled  int
	stockAdded int
	topups     int
	fail       bool
}

func (a *fakeAnnouncer) publish() error {
	if a.fail {
		return fmt.Errorf("broker down")
	}
	return nil
}

func (a *fakeAnnouncer) PublishSaleCompleted(context.Context, *models.SaleCompletedEvent) error {
	if err := a.publish(); err != nil {
		return err
	}
	a.sales++
	return nil
}

func (a *fakeAnnouncer) PublishPreorderFulfilled(context.Context, *models.PreorderFulfilledEvent) error {
	if err := a.publish(); err != nil {
		return err
	}
	a.fulfilled++
	return nil
}

func (a *fakeAnnouncer) PublishStockAdded(context.Context, *models.StockAddedEvent) error {
	if err := a.publish(); err != nil {
		return err
	}
	a.stockAdded++
	return nil
}

func (a *fakeAnnouncer) PublishTopupCredited(context.Context, *models.TopupCreditedEvent) error {
	if err := a.publish(); err != nil {
		return err
	}
	a.topups++
	return nil
}

// fakeCache mirrors stock counts in a map.
type fakeCache struct {
	counts map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: make(map[string]int)}
}

func (c *fakeCache) GetStockCount(_ context.Context, code string) (int, bool, error) {
	count, ok := c.counts[code]
	return count, ok, nil
}

func (c *fakeCache) SetStockCount(_ context.Context, code string, count int) error {
	c.counts[code] = count
	return nil
}

func (c *fakeCache) IncrStockCount(_ context.Context, code string, delta int) error {
	c.counts[code] += delta
	return nil
}

func (c *fakeCache) DeleteStockCount(_ context.Context, code string) error {
	delete(c.counts, code)
	return nil
}
