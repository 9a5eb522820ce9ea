//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/adapter"
	"xraymed-saas/internal/domain/ports/repository"
	"xraymed-saas/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// newTestPricing builds the two-tier plan table used across tests.
func newTestPricing() usecase.PricingResolver {
	doctor, _ := model.NewPlan("doctor", model.TierDoctor, 150, "plan_doctor_ref", map[model.BillingCadence]int64{
		model.CadenceMonthly: 9990,
		model.CadenceYearly:  99900,
	})
	premium, _ := model.NewPlan("premium", model.TierPremium, 500, "plan_premium_ref", map[model.BillingCadence]int64{
		model.CadenceMonthly: 29990,
		model.CadenceYearly:  299900,
	})
	return usecase.NewPricingResolver(map[string]*model.Plan{
		"doctor":  doctor,
		"premium": premium,
	})
}

// =============================
// Repositories
// =============================

// ---- Mock AccountRepository ----

type MockAccountRepo struct {
	mu       sync.Mutex
	Accounts map[string]*model.Account

	SaveFunc              func(ctx context.Context, tx repository.Tx, a *model.Account) error
	FindByIDFunc          func(ctx context.Context, tx repository.Tx, id string) (*model.Account, error)
	UpdateEntitlementFunc func(ctx context.Context, tx repository.Tx, a *model.Account) error
	DebitCreditsFunc      func(ctx context.Context, tx repository.Tx, accountID string, n int64) (bool, error)
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func NewMockAccountRepo() *MockAccountRepo {
	return &MockAccountRepo{Accounts: make(map[string]*model.Account)}
}

func (m *MockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.Accounts[a.ID] = &cp
	return nil
}

func (m *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockAccountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccountRepo) UpdateEntitlement(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.UpdateEntitlementFunc != nil {
		return m.UpdateEntitlementFunc(ctx, tx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Accounts[a.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Tier = a.Tier
	cur.Credits = a.Credits
	cur.CreditExpiry = a.CreditExpiry
	now := time.Now()
	cur.LastCreditUpdateAt = &now
	return nil
}

func (m *MockAccountRepo) DebitCredits(ctx context.Context, tx repository.Tx, accountID string, n int64) (bool, error) {
	if m.DebitCreditsFunc != nil {
		return m.DebitCreditsFunc(ctx, tx, accountID, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Accounts[accountID]
	if !ok {
		return false, nil
	}
	if a.Credits < n {
		return false, nil
	}
	if a.CreditExpiry != nil && !a.CreditExpiry.After(time.Now()) {
		return false, nil
	}
	a.Credits -= n
	return true, nil
}

// ---- Mock CouponRepository ----

type MockCouponRepo struct {
	mu          sync.Mutex
	Coupons     map[string]*model.Coupon // by ID
	Redemptions map[string]bool          // "couponID|accountID"

	FindByCodeFunc         func(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error)
	IncrementUsedCountFunc func(ctx context.Context, tx repository.Tx, couponID string) (bool, error)
	InsertRedemptionFunc   func(ctx context.Context, tx repository.Tx, r *model.CouponRedemption) error
}

var _ repository.CouponRepository = (*MockCouponRepo)(nil)

func NewMockCouponRepo() *MockCouponRepo {
	return &MockCouponRepo{
		Coupons:     make(map[string]*model.Coupon),
		Redemptions: make(map[string]bool),
	}
}

func redemptionKey(couponID, accountID string) string { return couponID + "|" + accountID }

func (m *MockCouponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.Coupons {
		if id != c.ID && other.Code == c.Code {
			return domain.ErrAlreadyExists
		}
	}
	cp := *c
	m.Coupons[c.ID] = &cp
	return nil
}

func (m *MockCouponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Coupons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCouponRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Coupon, 0, len(m.Coupons))
	for _, c := range m.Coupons {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockCouponRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Coupons[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.Coupons, id)
	return nil
}

func (m *MockCouponRepo) IncrementUsedCount(ctx context.Context, tx repository.Tx, couponID string) (bool, error) {
	if m.IncrementUsedCountFunc != nil {
		return m.IncrementUsedCountFunc(ctx, tx, couponID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Coupons[couponID]
	if !ok {
		return false, nil
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return false, nil
	}
	c.UsedCount++
	return true, nil
}

func (m *MockCouponRepo) HasRedemption(ctx context.Context, tx repository.Tx, couponID, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Redemptions[redemptionKey(couponID, accountID)], nil
}

func (m *MockCouponRepo) InsertRedemption(ctx context.Context, tx repository.Tx, r *model.CouponRedemption) error {
	if m.InsertRedemptionFunc != nil {
		return m.InsertRedemptionFunc(ctx, tx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := redemptionKey(r.CouponID, r.AccountID)
	if m.Redemptions[key] {
		return domain.ErrAlreadyRedeemed
	}
	m.Redemptions[key] = true
	return nil
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu     sync.Mutex
	Orders map[string]*model.Order

	SaveFunc                  func(ctx context.Context, tx repository.Tx, o *model.Order) error
	UpdateStatusIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) (bool, error)
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{Orders: make(map[string]*model.Order)}
}

func (m *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.Orders[o.ID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) FindByGatewayHandle(ctx context.Context, tx repository.Tx, handle string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.Orders {
		if o.GatewayHandle == handle {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.Orders {
		if o.AccountID == accountID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MockOrderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) (bool, error) {
	if m.UpdateStatusIfPendingFunc != nil {
		return m.UpdateStatusIfPendingFunc(ctx, tx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	if !ok {
		return false, nil
	}
	if o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockOrderRepo) SumPaidByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, o := range m.Orders {
		if o.Status == model.OrderStatusPaid {
			sum += o.FinalAmount
		}
	}
	return sum, nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	Subs map[string]*model.Subscription

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{Subs: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.Subs[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Subs {
		if s.OrderID == orderID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindActiveByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Subs {
		if s.AccountID == accountID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) CancelActiveByAccount(ctx context.Context, tx repository.Tx, accountID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.Subs {
		if s.AccountID == accountID && s.Status == model.SubscriptionStatusActive {
			s.Status = model.SubscriptionStatusCancelled
			cancelledAt := at
			s.CancelledAt = &cancelledAt
			s.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *MockSubscriptionRepo) ListDueForExpiry(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.Subs {
		if s.Status == model.SubscriptionStatusActive && !asOf.Before(s.EndDate) {
			cp := *s
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, s := range m.Subs {
		if s.Status == model.SubscriptionStatusActive {
			out[s.PlanID]++
		}
	}
	return out, nil
}

// =============================
// Adapters and transactions
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	Statuses map[string]string // handle -> remote status

	CreateIntentFunc func(ctx context.Context, planRef string, amount int64, cadence string) (adapter.Intent, error)
	FetchFunc        func(ctx context.Context, handle string) (adapter.RemoteStatus, error)
	CancelFunc       func(ctx context.Context, handle string) (adapter.RemoteStatus, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{Statuses: make(map[string]string)}
}

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreateIntent(ctx context.Context, planRef string, amount int64, cadence string) (adapter.Intent, error) {
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, planRef, amount, cadence)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	handle := fmt.Sprintf("sub_%06d", m.seq)
	m.Statuses[handle] = "created"
	return adapter.Intent{Handle: handle, RedirectURL: "https://gw.test/pay/" + handle}, nil
}

func (m *MockPaymentGateway) Fetch(ctx context.Context, handle string) (adapter.RemoteStatus, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, handle)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.Statuses[handle]
	if !ok {
		return adapter.RemoteStatus{}, fmt.Errorf("unknown handle %q", handle)
	}
	return adapter.RemoteStatus{Handle: handle, Status: status}, nil
}

func (m *MockPaymentGateway) Cancel(ctx context.Context, handle string) (adapter.RemoteStatus, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, handle)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[handle] = "cancelled"
	return adapter.RemoteStatus{Handle: handle, Status: "cancelled"}, nil
}

// ---- Mock SignatureVerifier ----

type MockVerifier struct {
	Result     bool
	VerifyFunc func(paymentID, handle, signature string) bool
}

var _ adapter.SignatureVerifier = (*MockVerifier)(nil)

func (m *MockVerifier) Verify(paymentID, handle, signature string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(paymentID, handle, signature)
	}
	return m.Result
}

// ---- Mock TransactionManager ----

// MockTxManager runs the callback directly. A single process-wide mutex per
// manager stands in for the per-account advisory lock, which is close enough
// for exercising the serialization the use cases rely on.
type MockTxManager struct {
	lock sync.Mutex

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return fn(ctx, repository.NoTX)
}

func (m *MockTxManager) LockAccount(ctx context.Context, tx repository.Tx, accountID string) error {
	return nil
}
