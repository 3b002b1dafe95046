package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditdomain "github.com/keshav-const/promptlens-sub000/internal/audit/domain"
	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
	identityservice "github.com/keshav-const/promptlens-sub000/internal/identity/service"
	"github.com/keshav-const/promptlens-sub000/internal/payment/provider"
	subscriptiondomain "github.com/keshav-const/promptlens-sub000/internal/subscription/domain"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

type nopAudit struct{}

func (nopAudit) AuditLog(context.Context, *snowflake.ID, auditdomain.ActorType, *string, string, string, *string, map[string]any) error {
	return nil
}

func (nopAudit) List(context.Context, auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	return nil, nil
}

type fakeProvider struct {
	orders   map[string]*provider.Order
	payments map[string]*provider.Payment
	err      error
}

func (f *fakeProvider) FetchOrder(_ context.Context, orderID string) (*provider.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return order, nil
}

func (f *fakeProvider) FetchPayment(_ context.Context, paymentID string) (*provider.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	payment, ok := f.payments[paymentID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return payment, nil
}

const testKeySecret = "payment-key-secret"

func setupSubscriptionTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT,
			plan TEXT NOT NULL DEFAULT 'free',
			usage_count INTEGER NOT NULL DEFAULT 0,
			last_reset_at DATETIME NOT NULL,
			billing_customer_id TEXT,
			subscription_id TEXT,
			subscription_status TEXT,
			subscription_period_end DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create users: %v", err)
	}
	return db
}

func newSubscriptionService(t *testing.T, db *gorm.DB, clk *stepClock, fp *fakeProvider) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	identitySvc := identityservice.NewService(identityservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
	})
	if fp == nil {
		fp = &fakeProvider{}
	}
	return &Service{
		db:          db,
		log:         zap.NewNop(),
		clk:         clk,
		keySecret:   testKeySecret,
		identitySvc: identitySvc,
		auditSvc:    nopAudit{},
		provider:    fp,
	}
}

func loadUser(t *testing.T, db *gorm.DB, email string) *identitydomain.User {
	t.Helper()
	var user identitydomain.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return &user
}

func TestActivateUpgradesAndResetsWindow(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clk := &stepClock{now: base}
	svc := newSubscriptionService(t, db, clk, nil)

	// Existing free user with consumed quota.
	if err := db.Exec(
		`INSERT INTO users (id, email, plan, usage_count, last_reset_at, created_at, updated_at)
		 VALUES (1, 'user@example.com', 'free', 3, ?, ?, ?)`,
		base.Add(-2*time.Hour), base.Add(-2*time.Hour), base.Add(-2*time.Hour),
	).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}

	periodEnd := base.AddDate(0, 1, 0)
	user, err := svc.Activate(context.Background(), subscriptiondomain.ActivateParams{
		Email:          "user@example.com",
		Plan:           identitydomain.PlanProMonthly,
		SubscriptionID: "sub_123",
		PeriodEnd:      &periodEnd,
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if user.Plan != identitydomain.PlanProMonthly {
		t.Fatalf("expected pro_monthly, got %q", user.Plan)
	}
	if user.UsageCount != 0 {
		t.Fatalf("expected fresh window, got usage %d", user.UsageCount)
	}
	if user.SubscriptionID == nil || *user.SubscriptionID != "sub_123" {
		t.Fatalf("expected subscription id recorded, got %v", user.SubscriptionID)
	}
	if user.SubscriptionStatus == nil || *user.SubscriptionStatus != identitydomain.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %v", user.SubscriptionStatus)
	}
}

func TestActivateCreatesUnknownUser(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := newSubscriptionService(t, db, &stepClock{now: base}, nil)

	user, err := svc.Activate(context.Background(), subscriptiondomain.ActivateParams{
		Email:          "First@Example.com",
		Plan:           identitydomain.PlanProYearly,
		SubscriptionID: "sub_777",
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if user.Email != "first@example.com" {
		t.Fatalf("expected provisioned user, got %q", user.Email)
	}
	if user.Plan != identitydomain.PlanProYearly {
		t.Fatalf("expected pro_yearly, got %q", user.Plan)
	}
}

func TestActivateSameSubscriptionKeepsWindow(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clk := &stepClock{now: base}
	svc := newSubscriptionService(t, db, clk, nil)

	if _, err := svc.Activate(context.Background(), subscriptiondomain.ActivateParams{
		Email:          "user@example.com",
		Plan:           identitydomain.PlanProMonthly,
		SubscriptionID: "sub_123",
	}); err != nil {
		t.Fatalf("first activate: %v", err)
	}

	// Usage consumed between the checkout confirmation and the webhook.
	if err := db.Exec(`UPDATE users SET usage_count = 2 WHERE email = 'user@example.com'`).Error; err != nil {
		t.Fatalf("consume usage: %v", err)
	}

	clk.now = base.Add(time.Minute)
	user, err := svc.Activate(context.Background(), subscriptiondomain.ActivateParams{
		Email:          "user@example.com",
		Plan:           identitydomain.PlanProMonthly,
		SubscriptionID: "sub_123",
	})
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}
	if user.UsageCount != 2 {
		t.Fatalf("re-activation must not grant another window, got usage %d", user.UsageCount)
	}
}

func TestCancelDowngradesWithoutBonusWindow(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := newSubscriptionService(t, db, &stepClock{now: base}, nil)

	if _, err := svc.Activate(context.Background(), subscriptiondomain.ActivateParams{
		Email:          "user@example.com",
		Plan:           identitydomain.PlanProMonthly,
		SubscriptionID: "sub_123",
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := db.Exec(`UPDATE users SET usage_count = 7 WHERE email = 'user@example.com'`).Error; err != nil {
		t.Fatalf("consume usage: %v", err)
	}

	user, err := svc.Cancel(context.Background(), "sub_123", "user_request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if user.Plan != identitydomain.PlanFree {
		t.Fatalf("expected downgrade to free, got %q", user.Plan)
	}
	if user.SubscriptionStatus == nil || *user.SubscriptionStatus != identitydomain.SubscriptionStatusCancelled {
		t.Fatalf("expected cancelled status, got %v", user.SubscriptionStatus)
	}
	if user.UsageCount != 7 {
		t.Fatalf("cancel must not touch usage, got %d", user.UsageCount)
	}
}

func TestCancelUnknownSubscription(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	svc := newSubscriptionService(t, db, &stepClock{now: time.Now().UTC()}, nil)

	if _, err := svc.Cancel(context.Background(), "sub_missing", ""); !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestRecordPaymentFailureLeavesStateAlone(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := newSubscriptionService(t, db, &stepClock{now: base}, nil)

	if _, err := svc.Activate(context.Background(), subscriptiondomain.ActivateParams{
		Email:          "user@example.com",
		Plan:           identitydomain.PlanProMonthly,
		SubscriptionID: "sub_123",
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := svc.RecordPaymentFailure(context.Background(), "sub_123", nil); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	user := loadUser(t, db, "user@example.com")
	if user.Plan != identitydomain.PlanProMonthly {
		t.Fatalf("payment failure must not downgrade, got %q", user.Plan)
	}
	if user.SubscriptionStatus == nil || *user.SubscriptionStatus != identitydomain.SubscriptionStatusActive {
		t.Fatalf("payment failure must not change status, got %v", user.SubscriptionStatus)
	}
}

func TestVerifyPaymentActivates(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fp := &fakeProvider{
		orders: map[string]*provider.Order{
			"order_1": {ID: "order_1", Status: "paid", Notes: map[string]string{"plan": "pro_monthly"}},
		},
		payments: map[string]*provider.Payment{
			"pay_1": {ID: "pay_1", OrderID: "order_1", Status: "captured"},
		},
	}
	svc := newSubscriptionService(t, db, &stepClock{now: base}, fp)

	signature := provider.ComputeSignature(testKeySecret, provider.PaymentMessage("order_1", "pay_1"))
	user, err := svc.VerifyPayment(context.Background(), subscriptiondomain.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: signature,
		Email:     "buyer@example.com",
		Plan:      identitydomain.PlanProMonthly,
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if user.Plan != identitydomain.PlanProMonthly {
		t.Fatalf("expected upgrade, got %q", user.Plan)
	}
}

func TestVerifyPaymentRejectsBadSignature(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	svc := newSubscriptionService(t, db, &stepClock{now: time.Now().UTC()}, nil)

	_, err := svc.VerifyPayment(context.Background(), subscriptiondomain.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "deadbeef",
		Email:     "buyer@example.com",
		Plan:      identitydomain.PlanProMonthly,
	})
	if !errors.Is(err, subscriptiondomain.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestVerifyPaymentProviderDown(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	fp := &fakeProvider{err: provider.ErrProviderUnavailable}
	svc := newSubscriptionService(t, db, &stepClock{now: time.Now().UTC()}, fp)

	signature := provider.ComputeSignature(testKeySecret, provider.PaymentMessage("order_1", "pay_1"))
	_, err := svc.VerifyPayment(context.Background(), subscriptiondomain.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: signature,
		Email:     "buyer@example.com",
		Plan:      identitydomain.PlanProMonthly,
	})
	if !errors.Is(err, subscriptiondomain.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestVerifyPaymentThenWebhookSingleWindow(t *testing.T) {
	db := setupSubscriptionTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clk := &stepClock{now: base}
	fp := &fakeProvider{
		orders: map[string]*provider.Order{
			"order_1": {ID: "order_1", Status: "paid"},
		},
		payments: map[string]*provider.Payment{
			"pay_1": {ID: "pay_1", OrderID: "order_1", Status: "captured"},
		},
	}
	svc := newSubscriptionService(t, db, clk, fp)

	signature := provider.ComputeSignature(testKeySecret, provider.PaymentMessage("order_1", "pay_1"))
	if _, err := svc.VerifyPayment(context.Background(), subscriptiondomain.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: signature,
		Email:     "buyer@example.com",
		Plan:      identitydomain.PlanProMonthly,
	}); err != nil {
		t.Fatalf("verify payment: %v", err)
	}

	if err := db.Exec(`UPDATE users SET usage_count = 5 WHERE email = 'buyer@example.com'`).Error; err != nil {
		t.Fatalf("consume usage: %v", err)
	}

	// The webhook for the same subscription arrives later.
	clk.now = base.Add(10 * time.Minute)
	user, err := svc.Activate(context.Background(), subscriptiondomain.ActivateParams{
		Email:          "buyer@example.com",
		Plan:           identitydomain.PlanProMonthly,
		SubscriptionID: "order_1",
	})
	if err != nil {
		t.Fatalf("webhook activate: %v", err)
	}
	if user.UsageCount != 5 {
		t.Fatalf("webhook replay of the same subscription must not reset usage, got %d", user.UsageCount)
	}
}
