package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/keshav-const/promptlens-sub000/internal/audit/domain"
	"github.com/keshav-const/promptlens-sub000/internal/clock"
	"github.com/keshav-const/promptlens-sub000/internal/config"
	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
	"github.com/keshav-const/promptlens-sub000/internal/observability/metrics"
	"github.com/keshav-const/promptlens-sub000/internal/payment/provider"
	subscriptiondomain "github.com/keshav-const/promptlens-sub000/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Cfg         config.Config
	IdentitySvc identitydomain.Service
	AuditSvc    auditdomain.Service
	Provider    provider.Client
	Metrics     *metrics.EntitlementMetrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clk         clock.Clock
	keySecret   string
	identitySvc identitydomain.Service
	auditSvc    auditdomain.Service
	provider    provider.Client
	metrics     *metrics.EntitlementMetrics
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("subscription.service"),
		clk:         p.Clock,
		keySecret:   p.Cfg.PaymentKeySecret,
		identitySvc: p.IdentitySvc,
		auditSvc:    p.AuditSvc,
		provider:    p.Provider,
		metrics:     p.Metrics,
	}
}

// Activate upgrades the user in one UPDATE. The CASE guards keep the
// quota window intact when the same subscription is re-applied, so a
// checkout confirmation followed by the matching webhook grants exactly
// one fresh window.
func (s *Service) Activate(ctx context.Context, params subscriptiondomain.ActivateParams) (*identitydomain.User, error) {
	subscriptionID := strings.TrimSpace(params.SubscriptionID)
	if subscriptionID == "" || strings.TrimSpace(params.Email) == "" {
		return nil, subscriptiondomain.ErrMissingData
	}
	if !params.Plan.Known() || params.Plan == identitydomain.PlanFree {
		return nil, subscriptiondomain.ErrUnknownPlan
	}

	user, err := s.identitySvc.FindOrCreate(ctx, params.Email, params.DisplayName)
	if err != nil {
		if errors.Is(err, identitydomain.ErrInvalidEmail) {
			return nil, subscriptiondomain.ErrMissingData
		}
		return nil, err
	}

	now := s.clk.Now()
	var customerID *string
	if trimmed := strings.TrimSpace(params.BillingCustomerID); trimmed != "" {
		customerID = &trimmed
	}
	if err := s.db.WithContext(ctx).Exec(
		`UPDATE users
		 SET plan = ?,
		     subscription_id = ?,
		     subscription_status = ?,
		     subscription_period_end = ?,
		     billing_customer_id = COALESCE(?, billing_customer_id),
		     usage_count = CASE
		         WHEN subscription_id = ? AND subscription_status = ? THEN usage_count
		         ELSE 0
		     END,
		     last_reset_at = CASE
		         WHEN subscription_id = ? AND subscription_status = ? THEN last_reset_at
		         ELSE ?
		     END,
		     updated_at = ?
		 WHERE id = ?`,
		params.Plan,
		subscriptionID,
		identitydomain.SubscriptionStatusActive,
		params.PeriodEnd,
		customerID,
		subscriptionID,
		identitydomain.SubscriptionStatusActive,
		subscriptionID,
		identitydomain.SubscriptionStatusActive,
		now,
		now,
		user.ID,
	).Error; err != nil {
		return nil, err
	}

	fresh, err := s.identitySvc.FindByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.incTransition("activate")
	targetID := subscriptionID
	_ = s.auditSvc.AuditLog(ctx, &fresh.ID, auditdomain.ActorTypeProvider, nil,
		"subscription.activated", "subscription", &targetID, map[string]any{
			"plan":            string(params.Plan),
			"subscription_id": subscriptionID,
		})
	s.log.Info("subscription activated",
		zap.String("user_id", fresh.ID.String()),
		zap.String("plan", string(params.Plan)),
	)
	return fresh, nil
}

func (s *Service) Cancel(ctx context.Context, subscriptionID, reason string) (*identitydomain.User, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, subscriptiondomain.ErrMissingData
	}

	now := s.clk.Now()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE users
		 SET plan = ?, subscription_status = ?, updated_at = ?
		 WHERE subscription_id = ?`,
		identitydomain.PlanFree,
		identitydomain.SubscriptionStatusCancelled,
		now,
		subscriptionID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	var user identitydomain.User
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		First(&user).Error
	if err != nil {
		return nil, err
	}

	s.incTransition("cancel")
	targetID := subscriptionID
	metadata := map[string]any{"subscription_id": subscriptionID}
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata["reason"] = reason
	}
	_ = s.auditSvc.AuditLog(ctx, &user.ID, auditdomain.ActorTypeProvider, nil,
		"subscription.cancelled", "subscription", &targetID, metadata)
	s.log.Info("subscription cancelled",
		zap.String("user_id", user.ID.String()),
		zap.String("subscription_id", subscriptionID),
	)
	return &user, nil
}

func (s *Service) RecordPaymentFailure(ctx context.Context, subscriptionID string, metadata map[string]any) error {
	subscriptionID = strings.TrimSpace(subscriptionID)

	var userID *snowflake.ID
	if subscriptionID != "" {
		var user identitydomain.User
		err := s.db.WithContext(ctx).
			Where("subscription_id = ?", subscriptionID).
			First(&user).Error
		if err == nil {
			userID = &user.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	s.incTransition("payment_failed")
	targetID := subscriptionID
	s.log.Warn("payment failed", zap.String("subscription_id", subscriptionID))
	return s.auditSvc.AuditLog(ctx, userID, auditdomain.ActorTypeProvider, nil,
		"payment.failed", "subscription", &targetID, metadata)
}

// VerifyPayment validates the checkout signature locally, then confirms
// the payment with the provider before activating. Both outbound calls
// ride the injected client's timeout; nothing is retried here.
func (s *Service) VerifyPayment(ctx context.Context, req subscriptiondomain.VerifyPaymentRequest) (*identitydomain.User, error) {
	orderID := strings.TrimSpace(req.OrderID)
	paymentID := strings.TrimSpace(req.PaymentID)
	if orderID == "" || paymentID == "" || strings.TrimSpace(req.Signature) == "" {
		return nil, subscriptiondomain.ErrMissingData
	}

	if !provider.VerifySignature(s.keySecret, provider.PaymentMessage(orderID, paymentID), req.Signature) {
		s.log.Warn("checkout signature mismatch", zap.String("order_id", orderID))
		return nil, subscriptiondomain.ErrVerificationFailed
	}

	order, err := s.provider.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, subscriptiondomain.ErrVerificationFailed
	}
	payment, err := s.provider.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, subscriptiondomain.ErrVerificationFailed
	}
	if payment.OrderID != order.ID || !payment.Captured() {
		s.log.Warn("payment not captured for order",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
		)
		return nil, subscriptiondomain.ErrVerificationFailed
	}

	plan := req.Plan
	if notePlan := identitydomain.Plan(order.Notes["plan"]); notePlan.Known() && notePlan != identitydomain.PlanFree {
		plan = notePlan
	}

	user, err := s.Activate(ctx, subscriptiondomain.ActivateParams{
		Email:          req.Email,
		Plan:           plan,
		SubscriptionID: orderID,
	})
	if err != nil {
		return nil, err
	}

	targetID := paymentID
	_ = s.auditSvc.AuditLog(ctx, &user.ID, auditdomain.ActorTypeUser, nil,
		"payment.verified", "payment", &targetID, map[string]any{
			"order_id":   orderID,
			"payment_id": paymentID,
		})
	return user, nil
}

func (s *Service) incTransition(transition string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSubscriptionTransition(transition)
}
