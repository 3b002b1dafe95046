package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keshav-const/promptlens-sub000/internal/clock"
	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
	"github.com/keshav-const/promptlens-sub000/internal/observability/metrics"
	quotadomain "github.com/keshav-const/promptlens-sub000/internal/quota/domain"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *metrics.EntitlementMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clk     clock.Clock
	metrics *metrics.EntitlementMetrics
}

func NewService(p Params) quotadomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("quota.service"),
		clk:     p.Clock,
		metrics: p.Metrics,
	}
}

// ResetIfStale rolls the window with a guarded single UPDATE so two
// concurrent requests cannot both observe a stale window and double-reset.
func (s *Service) ResetIfStale(ctx context.Context, user *identitydomain.User) (*identitydomain.User, error) {
	if user == nil {
		return nil, identitydomain.ErrUserNotFound
	}

	now := s.clk.Now()
	if now.Sub(user.LastResetAt) < quotadomain.ResetWindow {
		return user, nil
	}

	cutoff := now.Add(-quotadomain.ResetWindow)
	result := s.db.WithContext(ctx).Exec(
		`UPDATE users
		 SET usage_count = 0, last_reset_at = ?, updated_at = ?
		 WHERE id = ? AND last_reset_at <= ?`,
		now,
		now,
		user.ID,
		cutoff,
	)
	if result.Error != nil {
		return nil, result.Error
	}

	var fresh identitydomain.User
	err := s.db.WithContext(ctx).
		Where("id = ?", user.ID).
		First(&fresh).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identitydomain.ErrUserNotFound
		}
		return nil, err
	}
	return &fresh, nil
}

func (s *Service) CheckAndReserve(ctx context.Context, user *identitydomain.User) error {
	if user == nil {
		return identitydomain.ErrUserNotFound
	}

	limit, limited := quotadomain.LimitFor(user.Plan)
	if !limited {
		s.incDecision(user.Plan, "allowed")
		return nil
	}
	if user.UsageCount >= limit {
		s.incDecision(user.Plan, "exceeded")
		s.log.Info("quota exceeded",
			zap.String("user_id", user.ID.String()),
			zap.String("plan", string(user.Plan)),
			zap.Int("usage_count", user.UsageCount),
			zap.Int("limit", limit),
		)
		return &quotadomain.ExceededError{
			UsageCount: user.UsageCount,
			Limit:      limit,
			Plan:       user.Plan,
			ResetAt:    user.LastResetAt.Add(quotadomain.ResetWindow),
		}
	}
	s.incDecision(user.Plan, "allowed")
	return nil
}

// Increment advances the counter with a single atomic UPDATE, never a
// read-modify-write round trip.
func (s *Service) Increment(ctx context.Context, userID snowflake.ID) error {
	now := s.clk.Now()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE users
		 SET usage_count = usage_count + 1, updated_at = ?
		 WHERE id = ?`,
		now,
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identitydomain.ErrUserNotFound
	}
	return nil
}

func (s *Service) Summarize(user *identitydomain.User) quotadomain.Summary {
	summary := quotadomain.Summary{
		UsageCount: user.UsageCount,
		Plan:       user.Plan,
		ResetAt:    user.LastResetAt.Add(quotadomain.ResetWindow),
	}
	if limit, limited := quotadomain.LimitFor(user.Plan); limited {
		summary.Limit = &limit
	}
	return summary
}

func (s *Service) incDecision(plan identitydomain.Plan, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncQuotaDecision(string(plan), result)
}
