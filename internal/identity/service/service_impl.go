package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keshav-const/promptlens-sub000/internal/clock"
	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clk   clock.Clock
}

func NewService(p Params) identitydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		genID: p.GenID,
		clk:   p.Clock,
	}
}

// FindOrCreate provisions the user row with an insert that is a no-op when
// the email already exists, then re-reads. A read-then-insert sequence
// would mint two rows under a first-contact race; the conflict clause
// keeps email unique without application-side locking.
func (s *Service) FindOrCreate(ctx context.Context, email, displayName string) (*identitydomain.User, error) {
	email = identitydomain.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, identitydomain.ErrInvalidEmail
	}

	now := s.clk.Now()
	newID := s.genID.Generate()
	if err := s.db.WithContext(ctx).Exec(
		`INSERT INTO users (id, email, display_name, plan, usage_count, last_reset_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		 ON CONFLICT (email) DO NOTHING`,
		newID,
		email,
		strings.TrimSpace(displayName),
		identitydomain.PlanFree,
		now,
		now,
		now,
	).Error; err != nil {
		return nil, err
	}

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.ID == newID {
		s.log.Info("user provisioned", zap.String("user_id", user.ID.String()))
	}
	return user, nil
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*identitydomain.User, error) {
	var user identitydomain.User
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identitydomain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*identitydomain.User, error) {
	email = identitydomain.NormalizeEmail(email)
	if email == "" {
		return nil, identitydomain.ErrInvalidEmail
	}

	var user identitydomain.User
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identitydomain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
