package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keshav-const/promptlens-sub000/internal/clock"
	"github.com/keshav-const/promptlens-sub000/internal/config"
	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
	"github.com/keshav-const/promptlens-sub000/internal/observability/metrics"
	paymentdomain "github.com/keshav-const/promptlens-sub000/internal/payment/domain"
	"github.com/keshav-const/promptlens-sub000/internal/payment/provider"
	subscriptiondomain "github.com/keshav-const/promptlens-sub000/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Repo    paymentdomain.Repository
	SubSvc  subscriptiondomain.Service
	Metrics *metrics.EntitlementMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clk           clock.Clock
	webhookSecret string
	repo          paymentdomain.Repository
	subSvc        subscriptiondomain.Service
	metrics       *metrics.EntitlementMetrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.webhook"),
		genID:         p.GenID,
		clk:           p.Clock,
		webhookSecret: p.Cfg.PaymentWebhookSecret,
		repo:          p.Repo,
		subSvc:        p.SubSvc,
		metrics:       p.Metrics,
	}
}

func (s *Service) Handle(ctx context.Context, rawBody []byte, signatureHeader string) error {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" {
		s.incEvent("rejected")
		return paymentdomain.ErrMissingSignature
	}
	if !provider.VerifySignature(s.webhookSecret, rawBody, signatureHeader) {
		s.incEvent("rejected")
		s.log.Warn("webhook signature mismatch")
		return paymentdomain.ErrInvalidSignature
	}

	var event paymentdomain.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		s.incEvent("rejected")
		return paymentdomain.ErrMalformedPayload
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		s.incEvent("rejected")
		return paymentdomain.ErrMalformedPayload
	}

	// Ledger key is the event type, matching the provider integration
	// this service replaced. Duplicate delivery of the same type is
	// absorbed here regardless of which subscription it names.
	eventKey := event.Type
	seen, err := s.repo.Seen(ctx, s.db, eventKey)
	if err != nil {
		return err
	}
	if seen {
		s.incEvent("duplicate")
		s.log.Info("webhook duplicate absorbed", zap.String("event_type", event.Type))
		return nil
	}

	kind := paymentdomain.KindOf(event.Type)
	if err := s.dispatch(ctx, kind, &event); err != nil {
		return err
	}
	if kind == paymentdomain.EventUnhandled {
		s.incEvent("unhandled")
		return nil
	}

	// Recorded only after the dispatch took effect: a crash in between
	// leaves the provider free to redeliver.
	if _, err := s.repo.Record(ctx, s.db, &paymentdomain.ProcessedEvent{
		ID:          s.genID.Generate(),
		EventKey:    eventKey,
		EventType:   event.Type,
		ProcessedAt: s.clk.Now(),
	}); err != nil {
		return err
	}

	s.incEvent("processed")
	return nil
}

func (s *Service) dispatch(ctx context.Context, kind paymentdomain.EventKind, event *paymentdomain.WebhookEvent) error {
	switch kind {
	case paymentdomain.EventSubscriptionActivated:
		payload := event.Payload
		if payload.SubscriptionID == "" || payload.Email == "" {
			return paymentdomain.ErrMissingData
		}
		_, err := s.subSvc.Activate(ctx, subscriptiondomain.ActivateParams{
			Email:             payload.Email,
			Plan:              identitydomain.Plan(payload.Plan),
			SubscriptionID:    payload.SubscriptionID,
			BillingCustomerID: payload.CustomerID,
			PeriodEnd:         payload.PeriodEnd,
		})
		return err
	case paymentdomain.EventSubscriptionCancelled:
		if event.Payload.SubscriptionID == "" {
			return paymentdomain.ErrMissingData
		}
		_, err := s.subSvc.Cancel(ctx, event.Payload.SubscriptionID, event.Payload.Reason)
		return err
	case paymentdomain.EventPaymentFailed:
		return s.subSvc.RecordPaymentFailure(ctx, event.Payload.SubscriptionID, map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
		})
	case paymentdomain.EventUnhandled:
		s.log.Info("webhook event ignored", zap.String("event_type", event.Type))
		return nil
	default:
		return nil
	}
}

func (s *Service) incEvent(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncWebhookEvent(result)
}
