package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keshav-const/promptlens-sub000/internal/cache"
	"github.com/keshav-const/promptlens-sub000/internal/clock"
	"github.com/keshav-const/promptlens-sub000/internal/config"
	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
	"github.com/keshav-const/promptlens-sub000/internal/observability/logger"
	"github.com/keshav-const/promptlens-sub000/internal/observability/metrics"
	paymentdomain "github.com/keshav-const/promptlens-sub000/internal/payment/domain"
	quotadomain "github.com/keshav-const/promptlens-sub000/internal/quota/domain"
	subscriptiondomain "github.com/keshav-const/promptlens-sub000/internal/subscription/domain"
	"github.com/keshav-const/promptlens-sub000/internal/token"
)

type Params struct {
	fx.In

	Cfg             config.Config
	Log             *zap.Logger
	DB              *gorm.DB
	Clock           clock.Clock
	IdentitySvc     identitydomain.Service
	QuotaSvc        quotadomain.Service
	SubscriptionSvc subscriptiondomain.Service
	WebhookSvc      paymentdomain.Service
	Generator       Generator                   `optional:"true"`
	Metrics         *metrics.EntitlementMetrics `optional:"true"`
	HTTPMetrics     *metrics.HTTPMetrics        `optional:"true"`
}

// Server owns the HTTP surface: authentication middleware, the protected
// API, and the payment webhook intake.
type Server struct {
	cfg             config.Config
	log             *zap.Logger
	db              *gorm.DB
	clk             clock.Clock
	verifier        *token.Verifier
	identitySvc     identitydomain.Service
	quotaSvc        quotadomain.Service
	subscriptionSvc subscriptiondomain.Service
	webhookSvc      paymentdomain.Service
	generator       Generator
	metrics         *metrics.EntitlementMetrics
	httpMetrics     *metrics.HTTPMetrics

	claimCache     *cache.TTLCache[string, token.Claims]
	webhookLimiter *rateLimiter

	engine *gin.Engine
}

func New(p Params) *Server {
	generator := p.Generator
	if generator == nil {
		generator = NewHeuristicGenerator()
	}

	s := &Server{
		cfg:             p.Cfg,
		log:             p.Log.Named("server"),
		db:              p.DB,
		clk:             p.Clock,
		verifier:        token.NewVerifier(p.Cfg.TokenSigningSecret, p.Cfg.TokenEncryptionSecret, p.Clock),
		identitySvc:     p.IdentitySvc,
		quotaSvc:        p.QuotaSvc,
		subscriptionSvc: p.SubscriptionSvc,
		webhookSvc:      p.WebhookSvc,
		generator:       generator,
		metrics:         p.Metrics,
		httpMetrics:     p.HTTPMetrics,
		claimCache:      cache.NewTTLCache[string, token.Claims](),
		webhookLimiter:  newRateLimiter(p.Cfg.WebhookRateLimit, p.Cfg.WebhookRateWindow),
	}
	s.engine = s.buildEngine()
	return s
}

func (s *Server) buildEngine() *gin.Engine {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz"},
	}))
	if s.httpMetrics != nil {
		engine.Use(metrics.GinMiddleware(s.httpMetrics))
	}

	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	{
		v1.POST("/optimize", s.AuthRequired(), s.Optimize)
		v1.GET("/usage", s.AuthRequiredNoQuota(), s.Usage)
		v1.GET("/subscription", s.AuthRequiredNoQuota(), s.Subscription)
		v1.POST("/payments/verify", s.AuthRequiredNoQuota(), s.VerifyPayment)
	}

	engine.POST("/webhooks/payment", s.PaymentWebhook)

	if s.cfg.Environment != "production" {
		engine.POST("/internal/test-cleanup", s.TestCleanup)
	}

	return engine
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
