package retention

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keshav-const/promptlens-sub000/internal/clock"
	paymentdomain "github.com/keshav-const/promptlens-sub000/internal/payment/domain"
)

// Config tunes the ledger retention sweep.
type Config struct {
	PollInterval time.Duration
	Window       time.Duration
}

func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Hour
	}
	if c.Window <= 0 {
		c.Window = paymentdomain.RetentionWindow
	}
	return c
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   paymentdomain.Repository
	Config Config `optional:"true"`
}

// Worker periodically expires idempotency ledger entries older than the
// retention window.
type Worker struct {
	db   *gorm.DB
	log  *zap.Logger
	clk  clock.Clock
	repo paymentdomain.Repository
	cfg  Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:   p.DB,
		log:  p.Log.Named("retention"),
		clk:  p.Clock,
		repo: p.Repo,
		cfg:  p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("retention sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := w.clk.Now().Add(-w.cfg.Window)
	purged, err := w.repo.PurgeOlderThan(ctx, w.db, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		w.log.Info("expired ledger entries purged",
			zap.Int64("purged", purged),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
