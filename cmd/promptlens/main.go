package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/keshav-const/promptlens-sub000/internal/audit"
	"github.com/keshav-const/promptlens-sub000/internal/clock"
	"github.com/keshav-const/promptlens-sub000/internal/config"
	"github.com/keshav-const/promptlens-sub000/internal/identity"
	"github.com/keshav-const/promptlens-sub000/internal/migration"
	"github.com/keshav-const/promptlens-sub000/internal/observability/logger"
	"github.com/keshav-const/promptlens-sub000/internal/observability/metrics"
	"github.com/keshav-const/promptlens-sub000/internal/observability/tracing"
	"github.com/keshav-const/promptlens-sub000/internal/payment"
	"github.com/keshav-const/promptlens-sub000/internal/quota"
	"github.com/keshav-const/promptlens-sub000/internal/retention"
	"github.com/keshav-const/promptlens-sub000/internal/seed"
	"github.com/keshav-const/promptlens-sub000/internal/server"
	"github.com/keshav-const/promptlens-sub000/internal/subscription"
	"github.com/keshav-const/promptlens-sub000/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		tracing.Module,
		metrics.Module,
		fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, cfg config.Config) error {
			if err := migration.RunMigrations(conn); err != nil {
				return err
			}
			if cfg.SeedDemoUser {
				return seed.EnsureDemoUser(conn, node)
			}
			return nil
		}),
		audit.Module,
		identity.Module,
		quota.Module,
		subscription.Module,
		payment.Module,
		server.Module,
		retention.Module,
	)
	app.Run()
}
