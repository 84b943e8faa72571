package migration

import (
	"github.com/emberhollow/storefront/internal/config"
	orderdomain "github.com/emberhollow/storefront/internal/order/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite/mysql are dev-only targets; AutoMigrate keeps them usable
			// without maintaining per-dialect migration files.
			return conn.AutoMigrate(
				&orderdomain.Order{},
				&orderdomain.OrderItem{},
				&orderdomain.OrderEvent{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
