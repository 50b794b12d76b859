package db

import (
	"context"

	"github.com/boijelux-1st/doublea/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database.
func Open(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{}
	if cfg.IsProduction() {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	conn, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN), gcfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	log.Info("database connected", zap.String("dsn", cfg.DatabaseDSN))
	return conn, nil
}

var Module = fx.Module("db",
	fx.Provide(Open),
)
