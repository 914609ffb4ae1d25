// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// Quota records are provisioned lazily when a user is promoted to geder,
// so there is nothing to warm here beyond logging the effective limits.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	logger.Info("membership limits",
		zap.Int("group_capacity", appCfg.GroupCapacity),
		zap.Int("default_max_slots", appCfg.DefaultMaxSlots))
	return nil
}
