package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures the GORM tracing plugin.
type DBTracingConfig struct {
	Enabled          bool
	DBName           string
	SlowQueryThresh  time.Duration
	WithoutVariables bool
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin on db and marks spans of
// queries slower than SlowQueryThresh.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled || db == nil {
		return nil
	}

	opts := []otelgorm.Option{}
	if cfg.DBName != "" {
		opts = append(opts, otelgorm.WithDBName(cfg.DBName))
	}
	if cfg.WithoutVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if cfg.SlowQueryThresh <= 0 {
		return nil
	}
	before := func(tx *gorm.DB) {
		tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
	}
	after := func(tx *gorm.DB) {
		start, ok := tx.Statement.Context.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		if elapsed < cfg.SlowQueryThresh {
			return
		}
		trace.SpanFromContext(tx.Statement.Context).SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
		)
		logger.Warn("Slow query",
			zap.String("table", tx.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", tx.Statement.RowsAffected),
		)
	}

	cb := db.Callback()
	_ = cb.Query().Before("gorm:query").Register("dues:slow_before_query", before)
	_ = cb.Query().After("gorm:query").Register("dues:slow_after_query", after)
	_ = cb.Create().Before("gorm:create").Register("dues:slow_before_create", before)
	_ = cb.Create().After("gorm:create").Register("dues:slow_after_create", after)
	_ = cb.Update().Before("gorm:update").Register("dues:slow_before_update", before)
	_ = cb.Update().After("gorm:update").Register("dues:slow_after_update", after)
	_ = cb.Delete().Before("gorm:delete").Register("dues:slow_before_delete", before)
	_ = cb.Delete().After("gorm:delete").Register("dues:slow_after_delete", after)
	return nil
}
