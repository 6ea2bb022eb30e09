package router

import (
	"net/http"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/logger"
	"github.com/duesledger/backend/internal/interfaces/http/dto"
	"github.com/duesledger/backend/internal/interfaces/http/handler"
	"github.com/duesledger/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers groups every endpoint handler of the ledger API
type Handlers struct {
	Health   *handler.HealthHandler
	Dues     *handler.DueHandler
	Members  *handler.MemberHandler
	Payments *handler.PaymentHandler
	Bulk     *handler.BulkHandler
	Reports  *handler.ReportHandler
	Exports  *handler.ExportHandler
}

// EngineConfig configures the middleware chain of the ledger API
type EngineConfig struct {
	Logger           *zap.Logger
	TokenValidator   middleware.TokenValidator
	IdempotencyStore shared.IdempotencyStore
	Idempotency      shared.IdempotencyConfig
	Meter            metric.Meter
	Tracing          middleware.TracingConfig
	ProfilingEnabled bool
	CORS             middleware.CORSConfig
	MaxBodySize      int64
	TrustedProxies   []string
}

// NewEngine builds the gin engine with global middleware, health probes
// and the authenticated /api/v1 tree
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(logger.Recovery(log), middleware.RequestID(), logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.Tracing)...)
	engine.Use(
		middleware.HTTPMetrics(cfg.Meter),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteNotFound, "Route not found", c.GetString(logger.RequestIDKey)))
	})

	if h.Health != nil {
		health := engine.Group("/health")
		health.GET("/live", h.Health.Live)
		health.GET("/ready", h.Health.Ready)
	}

	jwtCfg := middleware.DefaultJWTConfig(cfg.TokenValidator)
	jwtCfg.Logger = log
	r := NewRouter(engine, WithGroupMiddleware(
		middleware.JWTAuthMiddleware(jwtCfg),
		middleware.TracingAttributeInjector(),
		middleware.Profiling(cfg.ProfilingEnabled),
	))
	for _, g := range ledgerGroups(h, cfg, log) {
		r.Register(g)
	}
	r.Setup()

	return engine, nil
}

func ledgerGroups(h Handlers, cfg EngineConfig, log *zap.Logger) []*DomainGroup {
	admin := middleware.RequireCapability(dues.CapabilityFinanceAdmin)
	var groups []*DomainGroup

	if h.Dues != nil {
		g := NewDomainGroup("dues", "/dues")
		g.GET("", h.Dues.List)
		g.POST("", admin, h.Dues.Create)
		g.GET("/:id", h.Dues.Get)
		g.DELETE("/:id", admin, h.Dues.Delete)
		groups = append(groups, g)
	}

	if h.Members != nil || h.Dues != nil {
		g := NewDomainGroup("members", "/members")
		if h.Members != nil {
			g.GET("", h.Members.List)
			g.POST("", admin, h.Members.Create)
			g.GET("/:id", h.Members.Get)
			g.PATCH("/:id", admin, h.Members.Update)
		}
		if h.Dues != nil {
			g.GET("/:id/outstanding", h.Dues.ListOutstanding)
			g.GET("/:id/fee-config", h.Dues.GetFeeConfig)
			g.PUT("/:id/fee-config", admin, h.Dues.SetFeeConfig)
		}
		groups = append(groups, g)
	}

	if h.Payments != nil {
		payments := NewDomainGroup("payments", "/payments")
		payments.POST("", middleware.Idempotency(cfg.IdempotencyStore, cfg.Idempotency, log), h.Payments.Record)

		adjustments := NewDomainGroup("adjustments", "/adjustments")
		adjustments.POST("", admin, h.Payments.RecordAdjustment)

		transactions := NewDomainGroup("transactions", "/transactions")
		transactions.GET("", h.Payments.List)
		transactions.GET("/:id", h.Payments.Get)
		transactions.POST("/:id/revoke", h.Payments.Revoke)

		groups = append(groups, payments, adjustments, transactions)
	}

	if h.Bulk != nil {
		g := NewDomainGroup("bulk", "/bulk").Use(admin)
		g.POST("/monthly", h.Bulk.GenerateMonthly)
		g.POST("/events", h.Bulk.GenerateEvents)
		g.PUT("/events", h.Bulk.UpdateCohort)
		g.DELETE("/events", h.Bulk.DeleteCohort)
		groups = append(groups, g)
	}

	if h.Reports != nil {
		g := NewDomainGroup("reports", "/reports")
		g.GET("/members/:id/statement", h.Reports.Statement)
		g.GET("/owners", admin, h.Reports.OwnerTotals)
		g.GET("/grid", admin, h.Reports.PeriodGrid)
		g.GET("/overview", admin, h.Reports.Overview)
		g.GET("/cohorts", admin, h.Reports.Cohorts)
		groups = append(groups, g)
	}

	if h.Exports != nil {
		g := NewDomainGroup("exports", "/exports")
		g.POST("", admin, h.Exports.Create)
		groups = append(groups, g)
	}

	return groups
}
