package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	ServiceName       string
	Insecure          bool
}

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   MetricsConfig
}

// NewMeterProvider creates and registers the global meter provider.
// If metrics are disabled, Meter falls back to the global no-op meter.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger, config: cfg}
	if !cfg.Enabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval == 0 {
		interval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, "")
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Shutdown flushes pending metrics.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Meter returns a named meter from the provider.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// Counter is a helper for int64 counters.
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new Counter metric.
func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return &Counter{counter: c}, nil
}

// Add increments the counter by value.
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// FloatCounter is a helper for float64 counters, used for money totals.
type FloatCounter struct {
	counter metric.Float64Counter
}

// NewFloatCounter creates a new FloatCounter metric.
func NewFloatCounter(meter metric.Meter, name, description, unit string) (*FloatCounter, error) {
	c, err := meter.Float64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return &FloatCounter{counter: c}, nil
}

// Add increments the counter by value.
func (c *FloatCounter) Add(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Histogram is a helper for float64 histograms.
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a new Histogram metric with explicit buckets.
func NewHistogram(meter metric.Meter, name, description, unit string, boundaries ...float64) (*Histogram, error) {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(boundaries) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(boundaries...))
	}
	h, err := meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return &Histogram{histogram: h}, nil
}

// RecordDuration records d in seconds.
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// Attribute keys shared by ledger metrics.
var (
	AttrTenantID    = attribute.Key("tenant_id")
	AttrPaymentMode = attribute.Key("payment_mode")
	AttrStrategy    = attribute.Key("allocation_strategy")
	AttrDueKind     = attribute.Key("due_kind")
	AttrOutcome     = attribute.Key("outcome")
)

// DurationBuckets are histogram boundaries in seconds for ledger operations.
var DurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// LedgerMetrics records payment, reversal and generation activity.
type LedgerMetrics struct {
	paymentsRecorded *Counter
	amountReceived   *FloatCounter
	amountAllocated  *FloatCounter
	revocations      *Counter
	duesGenerated    *Counter
	bulkFailures     *Counter
	lockRetries      *Counter
	opDuration       *Histogram
}

// NewLedgerMetrics registers the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &LedgerMetrics{}
	var err error
	if m.paymentsRecorded, err = NewCounter(meter, "dues_payments_recorded_total", "Transactions recorded", "{transactions}"); err != nil {
		return nil, err
	}
	if m.amountReceived, err = NewFloatCounter(meter, "dues_amount_received_total", "Sum of recorded transaction amounts", "{currency}"); err != nil {
		return nil, err
	}
	if m.amountAllocated, err = NewFloatCounter(meter, "dues_amount_allocated_total", "Sum of amounts allocated to dues", "{currency}"); err != nil {
		return nil, err
	}
	if m.revocations, err = NewCounter(meter, "dues_transactions_revoked_total", "Transactions revoked", "{transactions}"); err != nil {
		return nil, err
	}
	if m.duesGenerated, err = NewCounter(meter, "dues_generated_total", "Dues created by bulk generation", "{dues}"); err != nil {
		return nil, err
	}
	if m.bulkFailures, err = NewCounter(meter, "dues_bulk_failures_total", "Rows that failed during bulk generation", "{dues}"); err != nil {
		return nil, err
	}
	if m.lockRetries, err = NewCounter(meter, "dues_optimistic_lock_retries_total", "Retries after optimistic lock conflicts", "{retries}"); err != nil {
		return nil, err
	}
	if m.opDuration, err = NewHistogram(meter, "dues_operation_duration_seconds", "Ledger operation duration", "s", DurationBuckets...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPayment records a committed transaction.
func (m *LedgerMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, mode, strategy string, amount, allocated decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String()), AttrPaymentMode.String(mode), AttrStrategy.String(strategy)}
	m.paymentsRecorded.Add(ctx, 1, attrs...)
	m.amountReceived.Add(ctx, amount.InexactFloat64(), attrs...)
	m.amountAllocated.Add(ctx, allocated.InexactFloat64(), attrs...)
}

// RecordRevocation records a reversed transaction.
func (m *LedgerMetrics) RecordRevocation(ctx context.Context, tenantID uuid.UUID) {
	if m == nil {
		return
	}
	m.revocations.Add(ctx, 1, AttrTenantID.String(tenantID.String()))
}

// RecordGeneration records the outcome of a bulk run.
func (m *LedgerMetrics) RecordGeneration(ctx context.Context, tenantID uuid.UUID, kind string, created, failed int) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String()), AttrDueKind.String(kind)}
	m.duesGenerated.Add(ctx, int64(created), attrs...)
	if failed > 0 {
		m.bulkFailures.Add(ctx, int64(failed), attrs...)
	}
}

// RecordLockRetry records one retry after an optimistic lock conflict.
func (m *LedgerMetrics) RecordLockRetry(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.lockRetries.Add(ctx, 1, attribute.String("operation", operation))
}

// RecordDuration records how long a ledger operation took.
func (m *LedgerMetrics) RecordDuration(ctx context.Context, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.opDuration.RecordDuration(ctx, d, attribute.String("operation", operation), AttrOutcome.String(outcome))
}
