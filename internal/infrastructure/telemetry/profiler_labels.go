package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	LabelRoute     = "route"
	LabelMethod    = "method"
	LabelTenantID  = "tenant_id"
	LabelOperation = "operation"
	LabelStrategy  = "strategy"
)

// Ledger operation names used as profiling labels and metric attributes.
const (
	OpRecordPayment       = "record_payment"
	OpRecordAdjustment    = "record_adjustment"
	OpRevokeTransaction   = "revoke_transaction"
	OpGenerateMonthlyDues = "generate_monthly_dues"
	OpGenerateEventDues   = "generate_event_dues"
	OpUpdateEventCohort   = "update_event_cohort"
	OpDeleteEventCohort   = "delete_event_cohort"
	OpExportLedger        = "export_ledger"
)

// MaxLabelValueLength caps label values to keep pyroscope series bounded.
const MaxLabelValueLength = 128

// HighCardinalityLabels are never attached to profiles.
var HighCardinalityLabels = map[string]bool{
	"user_id":        true,
	"request_id":     true,
	"trace_id":       true,
	"span_id":        true,
	"transaction_id": true,
	"due_id":         true,
}

// WithProfilingLabels runs fn with pyroscope labels attached to ctx.
// Empty and high cardinality labels are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// LedgerOperationLabels builds the labels for a ledger operation in a tenant.
func LedgerOperationLabels(operation, tenantID string) map[string]string {
	return map[string]string{
		LabelOperation: operation,
		LabelTenantID:  tenantID,
	}
}

func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, k := range keys {
		key := sanitizeLabelKey(k)
		v := labels[k]
		if key == "" || v == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, v)
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}
