package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/thereiwas/internal/adapter/metrics"
)

// MetricsTracer times every statement on the pool. Repository calls name
// their statement with withStatement; anything else is labelled by its
// leading keyword.
type MetricsTracer struct {
	metrics *metrics.DBMetrics
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.DBMetrics) *MetricsTracer {
	return &MetricsTracer{metrics: m}
}

type (
	statementNameKey struct{}
	traceStartKey    struct{}
)

type traceStart struct {
	at        time.Time
	statement string
}

func withStatement(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, statementNameKey{}, name)
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	name, ok := ctx.Value(statementNameKey{}).(string)
	if !ok {
		name = keywordLabel(data.SQL)
	}
	return context.WithValue(ctx, traceStartKey{}, traceStart{at: time.Now(), statement: name})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok || t.metrics == nil {
		return
	}

	t.metrics.QueryDuration.WithLabelValues(start.statement).Observe(time.Since(start.at).Seconds())
	if data.Err != nil {
		t.metrics.ErrorsTotal.WithLabelValues(start.statement).Inc()
	}
}

var knownKeywords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"with": true, "begin": true, "commit": true, "rollback": true,
	"create": true, "alter": true, "drop": true,
}

// keywordLabel keeps label cardinality bounded: unknown keywords collapse to "other".
func keywordLabel(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	kw := strings.ToLower(fields[0])
	if !knownKeywords[kw] {
		return "other"
	}
	return kw
}
