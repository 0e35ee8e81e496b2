// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッション・出席サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordSessionCreated()
	RecordAttendanceMarked(period string)
	RecordAttendanceRejected(reason string)
	RecordHTTPStatus(statusCode int)
	RecordMarkLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsCreated    prometheus.Counter
	attendanceMarked   *prometheus.CounterVec
	attendanceRejected *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	markLatency        prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrattend_sessions_created_total",
			Help: "作成された出席セッションの合計数",
		}),
		attendanceMarked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrattend_attendance_marked_total",
			Help: "時限別の出席登録成功数",
		}, []string{"period"}),
		attendanceRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrattend_attendance_rejected_total",
			Help: "理由別の出席登録拒否数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrattend_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		markLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrattend_mark_latency_seconds",
			Help:    "出席登録処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.sessionsCreated,
		c.attendanceMarked,
		c.attendanceRejected,
		c.httpStatus,
		c.markLatency,
	)

	return c
}

// RecordSessionCreated はセッション作成を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordAttendanceMarked は出席登録成功を時限ラベル付きで記録する。
func (c *Collector) RecordAttendanceMarked(period string) {
	c.attendanceMarked.WithLabelValues(period).Inc()
}

// RecordAttendanceRejected は出席登録の拒否をエラーコード付きで記録する。
func (c *Collector) RecordAttendanceRejected(reason string) {
	c.attendanceRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordMarkLatency は出席登録のレイテンシを記録する。
func (c *Collector) RecordMarkLatency(duration time.Duration) {
	c.markLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
