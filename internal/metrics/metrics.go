// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	openGranted *prometheus.CounterVec
	openDenied  *prometheus.CounterVec
	codesIssued prometheus.Counter
	httpStatus  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		openGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorman_open_granted_total",
			Help: "開錠許可の合計数（経路別: code, permission）",
		}, []string{"method"}),
		openDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorman_open_denied_total",
			Help: "開錠拒否の合計数（理由別）",
		}, []string{"reason"}),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorman_codes_issued_total",
			Help: "発行されたワンタイムコードの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.openGranted,
		c.openDenied,
		c.codesIssued,
		c.httpStatus,
	)

	return c
}

// RecordOpenGranted は開錠許可を経路付きで記録する。
func (c *Collector) RecordOpenGranted(method string) {
	c.openGranted.WithLabelValues(method).Inc()
}

// RecordOpenDenied は開錠拒否を理由付きで記録する。
// コード付きの拒否とコードなしの拒否はラベルで区別され、
// 前者はコード探索（probing）の兆候として監視できる。
func (c *Collector) RecordOpenDenied(reason string) {
	c.openDenied.WithLabelValues(reason).Inc()
}

// RecordCodeIssued はコード発行を記録する。
func (c *Collector) RecordCodeIssued() {
	c.codesIssued.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
