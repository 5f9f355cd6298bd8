// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// 認証サービスや通知ワーカーから利用する。
type Recorder interface {
	RecordVerifySuccess(mode string)
	RecordVerifyFailure(code string)
	RecordLookupLatency(duration time.Duration)
	RecordNotificationSent()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	verifySuccess     *prometheus.CounterVec
	verifyFail        *prometheus.CounterVec
	lookupLatency     prometheus.Histogram
	notificationsSent prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verifySuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mclink_verify_success_total",
			Help: "認証成功の合計数（モード別）",
		}, []string{"mode"}),
		verifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mclink_verify_fail_total",
			Help: "認証失敗の合計数（エラーコード別）",
		}, []string{"code"}),
		lookupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mclink_lookup_latency_seconds",
			Help:    "Mojangプロフィール照会のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mclink_notifications_sent_total",
			Help: "Discordへ送信した認証完了通知の合計数",
		}),
	}

	reg.MustRegister(
		c.verifySuccess,
		c.verifyFail,
		c.lookupLatency,
		c.notificationsSent,
	)

	return c
}

// RecordVerifySuccess は認証成功を記録する。
func (c *Collector) RecordVerifySuccess(mode string) {
	c.verifySuccess.WithLabelValues(mode).Inc()
}

// RecordVerifyFailure は認証失敗をエラーコード別に記録する。
func (c *Collector) RecordVerifyFailure(code string) {
	c.verifyFail.WithLabelValues(code).Inc()
}

// RecordLookupLatency はMojang照会のレイテンシを記録する。
func (c *Collector) RecordLookupLatency(duration time.Duration) {
	c.lookupLatency.Observe(duration.Seconds())
}

// RecordNotificationSent は認証完了通知の送信を記録する。
func (c *Collector) RecordNotificationSent() {
	c.notificationsSent.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)
