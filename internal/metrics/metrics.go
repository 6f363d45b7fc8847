// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 失敗理由・結果ラベルの値。
const (
	ReasonQuery      = "query"
	ReasonUnexpected = "unexpected"
	ReasonCanceled   = "canceled"

	ResultSuccess       = "success"
	ResultInvalid       = "invalid_credentials"
	ResultProviderError = "provider_error"
	ResultUnexpected    = "unexpected"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ダッシュボード、ハンドラー、ワーカーから利用する。
type MetricsCollector interface {
	RecordFetchSuccess(rows int)
	RecordFetchFailure(reason string)
	RecordFetchLatency(duration time.Duration)
	RecordStaleDiscarded()
	RecordSignIn(result string)
	RecordSignOut(result string)
	RecordHTTPStatus(statusCode int)
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess    prometheus.Counter
	fetchFail       *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	rowsFetched     prometheus.Gauge
	staleDiscarded  prometheus.Counter
	signIn          *prometheus.CounterVec
	signOut         *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "demodash_fetch_success_total",
			Help: "demo_data取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "demodash_fetch_fail_total",
			Help: "demo_data取得失敗の合計数（理由別）",
		}, []string{"reason"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "demodash_fetch_latency_seconds",
			Help:    "demo_data取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		rowsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "demodash_rows_fetched",
			Help: "直近の取得で返された行数",
		}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "demodash_fetch_stale_discarded_total",
			Help: "後発の取得に追い越されて破棄された結果の合計数",
		}),
		signIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "demodash_sign_in_total",
			Help: "サインイン試行の合計数（結果別）",
		}, []string{"result"}),
		signOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "demodash_sign_out_total",
			Help: "サインアウト試行の合計数（結果別）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "demodash_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "demodash_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.rowsFetched,
		c.staleDiscarded,
		c.signIn,
		c.signOut,
		c.httpStatus,
		c.sessionsCleaned,
	)

	return c
}

// RecordFetchSuccess は取得成功と行数を記録する。
func (c *Collector) RecordFetchSuccess(rows int) {
	c.fetchSuccess.Inc()
	c.rowsFetched.Set(float64(rows))
}

// RecordFetchFailure は取得失敗を記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordStaleDiscarded は破棄された古い取得結果を記録する。
func (c *Collector) RecordStaleDiscarded() {
	c.staleDiscarded.Inc()
}

// RecordSignIn はサインインの結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIn.WithLabelValues(result).Inc()
}

// RecordSignOut はサインアウトの結果を記録する。
func (c *Collector) RecordSignOut(result string) {
	c.signOut.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsCleaned は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordFetchSuccess(int)           {}
func (Nop) RecordFetchFailure(string)        {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordStaleDiscarded()            {}
func (Nop) RecordSignIn(string)              {}
func (Nop) RecordSignOut(string)             {}
func (Nop) RecordHTTPStatus(int)             {}
func (Nop) RecordSessionsCleaned(int64)      {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
