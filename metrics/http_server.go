package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ceyewan/idforge/xerrors"
)

// HTTP 服务端 RED 指标名
const (
	MetricHTTPServerRequestTotal    = "http_server_requests_total"
	MetricHTTPServerDurationSeconds = "http_server_request_duration_seconds"
)

// ID 接口多为亚毫秒级，桶从 0.5ms 起
var defaultHTTPDurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}

// HTTPRequest 一次 HTTP 请求的观测结果
type HTTPRequest struct {
	Method    string
	Route     string // 路由模板，例如 /v1/ids/:id/decode
	Status    int
	ErrorCode string // 业务错误码，成功时为空
	Duration  time.Duration
}

// HTTPServerMetrics HTTP 服务端请求数与耗时
type HTTPServerMetrics struct {
	service  string
	requests Counter
	duration Histogram
}

// NewHTTPServerMetrics 创建 HTTP 服务端指标，buckets 为空时使用默认耗时桶
func NewHTTPServerMetrics(m Meter, service string, buckets ...float64) (*HTTPServerMetrics, error) {
	if m == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "meter is required")
	}
	service = strings.TrimSpace(service)
	if service == "" {
		service = "unknown"
	}
	if len(buckets) == 0 {
		buckets = defaultHTTPDurationBuckets
	}

	requests, err := m.Counter(MetricHTTPServerRequestTotal, "Total number of HTTP requests.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request counter")
	}
	duration, err := m.Histogram(MetricHTTPServerDurationSeconds, "HTTP request duration in seconds.",
		WithUnit("s"), WithBuckets(buckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request duration histogram")
	}
	return &HTTPServerMetrics{service: service, requests: requests, duration: duration}, nil
}

// Observe 记录一次请求
func (m *HTTPServerMetrics) Observe(ctx context.Context, req HTTPRequest) {
	if m == nil {
		return
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	route := req.Route
	if route == "" {
		route = UnknownRoute
	}
	code := req.ErrorCode
	if code == "" {
		code = NoErrorCode
	}

	labels := []Label{
		L(LabelService, m.service),
		L(LabelMethod, method),
		L(LabelRoute, route),
		L(LabelStatusClass, HTTPStatusClass(req.Status)),
		L(LabelOutcome, HTTPOutcome(req.Status)),
		L(LabelErrorCode, code),
	}
	m.requests.Inc(ctx, labels...)
	m.duration.Record(ctx, req.Duration.Seconds(), labels...)
}
