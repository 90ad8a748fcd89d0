package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterRequestSizeMetrics 注册请求体大小指标，票价/需求数组较长时用于观察负载。
func (m *Metrics) RegisterRequestSizeMetrics() {
	if m == nil || m.HTTPRequestSizeBytes != nil {
		return
	}

	m.HTTPRequestSizeBytes = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_request_size_bytes",
		Help:    "HTTP request body size in bytes",
		Buckets: prometheus.ExponentialBuckets(128, 2, 10),
	}, []string{"method", "path"})
}

// ObserveRequestSize 记录一次请求体大小，未注册时忽略。
func (m *Metrics) ObserveRequestSize(method, path string, size int64) {
	if m == nil || m.HTTPRequestSizeBytes == nil || size < 0 {
		return
	}
	m.HTTPRequestSizeBytes.WithLabelValues(method, path).Observe(float64(size))
}
