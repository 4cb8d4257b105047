package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthFunc 返回健康报告，以及服务是否健康
type HealthFunc func(ctx context.Context) (report any, healthy bool)

// healthTimeout 单次健康检查的上限
const healthTimeout = 5 * time.Second

// NewHandler 构建只暴露 /metrics 与 /health 的 mux
func NewHandler(gatherer prometheus.Gatherer, health HealthFunc, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		report, healthy := health(ctx)
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.Warn("failed to write health report", zap.Error(err))
		}
	})
	return mux
}
