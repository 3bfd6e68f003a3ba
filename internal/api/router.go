package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StatusProvider 服务运行状态
type StatusProvider interface {
	MQTTConnected() bool
	ActiveSequences() int
}

// ReadingCounter 按标签统计已存储的读数
type ReadingCounter interface {
	CountByTag(ctx context.Context, gateway, tagMAC string) (int64, error)
}

// Handler 健康检查与查询接口
type Handler struct {
	status  StatusProvider
	counter ReadingCounter
	logger  *zap.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(status StatusProvider, counter ReadingCounter, logger *zap.Logger) *Handler {
	return &Handler{
		status:  status,
		counter: counter,
		logger:  logger,
	}
}

// NewRouter 组装路由
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/sequences", h.Sequences)
	r.Get("/tags/{gateway}/{tag}/readings/count", h.ReadingCount)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// Health MQTT 断开时返回 503
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	connected := h.status.MQTTConnected()

	body := map[string]interface{}{
		"status":           "ok",
		"mqtt_connected":   connected,
		"active_sequences": h.status.ActiveSequences(),
	}
	code := http.StatusOK
	if !connected {
		body["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, code, body)
}

// Sequences 当前活跃的重组序列数
func (h *Handler) Sequences(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]int{"active": h.status.ActiveSequences()})
}

// ReadingCount 查询某个标签已存储的读数行数
func (h *Handler) ReadingCount(w http.ResponseWriter, r *http.Request) {
	gateway := chi.URLParam(r, "gateway")
	tag := chi.URLParam(r, "tag")

	count, err := h.counter.CountByTag(r.Context(), gateway, tag)
	if err != nil {
		h.logger.Error("Failed to count tag readings",
			zap.String("gateway", gateway),
			zap.String("tag_mac", tag),
			zap.Error(err),
		)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count readings"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"gateway": gateway,
		"tag_mac": tag,
		"count":   count,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}
