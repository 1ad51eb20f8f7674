package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（与只读查询面的体量相称，不引入第三方路由）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

// NewRouter 创建路由器并注册全部路由
func NewRouter(h *Handler, logger *zap.Logger) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}

	r.handleMethod(http.MethodGet, "/healthz", h.Healthz)
	r.handleMethod(http.MethodGet, "/ws", h.ServeWS)

	r.handleMethod(http.MethodGet, "/api/v1/devices", h.ListDevices)
	r.handleMethod(http.MethodGet, "/api/v1/measurements", h.ListMeasurements)
	r.handleMethod(http.MethodGet, "/api/v1/measurements/latest", h.LatestMeasurement)
	r.handleMethod(http.MethodGet, "/api/v1/sessions", h.ListSessions)
	r.handleMethod(http.MethodGet, "/api/v1/alerts/events", h.ListAlertEvents)

	// POST /api/v1/alerts/events/{id}/ack
	r.mux.HandleFunc("/api/v1/alerts/events/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rest := strings.TrimPrefix(req.URL.Path, "/api/v1/alerts/events/")
		eventID, ok := strings.CutSuffix(rest, "/ack")
		if !ok || eventID == "" || strings.Contains(eventID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.AcknowledgeAlertEvent(w, req, eventID)
	})

	return r
}

func (r *Router) handleMethod(method, pattern string, handler http.HandlerFunc) {
	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, req)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
