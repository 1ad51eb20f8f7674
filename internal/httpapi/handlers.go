package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"healthpulse/internal/rediscache"
	"healthpulse/internal/repository"
)

// Handler 只读查询面
// 身份（用户ID、角色）由上游网关通过请求头传入，认证本身不在本服务内
type Handler struct {
	devices      *repository.DeviceRepository
	measurements *repository.MeasurementRepository
	sessions     *repository.SessionRepository
	events       *repository.AlertEventRepository
	cache        *rediscache.LatestCache
	ws           *WSHandler
	logger       *zap.Logger
}

// NewHandler 创建查询面处理器
func NewHandler(
	devices *repository.DeviceRepository,
	measurements *repository.MeasurementRepository,
	sessions *repository.SessionRepository,
	events *repository.AlertEventRepository,
	cache *rediscache.LatestCache,
	ws *WSHandler,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		devices:      devices,
		measurements: measurements,
		sessions:     sessions,
		events:       events,
		cache:        cache,
		ws:           ws,
		logger:       logger,
	}
}

// identity 从网关注入的请求头读取调用者身份
func identity(req *http.Request) (userID string, isAdmin bool) {
	return req.Header.Get("X-User-ID"), req.Header.Get("X-User-Role") == "admin"
}

// Healthz 健康检查
func (h *Handler) Healthz(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ServeWS WebSocket 订阅入口
func (h *Handler) ServeWS(w http.ResponseWriter, req *http.Request) {
	h.ws.Serve(w, req)
}

// ListDevices 列出全部设备
func (h *Handler) ListDevices(w http.ResponseWriter, req *http.Request) {
	devices, err := h.devices.ListDevices(req.Context())
	if err != nil {
		h.logger.Error("Failed to list devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// ListMeasurements 查询设备的测量记录
func (h *Handler) ListMeasurements(w http.ResponseWriter, req *http.Request) {
	deviceID := req.URL.Query().Get("deviceId")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	filter := repository.MeasurementFilter{
		DeviceID: deviceID,
		From:     parseTimeParam(req, "from"),
		To:       parseTimeParam(req, "to"),
		Limit:    parseIntParam(req, "limit"),
	}

	results, err := h.measurements.List(req.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list measurements",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list measurements")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// LatestMeasurement 设备最新读数（优先走缓存，未命中回落到数据库）
func (h *Handler) LatestMeasurement(w http.ResponseWriter, req *http.Request) {
	deviceID := req.URL.Query().Get("deviceId")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	if h.cache != nil {
		if m, err := h.cache.GetLatest(req.Context(), deviceID); err == nil {
			writeJSON(w, http.StatusOK, m)
			return
		} else if err != rediscache.ErrCacheMiss {
			h.logger.Warn("Latest cache lookup failed",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
	}

	m, err := h.measurements.Latest(req.Context(), deviceID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no measurements for device")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListSessions 查询设备的测量会话
func (h *Handler) ListSessions(w http.ResponseWriter, req *http.Request) {
	deviceID := req.URL.Query().Get("deviceId")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	filter := repository.SessionFilter{
		DeviceID: deviceID,
		From:     parseTimeParam(req, "from"),
		To:       parseTimeParam(req, "to"),
		Limit:    parseIntParam(req, "limit"),
	}

	sessions, err := h.sessions.List(req.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list sessions",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// ListAlertEvents 查询报警事件（非管理员只能看自己的）
func (h *Handler) ListAlertEvents(w http.ResponseWriter, req *http.Request) {
	filter := repository.AlertEventFilter{
		From: parseTimeParam(req, "from"),
		To:   parseTimeParam(req, "to"),
	}
	if deviceID := req.URL.Query().Get("deviceId"); deviceID != "" {
		filter.DeviceID = &deviceID
	}

	userID, isAdmin := identity(req)
	if !isAdmin {
		if userID == "" {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		filter.UserID = &userID
	}

	events, err := h.events.List(req.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list alert events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alert events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// AcknowledgeAlertEvent 确认报警事件
func (h *Handler) AcknowledgeAlertEvent(w http.ResponseWriter, req *http.Request, eventID string) {
	if err := h.events.Acknowledge(req.Context(), eventID); err != nil {
		writeError(w, http.StatusNotFound, "alert event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func parseTimeParam(req *http.Request, name string) *time.Time {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

func parseIntParam(req *http.Request, name string) int {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
