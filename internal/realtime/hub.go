package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 事件名称（与订阅端约定的协议字段）
const (
	EventTelemetry = "telemetry"
	EventAlert     = "alert"
)

// ChannelAdmins 管理员频道
const ChannelAdmins = "admins"

// UserChannel 用户私有频道
func UserChannel(userID string) string {
	return "user:" + userID
}

// Event 推送给订阅者的事件信封
type Event struct {
	Event     string      `json:"event"`
	DeviceID  string      `json:"deviceId"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type channelMessage struct {
	channel string
	event   *Event
}

// Hub 管理 WebSocket 订阅者和按频道的消息广播
// 广播是 fire-and-forget：投递失败或订阅者缓冲打满只会跳过该订阅者
type Hub struct {
	clients    map[*Client]bool
	channels   map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *channelMessage
	stopCh     chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub 创建广播中心
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		channels:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *channelMessage, 256),
		stopCh:     make(chan struct{}),
		logger:     logger,
	}
}

// Run 启动广播主循环
func (h *Hub) Run() {
	for {
		select {
		case <-h.stopCh:
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.broadcastToChannel(msg)
		}
	}
}

// Stop 停止广播中心并断开全部订阅者
func (h *Hub) Stop() {
	close(h.stopCh)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
	}
	h.clients = make(map[*Client]bool)
	h.channels = make(map[string]map[*Client]bool)
}

// Register 注册订阅者（按其身份加入 admins / user:<id> 频道）
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopCh:
	}
}

// Unregister 注销订阅者
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopCh:
	}
}

// Broadcast 向指定频道广播事件
// 广播队列打满时事件被丢弃，不会阻塞管线
func (h *Hub) Broadcast(channel string, event *Event) {
	select {
	case h.broadcast <- &channelMessage{channel: channel, event: event}:
	default:
		h.logger.Warn("Broadcast queue full, dropping event",
			zap.String("channel", channel),
			zap.String("event", event.Event),
		)
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	for _, channel := range client.channels {
		if _, ok := h.channels[channel]; !ok {
			h.channels[channel] = make(map[*Client]bool)
		}
		h.channels[channel][client] = true
	}

	h.logger.Debug("Realtime subscriber registered",
		zap.String("client_id", client.id),
		zap.Strings("channels", client.channels),
	)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)
	for _, channel := range client.channels {
		if clients, ok := h.channels[channel]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.channels, channel)
			}
		}
	}
}

func (h *Hub) broadcastToChannel(msg *channelMessage) {
	data, err := json.Marshal(msg.event)
	if err != nil {
		h.logger.Error("Failed to marshal realtime event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.channels[msg.channel] {
		select {
		case client.send <- data:
		default:
			// 订阅者缓冲已满，跳过（不重试，不影响管线）
		}
	}
}

// SubscriberCount 频道当前订阅者数量
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.channels[channel])
}
