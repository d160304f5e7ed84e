package server

import (
	"sync"

	"courserush/course"
	"courserush/round"
)

// Sender 连接的发送端；满或已关闭时返回 false
type Sender interface {
	Enqueue(b []byte) bool
	Close()
}

// Hub 按参与者 id 管理在线连接，并实现 round.Presenter
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Sender
	metrics *Metrics
}

func NewHub(metrics *Metrics) *Hub {
	return &Hub{clients: make(map[string]Sender), metrics: metrics}
}

// Register 同一 id 重复连接时关闭旧连接
func (h *Hub) Register(id string, s Sender) {
	h.mu.Lock()
	old := h.clients[id]
	h.clients[id] = s
	h.mu.Unlock()
	if old != nil && old != s {
		old.Close()
	}
}

// Unregister 仅当 s 仍是该 id 的当前连接时移除，返回是否移除
func (h *Hub) Unregister(id string, s Sender) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[id] != s {
		return false
	}
	delete(h.clients, id)
	return true
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(b []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.clients {
		h.deliver(s, b)
	}
}

func (h *Hub) SendTo(id string, b []byte) {
	h.mu.RLock()
	s := h.clients[id]
	h.mu.RUnlock()
	if s != nil {
		h.deliver(s, b)
	}
}

func (h *Hub) deliver(s Sender, b []byte) {
	if !s.Enqueue(b) && h.metrics != nil {
		h.metrics.IncSendDropped()
	}
}

// round.Presenter

func (h *Hub) RoundStatus(s round.Status) {
	h.Broadcast(encode(Envelope{Type: MsgStatus, Data: s}))
}

func (h *Hub) FinishAnnounced(f round.FinishNotice) {
	h.Broadcast(encode(Envelope{Type: MsgFinish, Data: f}))
}

func (h *Hub) VoteOptions(v round.VoteUpdate) {
	h.Broadcast(encode(Envelope{Type: MsgVotes, Data: v}))
}

func (h *Hub) BalanceUpdate(id string, balance int64) {
	h.SendTo(id, encode(Envelope{Type: MsgBalance, Data: map[string]int64{"balance": balance}}))
}

func (h *Hub) LeaderboardUpdate(kind string, rows []round.LeaderboardRow) {
	h.Broadcast(encode(Envelope{Type: MsgLeaderboard, Data: map[string]any{"kind": kind, "rows": rows}}))
}

func (h *Hub) AchievementUnlocked(id string, a round.Achievement) {
	h.SendTo(id, encode(Envelope{Type: MsgAchievement, Data: a}))
}

func (h *Hub) CourseBuilt(c round.CourseSnapshot) {
	h.Broadcast(encode(Envelope{Type: MsgCourse, Data: c}))
}

func (h *Hub) Teleported(id string, pose course.Pose) {
	h.SendTo(id, encode(Envelope{Type: MsgTeleport, Data: pose}))
}
