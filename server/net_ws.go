package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"courserush/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	// 每个连接的入站限流
	requestRate  = 10
	requestBurst = 20
)

// ClientConn 单个 WebSocket 连接：写协程独占写，读协程解析请求
type ClientConn struct {
	ID string

	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func NewClientConn(id string, ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ID:      id,
		ws:      ws,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(requestRate, requestBurst),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close 可重复调用；写协程随之退出
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Allow 入站限流
func (c *ClientConn) Allow() bool { return c.limiter.Allow() }

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端请求并交给 handle；超出限流的请求直接丢弃
func (c *ClientConn) readPump(handle func(req Request), limited func()) {
	defer c.Close()
	c.ws.SetReadLimit(1 << 16)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			logger.Log.Debugf("read %s: %v", c.ID, err)
			return
		}
		if !c.Allow() {
			if limited != nil {
				limited()
			}
			continue
		}
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Log.Debugf("bad request from %s: %v", c.ID, err)
			continue
		}
		handle(req)
	}
}
