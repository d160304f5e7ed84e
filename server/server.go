package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"courserush/config"
	"courserush/logger"
	"courserush/round"
)

// Game 服务端依赖的回合控制器能力
type Game interface {
	Join(ctx context.Context, id string) bool
	Leave(id string)
	SubmitVote(id, choice string) error
	ToggleAway(id string) (bool, error)
	Purchase(ctx context.Context, id, itemID string) error
	Equip(ctx context.Context, id, itemID string) error
	Inventory(ctx context.Context, id string) round.InventoryView
	Leaderboard(ctx context.Context, kind string, limit int) ([]round.LeaderboardRow, error)
	Status() round.Status
	Touch(elementID, participant string) bool
	Config() config.Config
	UpdateRound(r config.Round) error
	UpdateCatalog(types []string) error
}

// Server HTTP 与 WebSocket 接入
type Server struct {
	game     Game
	hub      *Hub
	metrics  *Metrics
	upgrader websocket.Upgrader
	started  time.Time
}

func New(game Game, hub *Hub, metrics *Metrics) *Server {
	return &Server{
		game:    game,
		hub:     hub,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		started: time.Now(),
	}
}

// Router 注册全部路由
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", s.handleWS)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/admin/config", s.getConfig)
	r.POST("/admin/config", s.postConfig)
	r.GET("/api/status", s.handleStatus)
	r.GET("/api/leaderboard", s.handleLeaderboard)
	return r
}

// handleWS WebSocket 接入：?player=alice，缺省时分配随机 id
func (s *Server) handleWS(c *gin.Context) {
	id := c.Query("player")
	if id == "" {
		id = uuid.NewString()
	}
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warnf("upgrade error: %v", err)
		return
	}

	conn := NewClientConn(id, ws)
	s.hub.Register(id, conn)
	s.metrics.ConnOpened()
	go conn.writePump()

	s.game.Join(context.Background(), id)
	conn.Enqueue(encode(Envelope{Type: MsgStatus, Data: s.game.Status()}))

	go func() {
		defer func() {
			s.metrics.ConnClosed()
			if s.hub.Unregister(id, conn) {
				s.game.Leave(id)
			}
		}()
		conn.readPump(func(req Request) { s.dispatch(conn, req) }, s.metrics.IncRateLimited)
	}()
}

// dispatch 处理单个请求；非法请求不改变状态，只回一个带错误的 ack
func (s *Server) dispatch(conn *ClientConn, req Request) {
	ctx := context.Background()
	id := conn.ID
	reply := Envelope{Type: MsgAck, Seq: req.Seq}

	var err error
	switch req.Type {
	case ReqVote:
		err = s.game.SubmitVote(id, req.Choice)
	case ReqAway:
		var away bool
		away, err = s.game.ToggleAway(id)
		reply.Data = map[string]bool{"away": away}
	case ReqPurchase:
		err = s.game.Purchase(ctx, id, req.Item)
	case ReqEquip:
		err = s.game.Equip(ctx, id, req.Item)
	case ReqInventory:
		reply.Type, reply.Data = MsgInventory, s.game.Inventory(ctx, id)
	case ReqLeaderboard:
		var rows []round.LeaderboardRow
		rows, err = s.game.Leaderboard(ctx, req.Kind, req.Limit)
		reply.Type, reply.Data = MsgLeaderboard, map[string]any{"kind": req.Kind, "rows": rows}
	case ReqTouch:
		reply.Data = map[string]bool{"hit": s.game.Touch(req.Element, id)}
	case ReqStatus:
		reply.Type, reply.Data = MsgStatus, s.game.Status()
	default:
		s.metrics.IncRejected("unknown")
		logger.Log.Debugf("unknown request type %q from %s", req.Type, id)
		return
	}

	if err != nil {
		s.metrics.IncRejected(req.Type)
		logger.Log.Debugf("request %s from %s ignored: %v", req.Type, id, err)
		reply = Envelope{Type: MsgAck, Seq: req.Seq, Error: err.Error()}
	} else {
		s.metrics.IncAccepted(req.Type)
	}
	conn.Enqueue(encode(reply))
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"round":          s.game.Status(),
		"connections":    s.hub.Count(),
		"metrics":        s.metrics.Snapshot(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// handleLeaderboard GET /api/leaderboard?kind=wins|coins&limit=N
func (s *Server) handleLeaderboard(c *gin.Context) {
	kind := c.DefaultQuery("kind", round.LeaderboardWins)
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := s.game.Leaderboard(c.Request.Context(), kind, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "rows": rows})
}
