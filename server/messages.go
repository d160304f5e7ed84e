package server

import "encoding/json"

// Request 客户端请求（WebSocket 文本消息）
// 示例：{"type":"vote","choice":"Maze","seq":3}
type Request struct {
	Type    string `json:"type"`
	Choice  string `json:"choice,omitempty"`
	Item    string `json:"item,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Element string `json:"element,omitempty"`
	Seq     int64  `json:"seq,omitempty"` // 客户端序列号，原样带回应答
}

// 入站请求类型
const (
	ReqVote        = "vote"
	ReqAway        = "away"
	ReqPurchase    = "purchase"
	ReqEquip       = "equip"
	ReqInventory   = "inventory"
	ReqLeaderboard = "leaderboard"
	ReqTouch       = "touch"
	ReqStatus      = "status"
)

// 出站事件类型
const (
	MsgStatus      = "status"
	MsgFinish      = "finish"
	MsgVotes       = "votes"
	MsgBalance     = "balance"
	MsgLeaderboard = "leaderboard"
	MsgAchievement = "achievement"
	MsgCourse      = "course"
	MsgTeleport    = "teleport"
	MsgInventory   = "inventory"
	MsgAck         = "ack"
)

// Envelope 所有出站消息的外层结构
type Envelope struct {
	Type  string `json:"type"`
	Seq   int64  `json:"seq,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

func encode(env Envelope) []byte {
	b, _ := json.Marshal(env)
	return b
}
