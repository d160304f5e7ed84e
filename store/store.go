package store

import (
	"context"
	"errors"
)

// ErrUnavailable 持久化后端暂时不可用
var ErrUnavailable = errors.New("store unavailable")

// Entry 排行榜条目
type Entry struct {
	ID    string `json:"id"`
	Total int64  `json:"total"`
}

// BalanceBackend 金币后端；Award 结果不小于 0
type BalanceBackend interface {
	Balance(ctx context.Context, id string) (int64, error)
	Award(ctx context.Context, id string, delta int64) (int64, error)
	Spend(ctx context.Context, id string, amount int64) (bool, int64, error)
	TopBalances(ctx context.Context, n int) ([]Entry, error)
}

// WinBackend 胜场后端
type WinBackend interface {
	RecordWin(ctx context.Context, id string) (int64, error)
	Wins(ctx context.Context, id string) (int64, error)
	TopWins(ctx context.Context, n int) ([]Entry, error)
}

// InventoryBackend 道具后端；AddItem 返回是否为新获得
type InventoryBackend interface {
	HasItem(ctx context.Context, id, item string) (bool, error)
	AddItem(ctx context.Context, id, item string) (bool, error)
	ListItems(ctx context.Context, id string) ([]string, error)
	Equip(ctx context.Context, id, item string) error
	Equipped(ctx context.Context, id string) (string, error)
}

// DailyBackend 每日登录奖励领取记录；day 形如 2006-01-02
type DailyBackend interface {
	ClaimDaily(ctx context.Context, id, day string) (bool, error)
}
