package round

import (
	"context"
	"errors"
	"time"

	"courserush/course"
	"courserush/store"
)

var (
	ErrUnknownOption     = errors.New("option not on ballot")
	ErrNotVoting         = errors.New("voting is closed")
	ErrUnknownItem       = errors.New("unknown item")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrNotOwned          = errors.New("item not owned")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownBoard      = errors.New("unknown leaderboard")
	ErrUnknownPlayer     = errors.New("unknown participant")
)

// Balances 金币存储；失败时由实现自行降级，不返回错误
type Balances interface {
	Get(ctx context.Context, id string) int64
	Award(ctx context.Context, id string, delta int64) int64
	TrySpend(ctx context.Context, id string, amount int64) bool
	Top(ctx context.Context, n int) []store.Entry
}

// Wins 胜场存储
type Wins interface {
	RecordWin(ctx context.Context, id string) int64
	GetWins(ctx context.Context, id string) int64
	TopN(ctx context.Context, n int) []store.Entry
}

// Inventory 道具、装备与每日奖励
type Inventory interface {
	HasItem(ctx context.Context, id, item string) bool
	AddItem(ctx context.Context, id, item string) bool
	ListItems(ctx context.Context, id string) []string
	Equip(ctx context.Context, id, item string)
	Equipped(ctx context.Context, id string) string
	ClaimDaily(ctx context.Context, id string, now time.Time) bool
}

// AchievementChecker 在奖励或胜场变化后调用；每项成就对每人至多解锁一次
type AchievementChecker interface {
	CheckAll(ctx context.Context, id string) []string
}

// Presenter 单向广播给客户端
type Presenter interface {
	RoundStatus(s Status)
	FinishAnnounced(f FinishNotice)
	VoteOptions(v VoteUpdate)
	BalanceUpdate(id string, balance int64)
	LeaderboardUpdate(kind string, rows []LeaderboardRow)
	AchievementUnlocked(id string, a Achievement)
	CourseBuilt(c CourseSnapshot)
	Teleported(id string, pose course.Pose)
}

// Observer 指标钩子
type Observer interface {
	PhaseEntered(p Phase)
	FinishRecorded(place int)
	VoteAccepted()
	CourseBuilt(courseType string, elements int)
	EventDropped()
}

type nopPresenter struct{}

func (nopPresenter) RoundStatus(Status)                         {}
func (nopPresenter) FinishAnnounced(FinishNotice)               {}
func (nopPresenter) VoteOptions(VoteUpdate)                     {}
func (nopPresenter) BalanceUpdate(string, int64)                {}
func (nopPresenter) LeaderboardUpdate(string, []LeaderboardRow) {}
func (nopPresenter) AchievementUnlocked(string, Achievement)    {}
func (nopPresenter) CourseBuilt(CourseSnapshot)                 {}
func (nopPresenter) Teleported(string, course.Pose)             {}

type nopObserver struct{}

func (nopObserver) PhaseEntered(Phase)      {}
func (nopObserver) FinishRecorded(int)      {}
func (nopObserver) VoteAccepted()           {}
func (nopObserver) CourseBuilt(string, int) {}
func (nopObserver) EventDropped()           {}
