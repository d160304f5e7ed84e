package round

import (
	"context"
	"sort"
	"sync"

	"courserush/logger"
)

// Achievement 成就定义
type Achievement struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type progress struct {
	wins    int64
	balance int64
	items   int
}

type rule struct {
	Achievement
	met func(p progress) bool
}

var rules = []rule{
	{Achievement{"first_finish", "First Finish"}, func(p progress) bool { return p.wins >= 1 }},
	{Achievement{"regular", "Regular"}, func(p progress) bool { return p.wins >= 10 }},
	{Achievement{"marathon", "Marathon"}, func(p progress) bool { return p.wins >= 50 }},
	{Achievement{"saver", "Saver"}, func(p progress) bool { return p.balance >= 250 }},
	{Achievement{"tycoon", "Tycoon"}, func(p progress) bool { return p.balance >= 1000 }},
	{Achievement{"collector", "Collector"}, func(p progress) bool { return p.items >= 3 }},
}

// Achievements 成就评估器；已解锁集合保存在会话内存中
type Achievements struct {
	balances  Balances
	wins      Wins
	inventory Inventory
	presenter Presenter

	mu       sync.Mutex
	unlocked map[string]map[string]bool
}

func NewAchievements(b Balances, w Wins, inv Inventory, p Presenter) *Achievements {
	if p == nil {
		p = nopPresenter{}
	}
	return &Achievements{
		balances:  b,
		wins:      w,
		inventory: inv,
		presenter: p,
		unlocked:  make(map[string]map[string]bool),
	}
}

// CheckAll 重新评估全部成就，返回本次新解锁的 id
func (a *Achievements) CheckAll(ctx context.Context, id string) []string {
	p := progress{
		wins:    a.wins.GetWins(ctx, id),
		balance: a.balances.Get(ctx, id),
		items:   len(a.inventory.ListItems(ctx, id)),
	}

	var fresh []Achievement
	a.mu.Lock()
	got := a.unlocked[id]
	if got == nil {
		got = make(map[string]bool)
		a.unlocked[id] = got
	}
	for _, r := range rules {
		if !got[r.ID] && r.met(p) {
			got[r.ID] = true
			fresh = append(fresh, r.Achievement)
		}
	}
	a.mu.Unlock()

	ids := make([]string, 0, len(fresh))
	for _, ach := range fresh {
		logger.Log.Infof("achievement unlocked: %s %s", id, ach.ID)
		a.presenter.AchievementUnlocked(id, ach)
		ids = append(ids, ach.ID)
	}
	return ids
}

// Unlocked 已解锁成就 id，排序后返回
func (a *Achievements) Unlocked(id string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.unlocked[id]))
	for k := range a.unlocked[id] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
