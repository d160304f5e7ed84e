package store

import (
	"context"
	"sort"
	"sync"
)

// Memory 进程内实现全部后端接口；未配置 redis/postgres 时使用，也用于测试
type Memory struct {
	mu       sync.RWMutex
	balances map[string]int64
	wins     map[string]int64
	items    map[string]map[string]bool
	equipped map[string]string
	claims   map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int64),
		wins:     make(map[string]int64),
		items:    make(map[string]map[string]bool),
		equipped: make(map[string]string),
		claims:   make(map[string]bool),
	}
}

func (m *Memory) Balance(_ context.Context, id string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[id], nil
}

func (m *Memory) Award(_ context.Context, id string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.balances[id] + delta
	if v < 0 {
		v = 0
	}
	m.balances[id] = v
	return v, nil
}

func (m *Memory) Spend(_ context.Context, id string, amount int64) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.balances[id]
	if amount < 0 || cur < amount {
		return false, cur, nil
	}
	m.balances[id] = cur - amount
	return true, cur - amount, nil
}

func (m *Memory) TopBalances(_ context.Context, n int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return topN(m.balances, n), nil
}

func (m *Memory) RecordWin(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wins[id]++
	return m.wins[id], nil
}

func (m *Memory) Wins(_ context.Context, id string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wins[id], nil
}

func (m *Memory) TopWins(_ context.Context, n int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return topN(m.wins, n), nil
}

func (m *Memory) HasItem(_ context.Context, id, item string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[id][item], nil
}

func (m *Memory) AddItem(_ context.Context, id, item string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.items[id]
	if !ok {
		set = make(map[string]bool)
		m.items[id] = set
	}
	if set[item] {
		return false, nil
	}
	set[item] = true
	return true, nil
}

func (m *Memory) ListItems(_ context.Context, id string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.items[id]))
	for it := range m.items[id] {
		out = append(out, it)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Equip(_ context.Context, id, item string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equipped[id] = item
	return nil
}

func (m *Memory) Equipped(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.equipped[id], nil
}

func (m *Memory) ClaimDaily(_ context.Context, id, day string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id + ":" + day
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

// topN 按数值降序、ID 升序排序
func topN(totals map[string]int64, n int) []Entry {
	out := make([]Entry, 0, len(totals))
	for id, v := range totals {
		out = append(out, Entry{ID: id, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].ID < out[j].ID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
