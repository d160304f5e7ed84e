package round

import "sync"

// Finishers 本回合完成者：列表顺序即完成顺序，集合用于去重
type Finishers struct {
	mu    sync.Mutex
	order []string
	seen  map[string]struct{}
}

func NewFinishers() *Finishers {
	return &Finishers{seen: make(map[string]struct{})}
}

// Record 首次完成时追加并返回名次（从 1 开始）；重复上报返回 false
func (f *Finishers) Record(id string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[id]; ok {
		return 0, false
	}
	f.seen[id] = struct{}{}
	f.order = append(f.order, id)
	return len(f.order), true
}

// List 完成顺序副本
func (f *Finishers) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// Reset 列表与集合一起清空
func (f *Finishers) Reset() {
	f.mu.Lock()
	f.order = nil
	f.seen = make(map[string]struct{})
	f.mu.Unlock()
}
