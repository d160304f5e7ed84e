package course

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"courserush/logger"
)

// Clock 后台循环的计时源；测试中可替换
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock 基于 time.After 的真实时钟
var RealClock Clock = realClock{}

// lifetime 一个课程实例的生命周期令牌：撤销后所有属于它的循环在下一次迭代内退出
type lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newLifetime() *lifetime {
	ctx, cancel := context.WithCancel(context.Background())
	return &lifetime{ctx: ctx, cancel: cancel}
}

// Arena 元素容器，同时持有当前课程实例的生命周期
type Arena struct {
	clock Clock

	mu       sync.RWMutex
	elements map[string]*Element
	order    []string
	life     *lifetime

	loops atomic.Int64
}

// NewArena clock 为 nil 时使用真实时钟
func NewArena(clock Clock) *Arena {
	if clock == nil {
		clock = RealClock
	}
	return &Arena{
		clock:    clock,
		elements: make(map[string]*Element),
		life:     newLifetime(),
	}
}

// Add 将元素放入容器并标记为存活
func (a *Arena) Add(e *Element) *Element {
	a.mu.Lock()
	defer a.mu.Unlock()
	e.alive.Store(true)
	if _, ok := a.elements[e.ID]; !ok {
		a.order = append(a.order, e.ID)
	}
	a.elements[e.ID] = e
	return e
}

// Remove 销毁单个元素
func (a *Arena) Remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.elements[id]
	if !ok {
		return
	}
	e.alive.Store(false)
	delete(a.elements, id)
	for i, oid := range a.order {
		if oid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *Arena) Get(id string) (*Element, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.elements[id]
	return e, ok
}

// Elements 按插入顺序返回当前所有元素
func (a *Arena) Elements() []*Element {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Element, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.elements[id])
	}
	return out
}

func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.elements)
}

// Loops 当前仍在运行的后台循环数
func (a *Arena) Loops() int64 { return a.loops.Load() }

// Touch 宿主接触回调入口：参与者碰到了某个元素
func (a *Arena) Touch(elementID, participant string) bool {
	e, ok := a.Get(elementID)
	if !ok {
		return false
	}
	return e.Touch(participant)
}

// Clear 撤销当前实例：等待所有后台循环退出后清空全部元素
func (a *Arena) Clear() {
	a.mu.Lock()
	old := a.life
	a.life = newLifetime()
	a.mu.Unlock()

	old.mu.Lock()
	old.closed = true
	old.cancel()
	old.mu.Unlock()
	// 不持有任何锁等待，循环内部可能仍在调用 Remove
	old.wg.Wait()

	a.mu.Lock()
	for _, e := range a.elements {
		e.alive.Store(false)
	}
	a.elements = make(map[string]*Element)
	a.order = nil
	a.mu.Unlock()
}

func (a *Arena) current() *lifetime {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.life
}

// spawn 在给定实例下启动后台循环；实例已撤销则不启动
func (a *Arena) spawn(life *lifetime, name string, fn func(ctx context.Context)) {
	life.mu.Lock()
	if life.closed {
		life.mu.Unlock()
		return
	}
	life.wg.Add(1)
	life.mu.Unlock()

	a.loops.Add(1)
	go func() {
		defer life.wg.Done()
		defer a.loops.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorf("element loop %s panicked: %v", name, r)
			}
		}()
		fn(life.ctx)
	}()
}

// sleep 挂起 d；实例撤销时立即返回 false
func (a *Arena) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-a.clock.After(d):
		return ctx.Err() == nil
	}
}

// animate 以固定步长驱动一个元素，fn 接收该元素自己的累计时间
func (a *Arena) animate(life *lifetime, e *Element, step time.Duration, fn func(t time.Duration)) {
	a.spawn(life, e.Kind.String()+":"+e.ID, func(ctx context.Context) {
		var t time.Duration
		for {
			if ctx.Err() != nil || !e.Alive() {
				logger.Log.Debugf("element loop %s exited", e.ID)
				return
			}
			fn(t)
			if !a.sleep(ctx, step) {
				return
			}
			t += step
		}
	})
}
