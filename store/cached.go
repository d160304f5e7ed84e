package store

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"courserush/logger"
)

// Options 门面的超时与异步重试参数
type Options struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
	// OnDegraded 每次回退到缓存值时调用（用于指标）
	OnDegraded func(store, op string)
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 500 * time.Millisecond
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 200 * time.Millisecond
	}
	return o
}

type pendingWrite struct {
	op string
	// once 非幂等写入（累加类）：结果不确定时不再重放
	once bool
	fn   func(ctx context.Context) error
}

// uncertain 超时类错误：请求可能已在后端提交
func uncertain(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// writeBehind 失败写入的异步重试队列；队列满或重试耗尽即丢弃
type writeBehind struct {
	name  string
	opts  Options
	queue chan pendingWrite
	once  sync.Once
}

func newWriteBehind(name string, opts Options) *writeBehind {
	return &writeBehind{name: name, opts: opts, queue: make(chan pendingWrite, 1024)}
}

func (w *writeBehind) degraded(op string, err error) {
	logger.Log.Warnf("%s %s degraded: %v", w.name, op, err)
	if w.opts.OnDegraded != nil {
		w.opts.OnDegraded(w.name, op)
	}
}

// enqueue 加入重试队列；once 写入在结果不确定时直接放弃，避免重复累加
func (w *writeBehind) enqueue(op string, once bool, err error, fn func(ctx context.Context) error) {
	if once && uncertain(err) {
		logger.Log.Warnf("%s %s outcome unknown, not retried: %v", w.name, op, err)
		return
	}
	select {
	case w.queue <- pendingWrite{op: op, once: once, fn: fn}:
	default:
		logger.Log.Warnf("%s retry queue full, dropping %s", w.name, op)
	}
}

// start 启动重试协程，ctx 结束即退出；重复调用无效果
func (w *writeBehind) start(ctx context.Context) {
	w.once.Do(func() {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case pw := <-w.queue:
					w.retry(ctx, pw)
				}
			}
		}()
	})
}

func (w *writeBehind) retry(ctx context.Context, pw pendingWrite) {
	for i := 0; i < w.opts.Attempts; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.Backoff * time.Duration(i+1)):
		}
		cctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
		err := pw.fn(cctx)
		cancel()
		if err == nil {
			logger.Log.Debugf("%s %s flushed after %d retries", w.name, pw.op, i+1)
			return
		}
		if pw.once && uncertain(err) {
			logger.Log.Warnf("%s %s outcome unknown after retry, giving up: %v", w.name, pw.op, err)
			return
		}
	}
	logger.Log.Warnf("%s %s dropped after %d retries", w.name, pw.op, w.opts.Attempts)
}

// Balances 金币门面：后端失败时回退到会话缓存，读默认 0，写入异步重试
type Balances struct {
	backend BalanceBackend
	opts    Options
	wb      *writeBehind

	mu    sync.Mutex
	cache map[string]int64
}

func NewBalances(backend BalanceBackend, opts Options) *Balances {
	opts = opts.withDefaults()
	return &Balances{
		backend: backend,
		opts:    opts,
		wb:      newWriteBehind("balances", opts),
		cache:   make(map[string]int64),
	}
}

func (b *Balances) Start(ctx context.Context) { b.wb.start(ctx) }

func (b *Balances) remember(id string, v int64) {
	b.mu.Lock()
	b.cache[id] = v
	b.mu.Unlock()
}

func (b *Balances) Get(ctx context.Context, id string) int64 {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	v, err := b.backend.Balance(ctx, id)
	if err != nil {
		b.wb.degraded("get", err)
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.cache[id]
	}
	b.remember(id, v)
	return v
}

// Award 增减金币，结果不小于 0
func (b *Balances) Award(ctx context.Context, id string, delta int64) int64 {
	cctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	v, err := b.backend.Award(cctx, id, delta)
	if err == nil {
		b.remember(id, v)
		return v
	}
	b.wb.degraded("award", err)
	b.wb.enqueue("award", true, err, func(ctx context.Context) error {
		_, err := b.backend.Award(ctx, id, delta)
		return err
	})
	b.mu.Lock()
	defer b.mu.Unlock()
	v = b.cache[id] + delta
	if v < 0 {
		v = 0
	}
	b.cache[id] = v
	return v
}

// TrySpend 余额足够时扣除并返回 true
func (b *Balances) TrySpend(ctx context.Context, id string, amount int64) bool {
	if amount < 0 {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	ok, v, err := b.backend.Spend(cctx, id, amount)
	if err == nil {
		b.remember(id, v)
		return ok
	}
	b.wb.degraded("spend", err)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cache[id] < amount {
		return false
	}
	b.cache[id] -= amount
	b.wb.enqueue("spend", true, err, func(ctx context.Context) error {
		_, err := b.backend.Award(ctx, id, -amount)
		return err
	})
	return true
}

// Top 金币排行
func (b *Balances) Top(ctx context.Context, n int) []Entry {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	top, err := b.backend.TopBalances(ctx, n)
	if err != nil {
		b.wb.degraded("top", err)
		b.mu.Lock()
		defer b.mu.Unlock()
		return topN(b.cache, n)
	}
	return top
}

// Wins 胜场门面
type Wins struct {
	backend WinBackend
	opts    Options
	wb      *writeBehind

	mu    sync.Mutex
	cache map[string]int64
}

func NewWins(backend WinBackend, opts Options) *Wins {
	opts = opts.withDefaults()
	return &Wins{
		backend: backend,
		opts:    opts,
		wb:      newWriteBehind("wins", opts),
		cache:   make(map[string]int64),
	}
}

func (w *Wins) Start(ctx context.Context) { w.wb.start(ctx) }

func (w *Wins) RecordWin(ctx context.Context, id string) int64 {
	cctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()
	total, err := w.backend.RecordWin(cctx, id)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		w.cache[id] = total
		return total
	}
	w.wb.degraded("record", err)
	w.wb.enqueue("record", true, err, func(ctx context.Context) error {
		_, err := w.backend.RecordWin(ctx, id)
		return err
	})
	w.cache[id]++
	return w.cache[id]
}

func (w *Wins) GetWins(ctx context.Context, id string) int64 {
	ctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()
	total, err := w.backend.Wins(ctx, id)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.wb.degraded("get", err)
		return w.cache[id]
	}
	w.cache[id] = total
	return total
}

func (w *Wins) TopN(ctx context.Context, n int) []Entry {
	ctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()
	top, err := w.backend.TopWins(ctx, n)
	if err != nil {
		w.wb.degraded("top", err)
		w.mu.Lock()
		defer w.mu.Unlock()
		return topN(w.cache, n)
	}
	return top
}

// Inventory 道具门面；缓存为会话内已知的持有集合
type Inventory struct {
	backend InventoryBackend
	daily   DailyBackend
	opts    Options
	wb      *writeBehind

	mu       sync.Mutex
	items    map[string]map[string]bool
	equipped map[string]string
}

func NewInventory(backend InventoryBackend, daily DailyBackend, opts Options) *Inventory {
	opts = opts.withDefaults()
	return &Inventory{
		backend:  backend,
		daily:    daily,
		opts:     opts,
		wb:       newWriteBehind("inventory", opts),
		items:    make(map[string]map[string]bool),
		equipped: make(map[string]string),
	}
}

func (inv *Inventory) Start(ctx context.Context) { inv.wb.start(ctx) }

func (inv *Inventory) cached(id, item string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items[id][item]
}

func (inv *Inventory) remember(id, item string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.items[id] == nil {
		inv.items[id] = make(map[string]bool)
	}
	inv.items[id][item] = true
}

func (inv *Inventory) HasItem(ctx context.Context, id, item string) bool {
	ctx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()
	ok, err := inv.backend.HasItem(ctx, id, item)
	if err != nil {
		inv.wb.degraded("has", err)
		return inv.cached(id, item)
	}
	if ok {
		inv.remember(id, item)
	}
	return ok
}

// AddItem 返回是否为新获得
func (inv *Inventory) AddItem(ctx context.Context, id, item string) bool {
	cctx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()
	added, err := inv.backend.AddItem(cctx, id, item)
	if err != nil {
		inv.wb.degraded("add", err)
		inv.wb.enqueue("add", false, err, func(ctx context.Context) error {
			_, err := inv.backend.AddItem(ctx, id, item)
			return err
		})
		added = !inv.cached(id, item)
	}
	inv.remember(id, item)
	return added
}

func (inv *Inventory) ListItems(ctx context.Context, id string) []string {
	ctx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()
	items, err := inv.backend.ListItems(ctx, id)
	if err == nil {
		for _, it := range items {
			inv.remember(id, it)
		}
		return items
	}
	inv.wb.degraded("list", err)
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]string, 0, len(inv.items[id]))
	for it := range inv.items[id] {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

func (inv *Inventory) Equip(ctx context.Context, id, item string) {
	cctx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()
	if err := inv.backend.Equip(cctx, id, item); err != nil {
		inv.wb.degraded("equip", err)
		inv.wb.enqueue("equip", false, err, func(ctx context.Context) error {
			return inv.backend.Equip(ctx, id, item)
		})
	}
	inv.mu.Lock()
	inv.equipped[id] = item
	inv.mu.Unlock()
}

func (inv *Inventory) Equipped(ctx context.Context, id string) string {
	ctx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()
	item, err := inv.backend.Equipped(ctx, id)
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if err != nil {
		inv.wb.degraded("equipped", err)
		return inv.equipped[id]
	}
	inv.equipped[id] = item
	return item
}

// ClaimDaily 当日首次领取返回 true；后端不可用时不发放
func (inv *Inventory) ClaimDaily(ctx context.Context, id string, now time.Time) bool {
	if inv.daily == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()
	ok, err := inv.daily.ClaimDaily(ctx, id, now.UTC().Format("2006-01-02"))
	if err != nil {
		inv.wb.degraded("daily", err)
		return false
	}
	return ok
}
