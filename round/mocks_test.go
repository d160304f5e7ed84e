package round

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"courserush/config"
	"courserush/course"
	"courserush/store"
)

// --- TickerFactory ---

// manualTicker 由测试推送节拍；通道无缓冲，推送返回即表示驱动已取走上一拍之后的这一拍
type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) Create(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() {}
}

func (m *manualTicker) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case m.ch <- time.Now():
		case <-time.After(2 * time.Second):
			t.Fatalf("controller did not take tick %d/%d", i+1, n)
		}
	}
}

// --- Balances ---

type MockBalances struct {
	mock.Mock
}

func (m *MockBalances) Get(ctx context.Context, id string) int64 {
	args := m.Called(ctx, id)
	return args.Get(0).(int64)
}

func (m *MockBalances) Award(ctx context.Context, id string, delta int64) int64 {
	args := m.Called(ctx, id, delta)
	return args.Get(0).(int64)
}

func (m *MockBalances) TrySpend(ctx context.Context, id string, amount int64) bool {
	args := m.Called(ctx, id, amount)
	return args.Bool(0)
}

func (m *MockBalances) Top(ctx context.Context, n int) []store.Entry {
	args := m.Called(ctx, n)
	return args.Get(0).([]store.Entry)
}

// --- Presenter ---

type recordingPresenter struct {
	mu           sync.Mutex
	statuses     []Status
	finishes     []FinishNotice
	votes        []VoteUpdate
	balances     map[string]int64
	boards       map[string][]LeaderboardRow
	achievements map[string][]string
	courses      []CourseSnapshot
	teleports    map[string]course.Pose
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{
		balances:     make(map[string]int64),
		boards:       make(map[string][]LeaderboardRow),
		achievements: make(map[string][]string),
		teleports:    make(map[string]course.Pose),
	}
}

func (p *recordingPresenter) RoundStatus(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, s)
}

func (p *recordingPresenter) FinishAnnounced(f FinishNotice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishes = append(p.finishes, f)
}

func (p *recordingPresenter) VoteOptions(v VoteUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.votes = append(p.votes, v)
}

func (p *recordingPresenter) BalanceUpdate(id string, balance int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[id] = balance
}

func (p *recordingPresenter) LeaderboardUpdate(kind string, rows []LeaderboardRow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boards[kind] = rows
}

func (p *recordingPresenter) AchievementUnlocked(id string, a Achievement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.achievements[id] = append(p.achievements[id], a.ID)
}

func (p *recordingPresenter) CourseBuilt(c CourseSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.courses = append(p.courses, c)
}

func (p *recordingPresenter) Teleported(id string, pose course.Pose) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teleports[id] = pose
}

func (p *recordingPresenter) finishCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.finishes)
}

// --- helpers ---

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Round.DailyBonus = 0
	cfg.CourseTypes = []string{course.TypeMaze, course.TypeClassic, course.TypeSweeper}
	return cfg
}

type fixture struct {
	c         *Controller
	arena     *course.Arena
	ticker    *manualTicker
	presenter *recordingPresenter
	mem       *store.Memory
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	mem := store.NewMemory()
	f := &fixture{
		arena:     course.NewArena(nil),
		ticker:    newManualTicker(),
		presenter: newRecordingPresenter(),
		mem:       mem,
	}
	f.c = NewController(cfg, f.arena, course.NewRand(7), Deps{
		Balances:  store.NewBalances(mem, store.Options{}),
		Wins:      store.NewWins(mem, store.Options{}),
		Inventory: store.NewInventory(mem, mem, store.Options{}),
		Presenter: f.presenter,
		Ticker:    f.ticker,
		Now:       func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(f.arena.Clear)
	return f
}

// start 在后台运行控制器，测试结束时取消并等待退出
func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("controller did not stop")
		}
	})
}
