package round

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"courserush/config"
	"courserush/course"
	"courserush/logger"
	"courserush/store"
)

const eventQueueSize = 1024

// 场地中的固定位置
var (
	CourseOrigin = course.Pose{}
	PodiumCenter = course.Pose{Pos: course.Vec3{X: -40, Y: 0, Z: 0}}
	LobbyPose    = course.Pose{Pos: course.Vec3{X: -40, Y: 2, Z: -24}}
)

// Deps 外部协作者；为 nil 的存储使用内存实现
type Deps struct {
	Balances     Balances
	Wins         Wins
	Inventory    Inventory
	Achievements AchievementChecker
	Presenter    Presenter
	Observer     Observer
	Ticker       TickerFactory
	Now          func() time.Time
}

type contactKind int

const (
	contactFinish contactKind = iota
	contactHazard
	contactCheckpoint
	contactImpulse
)

// contact 元素触碰事件，由阶段驱动在节拍之间串行处理
type contact struct {
	kind        contactKind
	participant string
	element     *course.Element
	impulse     course.Vec3
}

// Controller 回合状态机：Lobby → Voting → Build → Run → Results → Cleanup → Lobby
type Controller struct {
	arena     *course.Arena
	assembler *course.Assembler
	rng       *course.Rand

	balances     Balances
	wins         Wins
	inventory    Inventory
	achievements AchievementChecker
	presenter    Presenter
	observer     Observer
	ticker       TickerFactory
	now          func() time.Time

	roster    *Roster
	finishers *Finishers
	respawn   *Respawner
	events    chan contact
	ticks     <-chan time.Time

	cfgMu sync.RWMutex
	conf  config.Config

	phase     atomic.Int32
	remaining atomic.Int64
	round     atomic.Int64

	// 以下字段由 mu 保护：投票在网络协程中写入
	mu     sync.Mutex
	ballot []string
	votes  map[string]string
	build  *course.BuildResult
}

func NewController(cfg config.Config, arena *course.Arena, rng *course.Rand, deps Deps) *Controller {
	if deps.Balances == nil || deps.Wins == nil || deps.Inventory == nil {
		mem := store.NewMemory()
		if deps.Balances == nil {
			deps.Balances = store.NewBalances(mem, store.Options{})
		}
		if deps.Wins == nil {
			deps.Wins = store.NewWins(mem, store.Options{})
		}
		if deps.Inventory == nil {
			deps.Inventory = store.NewInventory(mem, mem, store.Options{})
		}
	}
	if deps.Presenter == nil {
		deps.Presenter = nopPresenter{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Ticker == nil {
		deps.Ticker = RealTicker{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Achievements == nil {
		deps.Achievements = NewAchievements(deps.Balances, deps.Wins, deps.Inventory, deps.Presenter)
	}

	c := &Controller{
		arena:        arena,
		rng:          rng,
		balances:     deps.Balances,
		wins:         deps.Wins,
		inventory:    deps.Inventory,
		achievements: deps.Achievements,
		presenter:    deps.Presenter,
		observer:     deps.Observer,
		ticker:       deps.Ticker,
		now:          deps.Now,
		roster:       NewRoster(),
		finishers:    NewFinishers(),
		respawn:      NewRespawner(),
		events:       make(chan contact, eventQueueSize),
		conf:         cfg,
		votes:        make(map[string]string),
	}
	c.assembler = course.NewAssembler(arena, rng, contactSink{c}, cfg.CourseTypes)
	return c
}

// Run 驱动阶段循环直到 ctx 结束；退出前销毁当前课程
func (c *Controller) Run(ctx context.Context) error {
	ticks, stop := c.ticker.Create(TickInterval)
	defer stop()
	c.ticks = ticks
	defer c.assembler.ClearArena()

	logger.Log.Infof("round controller started")
	for {
		if !c.lobby(ctx) || !c.voting(ctx) {
			return ctx.Err()
		}
		c.buildCourse()
		if !c.runCourse(ctx) || !c.results(ctx) {
			return ctx.Err()
		}
		c.cleanup()
	}
}

func (c *Controller) Phase() Phase { return Phase(c.phase.Load()) }

func (c *Controller) Roster() *Roster { return c.roster }

func (c *Controller) Finishers() []string { return c.finishers.List() }

// Course 当前课程；Build 之前与 Cleanup 之后为 nil
func (c *Controller) Course() *course.BuildResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.build
}

// Touch 宿主物理层的接触入口
func (c *Controller) Touch(elementID, participant string) bool {
	return c.arena.Touch(elementID, participant)
}

func (c *Controller) roundConfig() config.Round {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.conf.Round
}

// Config 当前配置副本
func (c *Controller) Config() config.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.conf
}

// UpdateRound 热更新节奏与奖励，下一个阶段开始时生效
func (c *Controller) UpdateRound(r config.Round) error {
	if err := r.Validate(); err != nil {
		return err
	}
	c.cfgMu.Lock()
	c.conf.Round = r
	c.cfgMu.Unlock()
	logger.Log.Infof("round config updated: %+v", r)
	return nil
}

// UpdateCatalog 替换课程目录；空目录会让大厅停留，重复或未知的类型整体拒绝
func (c *Controller) UpdateCatalog(types []string) error {
	if err := config.ValidateCatalog(types); err != nil {
		return err
	}
	c.cfgMu.Lock()
	c.conf.CourseTypes = append([]string(nil), types...)
	c.cfgMu.Unlock()
	c.assembler.SetCatalog(types)
	logger.Log.Infof("course catalog updated: %v", types)
	return nil
}

func (c *Controller) enter(p Phase) {
	c.phase.Store(int32(p))
	c.observer.PhaseEntered(p)
	logger.Log.Infof("round %d: enter %s", c.round.Load(), p)
}

// countdown 每个节拍减一并处理积压的触碰事件；ctx 结束返回 false
func (c *Controller) countdown(ctx context.Context, seconds int, onTick func()) bool {
	c.remaining.Store(int64(seconds))
	c.broadcastStatus()
	for c.remaining.Load() > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-c.ticks:
		}
		c.remaining.Add(-1)
		c.drain(ctx)
		if onTick != nil {
			onTick()
		}
		c.broadcastStatus()
	}
	return true
}

func (c *Controller) lobby(ctx context.Context) bool {
	for {
		c.resetRound()
		c.enter(PhaseLobby)
		// 至少等待一拍，避免大厅停留时空转
		if !c.countdown(ctx, max(c.roundConfig().LobbySeconds, 1), nil) {
			return false
		}
		if len(c.roster.Eligible()) == 0 {
			logger.Log.Debugf("lobby hold: no eligible participants")
			continue
		}
		if len(c.assembler.Catalog()) == 0 {
			logger.Log.Warnf("lobby hold: course catalog is empty")
			continue
		}
		return true
	}
}

func (c *Controller) resetRound() {
	c.mu.Lock()
	c.ballot = nil
	c.votes = make(map[string]string)
	c.mu.Unlock()
	c.finishers.Reset()
	c.respawn.Reset()
}

func (c *Controller) voting(ctx context.Context) bool {
	r := c.roundConfig()
	ballot := DrawBallot(c.assembler.Catalog(), r.BallotSize, c.rng)
	c.mu.Lock()
	c.ballot = ballot
	c.votes = make(map[string]string)
	c.mu.Unlock()

	c.enter(PhaseVoting)
	logger.Log.Infof("ballot: %v", ballot)
	c.broadcastVotes()
	return c.countdown(ctx, r.VotingSeconds, c.broadcastVotes)
}

// SubmitVote 同一参与者以最后一次为准
func (c *Controller) SubmitVote(id, choice string) error {
	if c.Phase() != PhaseVoting {
		return ErrNotVoting
	}
	c.mu.Lock()
	if !contains(c.ballot, choice) {
		c.mu.Unlock()
		return ErrUnknownOption
	}
	c.votes[id] = choice
	update := c.voteUpdateLocked()
	c.mu.Unlock()

	c.observer.VoteAccepted()
	c.presenter.VoteOptions(update)
	return nil
}

// eligibleVotesLocked 离开状态的参与者不计票
func (c *Controller) eligibleVotesLocked() map[string]string {
	out := make(map[string]string, len(c.votes))
	for id, choice := range c.votes {
		if !c.roster.IsAway(id) {
			out[id] = choice
		}
	}
	return out
}

func (c *Controller) voteUpdateLocked() VoteUpdate {
	return VoteUpdate{
		Options:   append([]string(nil), c.ballot...),
		Tally:     Count(c.ballot, c.eligibleVotesLocked()),
		Remaining: int(c.remaining.Load()),
	}
}

func (c *Controller) broadcastVotes() {
	c.mu.Lock()
	update := c.voteUpdateLocked()
	c.mu.Unlock()
	c.presenter.VoteOptions(update)
}

func (c *Controller) buildCourse() {
	c.enter(PhaseBuild)

	c.mu.Lock()
	choice := Tally(c.ballot, c.eligibleVotesLocked(), c.rng)
	c.ballot = nil
	c.mu.Unlock()

	res := c.assembler.BuildByType(CourseOrigin, choice)
	n := c.round.Add(1)
	c.mu.Lock()
	c.build = res
	c.mu.Unlock()
	logger.Log.Infof("round %d: built %s with %d elements", n, res.Type, len(res.Elements))
	c.observer.CourseBuilt(res.Type, len(res.Elements))

	states := make([]course.State, 0, len(res.Elements))
	for _, e := range res.Elements {
		states = append(states, e.State())
	}
	c.presenter.CourseBuilt(CourseSnapshot{Type: res.Type, Start: res.Start, Elements: states, Sections: res.Sections})

	for _, id := range c.roster.Eligible() {
		c.teleport(id, res.Start)
	}
}

func (c *Controller) runCourse(ctx context.Context) bool {
	c.enter(PhaseRun)
	return c.countdown(ctx, c.roundConfig().RunSeconds, nil)
}

// ReportFinish 记录一次完成；非 Run 阶段、不在名单或重复完成返回 false
func (c *Controller) ReportFinish(ctx context.Context, id string) bool {
	if c.Phase() != PhaseRun {
		logger.Log.Debugf("finish ignored outside run: %s", id)
		return false
	}
	// 已离开的参与者不再计入；离开状态（away）仍可完成
	if _, ok := c.roster.Get(id); !ok {
		logger.Log.Debugf("finish ignored, participant gone: %s", id)
		return false
	}
	place, ok := c.finishers.Record(id)
	if !ok {
		return false
	}

	r := c.roundConfig()
	reward := r.BaseReward
	if place == 1 {
		reward += r.FirstBonus
	}
	balance := c.balances.Award(ctx, id, reward)
	c.presenter.BalanceUpdate(id, balance)
	c.wins.RecordWin(ctx, id)
	c.achievements.CheckAll(ctx, id)

	logger.Log.Infof("finish: %s place=%d reward=%d", id, place, reward)
	c.observer.FinishRecorded(place)
	c.presenter.FinishAnnounced(FinishNotice{ID: id, Place: place, Reward: reward})
	c.broadcastStatus()
	c.broadcastLeaderboard(ctx)
	return true
}

func (c *Controller) results(ctx context.Context) bool {
	c.enter(PhaseResults)
	_, spots := c.assembler.BuildPodium(PodiumCenter)
	for i, id := range c.finishers.List() {
		if i >= len(spots) {
			break
		}
		c.teleport(id, spots[i])
	}
	return c.countdown(ctx, c.roundConfig().ResultsSeconds, nil)
}

func (c *Controller) cleanup() {
	c.enter(PhaseCleanup)
	c.assembler.ClearArena()
	c.mu.Lock()
	c.build = nil
	c.mu.Unlock()
	for _, id := range c.roster.Eligible() {
		c.teleport(id, LobbyPose)
	}
}

func (c *Controller) teleport(id string, pose course.Pose) {
	if !c.roster.Teleport(id, pose) {
		logger.Log.Debugf("teleport skipped, participant gone: %s", id)
		return
	}
	c.presenter.Teleported(id, pose)
}

func (c *Controller) startPose() course.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.build == nil {
		return LobbyPose
	}
	return c.build.Start
}

// drain 非阻塞处理当前积压的触碰事件
func (c *Controller) drain(ctx context.Context) {
	for {
		select {
		case ev := <-c.events:
			c.handle(ctx, ev)
		default:
			return
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev contact) {
	if ev.kind == contactFinish {
		c.ReportFinish(ctx, ev.participant)
		return
	}
	if c.Phase() != PhaseRun {
		return
	}
	switch ev.kind {
	case contactHazard:
		c.teleport(ev.participant, c.respawn.PoseFor(ev.participant, c.startPose()))
	case contactCheckpoint:
		base := ev.element.Base
		c.respawn.Mark(ev.participant, course.Pose{Pos: base.Pos.Up(3), Yaw: base.Yaw})
	case contactImpulse:
		c.roster.AddImpulse(ev.participant, ev.impulse)
	}
}

func (c *Controller) push(ev contact) {
	select {
	case c.events <- ev:
	default:
		c.observer.EventDropped()
		logger.Log.Warnf("contact queue full, dropping event for %s", ev.participant)
	}
}

// contactSink 将元素回调转为事件，避免在宿主回调中修改回合状态
type contactSink struct{ c *Controller }

func (s contactSink) HazardTouched(participant string, e *course.Element) {
	s.c.push(contact{kind: contactHazard, participant: participant, element: e})
}

func (s contactSink) CheckpointReached(participant string, e *course.Element) {
	s.c.push(contact{kind: contactCheckpoint, participant: participant, element: e})
}

func (s contactSink) ImpulseApplied(participant string, impulse course.Vec3) {
	s.c.push(contact{kind: contactImpulse, participant: participant, impulse: impulse})
}

func (s contactSink) FinishReached(participant string) {
	s.c.push(contact{kind: contactFinish, participant: participant})
}

// Status 当前回合状态快照
func (c *Controller) Status() Status {
	c.mu.Lock()
	ballot := append([]string(nil), c.ballot...)
	var courseType string
	if c.build != nil {
		courseType = c.build.Type
	}
	c.mu.Unlock()

	finishers := c.finishers.List()
	if finishers == nil {
		finishers = []string{}
	}
	return Status{
		Phase:        c.Phase().String(),
		Remaining:    int(c.remaining.Load()),
		Round:        c.round.Load(),
		Course:       courseType,
		Ballot:       ballot,
		Finishers:    finishers,
		Participants: c.roster.Len(),
	}
}

func (c *Controller) broadcastStatus() {
	c.presenter.RoundStatus(c.Status())
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
