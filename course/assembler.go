package course

import (
	"errors"
	"sync"

	"courserush/logger"
)

// 课程类型
const (
	TypeClassic  = "Classic"
	TypePlanks   = "Planks"
	TypeSweeper  = "Sweeper"
	TypePillars  = "Pillars"
	TypeShrink   = "Shrink"
	TypeHammers  = "Hammers"
	TypeConveyor = "Conveyor"
	TypeWind     = "Wind"
	TypeSpinner  = "Spinner"
	TypePushWall = "PushWall"
	TypeCannon   = "Cannon"
	TypeMaze     = "Maze"
)

// ErrEmptyCatalog 课程目录为空时 BuildRandom 返回
var ErrEmptyCatalog = errors.New("course catalog is empty")

// Section 已构建分段的摘要
type Section struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Elements int    `json:"elements"`
	Start    Pose   `json:"start"`
	End      Pose   `json:"end"`
}

// BuildResult 一次构建的结果
type BuildResult struct {
	Type     string
	Start    Pose
	Finish   *Element
	Elements []*Element
	Sections []Section
}

type stage struct {
	name  string
	count int
	build func(b *Builder, p Pose, n int) ([]*Element, Pose)
}

func gap(n int) stage {
	return stage{"gap_run", n, (*Builder).GapRun}
}

// recipes 每种课程的固定分段组合
var recipes = map[string][]stage{
	TypeClassic: {gap(10)},
	TypePlanks: {
		{"moving_planks", 6, func(b *Builder, p Pose, n int) ([]*Element, Pose) { return b.MovingPlanks(p, n, 12) }},
		gap(3),
	},
	TypeSweeper: {
		gap(2),
		{"sweeper", 4, func(b *Builder, p Pose, n int) ([]*Element, Pose) { return b.Sweeper(p, n, 10) }},
		gap(2),
	},
	TypePillars: {{"popup_pillars", 8, (*Builder).PopupPillars}, gap(2)},
	TypeShrink:  {{"shrink_plates", 8, (*Builder).ShrinkPlates}, gap(2)},
	TypeHammers: {
		gap(2),
		{"swing_hammers", 4, func(b *Builder, p Pose, n int) ([]*Element, Pose) { return b.SwingHammers(p, n, 9) }},
		gap(2),
	},
	TypeConveyor: {
		{"conveyor", 4, func(b *Builder, p Pose, n int) ([]*Element, Pose) { return b.ConveyorField(p, n, 3) }},
		gap(3),
	},
	TypeWind: {
		{"wind", 4, func(b *Builder, p Pose, n int) ([]*Element, Pose) { return b.WindField(p, n, 3) }},
		gap(3),
	},
	TypeSpinner:  {{"spinner_blades", 5, (*Builder).SpinnerBlades}, gap(2)},
	TypePushWall: {{"push_walls", 6, (*Builder).PushWalls}, gap(2)},
	TypeCannon:   {{"cannon_run", 8, (*Builder).CannonRun}, gap(3)},
	TypeMaze:     {{"maze", 8, (*Builder).MazeRun}, gap(2)},
}

// Known 是否为已注册的课程类型
func Known(courseType string) bool {
	_, ok := recipes[courseType]
	return ok
}

// Assembler 将课程类型映射为分段组合并投放到 arena
type Assembler struct {
	arena   *Arena
	builder *Builder
	rng     *Rand

	mu      sync.RWMutex
	catalog []string
}

func NewAssembler(arena *Arena, rng *Rand, sink ContactSink, catalog []string) *Assembler {
	return &Assembler{
		arena:   arena,
		builder: NewBuilder(arena, rng, sink),
		rng:     rng,
		catalog: append([]string(nil), catalog...),
	}
}

// Catalog 当前课程目录（副本）
func (a *Assembler) Catalog() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.catalog...)
}

func (a *Assembler) SetCatalog(catalog []string) {
	a.mu.Lock()
	a.catalog = append([]string(nil), catalog...)
	a.mu.Unlock()
}

// ClearArena 销毁之前投放的全部元素，并停止它们的后台循环
func (a *Assembler) ClearArena() {
	a.arena.Clear()
}

// BuildByType 清空旧课程后按类型构建；未知类型回退到 Classic
func (a *Assembler) BuildByType(center Pose, courseType string) *BuildResult {
	a.ClearArena()

	stages, ok := recipes[courseType]
	if !ok {
		logger.Log.Warnf("unknown course type %q, building %s", courseType, TypeClassic)
		courseType, stages = TypeClassic, recipes[TypeClassic]
	}
	b := a.builder
	res := &BuildResult{Type: courseType}

	pad, spawn, cur := b.StartPad(center)
	res.Start = spawn
	res.Elements = append(res.Elements, pad...)

	for _, st := range stages {
		els, next := st.build(b, cur, st.count)
		res.Sections = append(res.Sections, Section{Name: st.name, Count: st.count, Elements: len(els), Start: cur, End: next})
		res.Elements = append(res.Elements, els...)
		cur = next
	}

	tail, end := b.FinishPad(cur)
	res.Elements = append(res.Elements, tail...)

	finish := newElement(KindFinish, end.Offset(0, 3, -8), Vec3{16, 6, 2})
	finish.setContact(func(participant string) { b.sink.FinishReached(participant) })
	res.Finish = b.arena.Add(finish)
	res.Elements = append(res.Elements, finish)

	for _, e := range res.Elements {
		if e.Hazard {
			b.wire(e)
		}
	}
	return res
}

// BuildRandom 从课程目录中均匀抽取一种课程
func (a *Assembler) BuildRandom(center Pose) (*BuildResult, error) {
	catalog := a.Catalog()
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	return a.BuildByType(center, catalog[a.rng.Intn(len(catalog))]), nil
}

// BuildPodium 在 center 处搭建前三名领奖台，返回元素与名次站位（下标 0 为第一名）
func (a *Assembler) BuildPodium(center Pose) ([]*Element, [3]Pose) {
	heights := [3]float64{3, 2, 1}
	laterals := [3]float64{0, -6, 6}
	var out []*Element
	var spots [3]Pose
	for i := 0; i < 3; i++ {
		h := heights[i]
		block := newElement(KindPodium, center.Offset(laterals[i], h/2, 0), Vec3{5, h, 5})
		out = append(out, a.arena.Add(block))
		spots[i] = center.Offset(laterals[i], h+2, 0)
	}
	return out, spots
}
