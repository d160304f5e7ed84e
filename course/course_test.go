package course

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantClock 立即触发，循环按自己的步数推进
type instantClock struct {
	calls atomic.Int64
}

func (c *instantClock) After(time.Duration) <-chan time.Time {
	c.calls.Add(1)
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type recordingSink struct {
	mu          sync.Mutex
	hazards     []string
	checkpoints []string
	impulses    []Vec3
	finishes    []string
}

func (s *recordingSink) HazardTouched(p string, _ *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hazards = append(s.hazards, p)
}

func (s *recordingSink) CheckpointReached(p string, _ *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = append(s.checkpoints, p)
}

func (s *recordingSink) ImpulseApplied(_ string, v Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.impulses = append(s.impulses, v)
}

func (s *recordingSink) FinishReached(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishes = append(s.finishes, p)
}

func newTestBuilder(t *testing.T, clock Clock, seed int64) (*Builder, *Arena, *recordingSink) {
	t.Helper()
	arena := NewArena(clock)
	sink := &recordingSink{}
	t.Cleanup(arena.Clear)
	return NewBuilder(arena, NewRand(seed), sink), arena, sink
}

func countKind(els []*Element, k Kind) int {
	n := 0
	for _, e := range els {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func TestGapRunLayout(t *testing.T) {
	b, _, _ := newTestBuilder(t, RealClock, 1)
	origin := Pose{Pos: Vec3{1, 2, 3}}

	els, next := b.GapRun(origin, 10)

	assert.Equal(t, 10, countKind(els, KindPlatform))
	assert.Equal(t, 2, countKind(els, KindCheckpoint))
	assert.Equal(t, 2, countKind(els, KindHazard))
	assert.InDelta(t, 3+10*(PlatformSize+GapLength), next.Pos.Z, 1e-9)

	// 第 4 块平台之后的半间隙处
	var pits []*Element
	for _, e := range els {
		if e.Kind == KindHazard {
			pits = append(pits, e)
		}
	}
	want := 3 + 3*(PlatformSize+GapLength) + PlatformSize + GapLength/2
	assert.InDelta(t, want, pits[0].Base.Pos.Z, 1e-9)
}

func TestBuildersWithZeroCountAreEmpty(t *testing.T) {
	b, arena, _ := newTestBuilder(t, RealClock, 1)
	pose := Pose{Pos: Vec3{5, 0, 5}, Yaw: 0.3}

	cases := map[string]func() ([]*Element, Pose){
		"gap":       func() ([]*Element, Pose) { return b.GapRun(pose, 0) },
		"planks":    func() ([]*Element, Pose) { return b.MovingPlanks(pose, 0, 12) },
		"sweeper":   func() ([]*Element, Pose) { return b.Sweeper(pose, 0, 10) },
		"pillars":   func() ([]*Element, Pose) { return b.PopupPillars(pose, -1) },
		"shrink":    func() ([]*Element, Pose) { return b.ShrinkPlates(pose, 0) },
		"hammers":   func() ([]*Element, Pose) { return b.SwingHammers(pose, 0, 9) },
		"conveyor":  func() ([]*Element, Pose) { return b.ConveyorField(pose, 0, 3) },
		"wind":      func() ([]*Element, Pose) { return b.WindField(pose, 4, 0) },
		"spinner":   func() ([]*Element, Pose) { return b.SpinnerBlades(pose, 0) },
		"push":      func() ([]*Element, Pose) { return b.PushWalls(pose, 0) },
		"cannon":    func() ([]*Element, Pose) { return b.CannonRun(pose, 0) },
		"maze":      func() ([]*Element, Pose) { return b.MazeRun(pose, 0) },
		"gap minus": func() ([]*Element, Pose) { return b.GapRun(pose, -5) },
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			els, next := build()
			assert.Empty(t, els)
			assert.Equal(t, pose, next)
		})
	}
	assert.Zero(t, arena.Len())
	assert.Zero(t, arena.Loops())
}

func TestMazePathConstraints(t *testing.T) {
	rng := NewRand(42)
	for rows := 1; rows <= 40; rows++ {
		for trial := 0; trial < 20; trial++ {
			path := MazePath(rng, rows)
			require.Len(t, path, rows)
			for i, slot := range path {
				assert.GreaterOrEqual(t, slot, 1)
				assert.LessOrEqual(t, slot, 3)
				if i > 0 {
					assert.LessOrEqual(t, math.Abs(float64(slot-path[i-1])), 1.0)
				}
			}
		}
	}
}

func TestMazePathStartIsSpread(t *testing.T) {
	rng := NewRand(7)
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[MazePath(rng, 1)[0]] = true
	}
	assert.Len(t, seen, 3)
}

func TestMazeRunOneSafeSlotPerRow(t *testing.T) {
	b, _, _ := newTestBuilder(t, RealClock, 3)
	els, next := b.MazeRun(Pose{}, 8)

	assert.Len(t, els, 8*MazeSlots)
	assert.Equal(t, 8, countKind(els, KindPlatform))
	assert.Equal(t, 16, countKind(els, KindHazard))
	assert.InDelta(t, 8*MazeRowDepth, next.Pos.Z, 1e-9)
}

func TestSeededLayoutIsReproducible(t *testing.T) {
	layout := func() []Vec3 {
		b, _, _ := newTestBuilder(t, RealClock, 99)
		els, _ := b.MazeRun(Pose{}, 12)
		var out []Vec3
		for _, e := range els {
			if e.Hazard {
				out = append(out, e.Base.Pos)
			}
		}
		return out
	}
	assert.Equal(t, layout(), layout())
}

func TestCannonScheduleBounds(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		rng := NewRand(seed)
		for _, secs := range []float64{0, 1, 2.5, 7, 10, 30, 60} {
			total := time.Duration(secs * float64(time.Second))
			shots := CannonSchedule(rng, total)
			lo := int(math.Floor(secs / 2.5))
			hi := int(math.Ceil(secs / 1.5))
			assert.GreaterOrEqual(t, len(shots), lo, "seed %d T=%v", seed, secs)
			assert.LessOrEqual(t, len(shots), hi, "seed %d T=%v", seed, secs)
			for i := 1; i < len(shots); i++ {
				d := shots[i] - shots[i-1]
				assert.GreaterOrEqual(t, d, CannonMinGap)
				assert.Less(t, d, CannonMaxGap)
			}
		}
	}
}

func TestProjectileRemovedAfterLifetime(t *testing.T) {
	clock := &instantClock{}
	b, arena, sink := newTestBuilder(t, clock, 5)

	shot := b.fire(arena.current(), Vec3{}, Vec3{X: ProjectileSpeed})
	require.True(t, shot.Hazard)
	assert.False(t, shot.WireHazard(func(string) {}), "projectile must be wired on spawn")

	require.Eventually(t, func() bool { return arena.Len() == 0 && arena.Loops() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(ProjectileLife/MotionStep), clock.calls.Load())
	assert.InDelta(t, ProjectileSpeed*ProjectileLife.Seconds(), shot.Pos().X, 1e-6)
	assert.False(t, shot.Alive())
	assert.False(t, arena.Touch(shot.ID, "p1"))
	assert.Empty(t, sink.hazards)
}

func TestCannonRunSpawnsProjectiles(t *testing.T) {
	b, arena, sink := newTestBuilder(t, &instantClock{}, 5)
	els, _ := b.CannonRun(Pose{}, 8)
	assert.Equal(t, 2, countKind(els, KindSpawner))
	assert.Equal(t, 8, countKind(els, KindPlatform))

	var shot *Element
	require.Eventually(t, func() bool {
		for _, e := range arena.Elements() {
			if e.Kind == KindProjectile {
				shot = e
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	arena.Touch(shot.ID, "runner")

	arena.Clear()
	assert.Zero(t, arena.Loops())
	assert.Zero(t, arena.Len())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.LessOrEqual(t, len(sink.hazards), 1)
}

func TestMovingPlanksStayWithinSpan(t *testing.T) {
	b, arena, _ := newTestBuilder(t, &instantClock{}, 11)
	const span = 12.0
	els, next := b.MovingPlanks(Pose{}, 4, span)
	require.Len(t, els, 4)
	assert.InDelta(t, 4*PlankSpacing, next.Pos.Z, 1e-9)

	require.Eventually(t, func() bool {
		moved := 0
		for _, e := range els {
			x := e.Pos().X
			assert.LessOrEqual(t, math.Abs(x), span/2+1e-9)
			if math.Abs(x) > 1e-6 {
				moved++
			}
		}
		return moved == len(els)
	}, time.Second, time.Millisecond)

	arena.Clear()
	assert.Zero(t, arena.Loops())
}

func TestShrinkAndPillarsRespectBounds(t *testing.T) {
	b, arena, _ := newTestBuilder(t, &instantClock{}, 13)
	plates, _ := b.ShrinkPlates(Pose{}, 3)
	pillars, _ := b.PopupPillars(Pose{Pos: Vec3{X: 100}}, 3)

	for i := 0; i < 200; i++ {
		for _, p := range plates {
			s := p.Scale()
			assert.GreaterOrEqual(t, s, ShrinkMinScale-1e-9)
			assert.LessOrEqual(t, s, 1+1e-9)
		}
		for _, p := range pillars {
			y := p.Pos().Y
			assert.GreaterOrEqual(t, y, -1e-9)
			assert.LessOrEqual(t, y, PillarRise+1e-9)
		}
	}
	arena.Clear()
	assert.Zero(t, arena.Loops())
}

func TestForceFieldsReportImpulse(t *testing.T) {
	b, arena, sink := newTestBuilder(t, RealClock, 1)
	conveyor, _ := b.ConveyorField(Pose{}, 2, 3)
	wind, _ := b.WindField(Pose{Pos: Vec3{Z: 50}}, 1, 1)
	require.Len(t, conveyor, 6)
	require.Len(t, wind, 1)

	arena.Touch(conveyor[0].ID, "a")
	arena.Touch(wind[0].ID, "a")

	require.Len(t, sink.impulses, 2)
	assert.InDelta(t, ConveyorPush, sink.impulses[0].Z, 1e-9)
	assert.InDelta(t, WindPush, sink.impulses[1].X, 1e-9)
}

func TestClearStopsEveryLoop(t *testing.T) {
	arena := NewArena(RealClock)
	asm := NewAssembler(arena, NewRand(2), nil, nil)
	for _, typ := range []string{TypePlanks, TypeSweeper, TypePillars, TypeShrink, TypeHammers, TypeSpinner, TypePushWall, TypeCannon} {
		asm.BuildByType(Pose{}, typ)
		assert.Positive(t, arena.Loops(), typ)
		asm.ClearArena()
		assert.Zero(t, arena.Loops(), typ)
		assert.Zero(t, arena.Len(), typ)
	}
}

func TestElementsDeadAfterClear(t *testing.T) {
	b, arena, _ := newTestBuilder(t, RealClock, 1)
	els, _ := b.SpinnerBlades(Pose{}, 2)
	arena.Clear()
	for _, e := range els {
		assert.False(t, e.Alive())
	}
}

func TestBuildByTypeWiresEveryHazardOnce(t *testing.T) {
	for _, typ := range []string{TypeClassic, TypeMaze} {
		t.Run(typ, func(t *testing.T) {
			arena := NewArena(RealClock)
			t.Cleanup(arena.Clear)
			sink := &recordingSink{}
			asm := NewAssembler(arena, NewRand(4), sink, nil)

			res := asm.BuildByType(Pose{}, typ)
			require.Equal(t, typ, res.Type)

			var hazards []*Element
			for _, e := range res.Elements {
				if e.Hazard {
					hazards = append(hazards, e)
				}
			}
			require.NotEmpty(t, hazards)
			for _, e := range hazards {
				assert.True(t, arena.Touch(e.ID, "p1"), e.Kind.String())
				assert.False(t, e.WireHazard(func(string) { t.Error("rewired") }), "second wiring must be refused")
			}

			sink.mu.Lock()
			defer sink.mu.Unlock()
			assert.Len(t, sink.hazards, len(hazards))
			assert.Empty(t, sink.finishes)
		})
	}
}

func TestBuildByTypeUnknownFallsBackToClassic(t *testing.T) {
	arena := NewArena(RealClock)
	t.Cleanup(arena.Clear)
	sink := &recordingSink{}
	asm := NewAssembler(arena, NewRand(4), sink, nil)

	res := asm.BuildByType(Pose{}, "Lava")
	assert.Equal(t, TypeClassic, res.Type)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, 10, res.Sections[0].Count)
	require.NotNil(t, res.Finish)

	arena.Touch(res.Finish.ID, "p1")
	sink.mu.Lock()
	assert.Equal(t, []string{"p1"}, sink.finishes)
	sink.mu.Unlock()
}

func TestBuildRandom(t *testing.T) {
	arena := NewArena(RealClock)
	t.Cleanup(arena.Clear)

	_, err := NewAssembler(arena, NewRand(1), nil, nil).BuildRandom(Pose{})
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	catalog := []string{TypeClassic, TypeMaze}
	asm := NewAssembler(arena, NewRand(11), nil, catalog)
	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		res, err := asm.BuildRandom(Pose{})
		require.NoError(t, err)
		counts[res.Type]++
	}
	assert.Len(t, counts, 2)
	for _, typ := range catalog {
		assert.InDelta(t, 100, counts[typ], 30, typ)
	}
}
