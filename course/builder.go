package course

import "time"

const (
	// MotionStep 运动循环步长（20 Hz）
	MotionStep = 50 * time.Millisecond

	PlatformSize = 8.0
	GapLength    = 4.0
	PlankSpacing = 8.0
	MazeRowDepth = 8.0
	MazeSlotSize = 8.0
	MazeSlots    = 3

	PillarRise      = 2.0
	ShrinkMinScale  = 0.4
	HammerSwing     = 45.0 // 度
	ProjectileSpeed = 8.0
	ProjectileLife  = 6 * time.Second
	CannonMinGap    = 1500 * time.Millisecond
	CannonMaxGap    = 2500 * time.Millisecond
	ConveyorPush    = 12.0
	WindPush        = 10.0
)

// ContactSink 接收元素触碰产生的游戏事件；元素本身不修改参与者状态
type ContactSink interface {
	HazardTouched(participant string, e *Element)
	CheckpointReached(participant string, e *Element)
	ImpulseApplied(participant string, impulse Vec3)
	FinishReached(participant string)
}

type nopSink struct{}

func (nopSink) HazardTouched(string, *Element)     {}
func (nopSink) CheckpointReached(string, *Element) {}
func (nopSink) ImpulseApplied(string, Vec3)        {}
func (nopSink) FinishReached(string)               {}

// Builder 分段构建器：每个方法向 arena 投放一段障碍并返回下一段的起点
type Builder struct {
	arena *Arena
	rng   *Rand
	sink  ContactSink
}

func NewBuilder(arena *Arena, rng *Rand, sink ContactSink) *Builder {
	if sink == nil {
		sink = nopSink{}
	}
	return &Builder{arena: arena, rng: rng, sink: sink}
}

func (b *Builder) add(out []*Element, e *Element) []*Element {
	return append(out, b.arena.Add(e))
}

// wire 为危险元素挂接触碰上报（幂等）
func (b *Builder) wire(e *Element) {
	e.WireHazard(func(participant string) {
		b.sink.HazardTouched(participant, e)
	})
}
