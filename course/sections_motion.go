package course

import (
	"context"
	"math"
	"time"
)

// MovingPlanks 间隔 8 的木板，各自以正弦缓动横向往复 ±span/2，相位互不相同
func (b *Builder) MovingPlanks(pose Pose, count int, span float64) ([]*Element, Pose) {
	if count <= 0 {
		return nil, pose
	}
	life := b.arena.current()
	var out []*Element
	for i := 0; i < count; i++ {
		center := pose.Advance(PlankSpacing/2 + float64(i)*PlankSpacing)
		plank := newElement(KindMover, center, Vec3{6, 1, 4})
		out = b.add(out, plank)

		period := b.rng.Duration(2500*time.Millisecond, 3500*time.Millisecond)
		phase := b.rng.Range(0, 2*math.Pi)
		right := center.Right()
		b.arena.animate(life, plank, MotionStep, func(t time.Duration) {
			x := span / 2 * math.Sin(2*math.Pi*t.Seconds()/period.Seconds()+phase)
			plank.setPos(center.Pos.Add(right.Scale(x)))
		})
	}
	return out, pose.Advance(float64(count) * PlankSpacing)
}

// Sweeper 固定中心 + N 条持续旋转的横扫臂，转速每个实例随机
func (b *Builder) Sweeper(pose Pose, arms int, radius float64) ([]*Element, Pose) {
	if arms <= 0 || radius <= 0 {
		return nil, pose
	}
	life := b.arena.current()
	hub := pose.Advance(radius + 2)
	var out []*Element
	out = b.add(out, newElement(KindPlatform, hub, Vec3{2*radius + 4, 1, 2*radius + 4}))
	out = b.add(out, newElement(KindPlatform, hub.Offset(0, 1.5, 0), Vec3{2, 2, 2}))

	speed := b.rng.Range(0.8, 1.6) * b.rng.Sign() // rad/s
	for i := 0; i < arms; i++ {
		offset := 2 * math.Pi * float64(i) / float64(arms)
		arm := newHazard(KindMover, hub.Offset(0, 1.5, 0).Rotated(offset), Vec3{0.8, 1, radius})
		out = b.add(out, arm)
		pivot := hub.Pos.Up(1.5)
		b.arena.animate(life, arm, MotionStep, func(t time.Duration) {
			a := offset + speed*t.Seconds()
			dir := Pose{Yaw: hub.Yaw + a}.Forward()
			arm.setPose(pivot.Add(dir.Scale(radius/2)), hub.Yaw+a)
		})
	}
	return out, pose.Advance(2*radius + 4)
}

// PopupPillars 升起 2 单位、停留、下沉、停留，停留时长随机 ±0.4s
func (b *Builder) PopupPillars(pose Pose, count int) ([]*Element, Pose) {
	if count <= 0 {
		return nil, pose
	}
	life := b.arena.current()
	const tween = 500 * time.Millisecond
	const hold = time.Second
	const jitter = 400 * time.Millisecond
	var out []*Element
	for i := 0; i < count; i++ {
		center := pose.Advance(PlankSpacing/2 + float64(i)*PlankSpacing)
		pillar := newElement(KindMover, center, Vec3{6, 1, 6})
		out = b.add(out, pillar)
		delay := b.rng.Duration(0, 1500*time.Millisecond)

		b.arena.spawn(life, "pillar:"+pillar.ID, func(ctx context.Context) {
			if !b.arena.sleep(ctx, delay) {
				return
			}
			for pillar.Alive() {
				if !b.tween(ctx, pillar, tween, func(k float64) { pillar.setPos(center.Pos.Up(PillarRise * k)) }) {
					return
				}
				if !b.arena.sleep(ctx, b.rng.Duration(hold-jitter, hold+jitter)) {
					return
				}
				if !b.tween(ctx, pillar, tween, func(k float64) { pillar.setPos(center.Pos.Up(PillarRise * (1 - k))) }) {
					return
				}
				if !b.arena.sleep(ctx, b.rng.Duration(hold-jitter, hold+jitter)) {
					return
				}
			}
		})
	}
	return out, pose.Advance(float64(count) * PlankSpacing)
}

// ShrinkPlates 平台在全尺寸与 40% 之间缓入缓出切换，每次切换后停 0.4s
func (b *Builder) ShrinkPlates(pose Pose, count int) ([]*Element, Pose) {
	if count <= 0 {
		return nil, pose
	}
	life := b.arena.current()
	const tween = time.Second
	const pause = 400 * time.Millisecond
	const spacing = PlatformSize + 2
	var out []*Element
	for i := 0; i < count; i++ {
		plate := newElement(KindMover, pose.Advance(spacing/2+float64(i)*spacing), Vec3{PlatformSize, 1, PlatformSize})
		out = b.add(out, plate)
		delay := b.rng.Duration(0, tween+pause)

		b.arena.spawn(life, "plate:"+plate.ID, func(ctx context.Context) {
			if !b.arena.sleep(ctx, delay) {
				return
			}
			for plate.Alive() {
				if !b.tween(ctx, plate, tween, func(k float64) { plate.setScale(lerp(1, ShrinkMinScale, k)) }) {
					return
				}
				if !b.arena.sleep(ctx, pause) {
					return
				}
				if !b.tween(ctx, plate, tween, func(k float64) { plate.setScale(lerp(ShrinkMinScale, 1, k)) }) {
					return
				}
				if !b.arena.sleep(ctx, pause) {
					return
				}
			}
		})
	}
	return out, pose.Advance(float64(count) * spacing)
}

// SwingHammers N 个摆锤沿圆周均匀分布，各自正弦摆动 ±45°
func (b *Builder) SwingHammers(pose Pose, count int, radius float64) ([]*Element, Pose) {
	if count <= 0 || radius <= 0 {
		return nil, pose
	}
	life := b.arena.current()
	center := pose.Advance(radius + 3)
	var out []*Element
	out = b.add(out, newElement(KindPlatform, center, Vec3{2*radius + 6, 1, 2*radius + 6}))

	const armLength = 5.0
	amplitude := HammerSwing * math.Pi / 180
	for i := 0; i < count; i++ {
		around := 2 * math.Pi * float64(i) / float64(count)
		spot := Pose{Pos: center.Pos, Yaw: center.Yaw + around}.Advance(radius)
		pivot := spot.Pos.Up(armLength + 1)
		hammer := newHazard(KindMover, Pose{Pos: pivot.Up(-armLength), Yaw: spot.Yaw}, Vec3{2, 2, 2})
		out = b.add(out, hammer)

		phase := b.rng.Range(0, 2*math.Pi)
		period := b.rng.Duration(1800*time.Millisecond, 2400*time.Millisecond)
		swingDir := spot.Right()
		b.arena.animate(life, hammer, MotionStep, func(t time.Duration) {
			a := amplitude * math.Sin(2*math.Pi*t.Seconds()/period.Seconds()+phase)
			head := pivot.Add(swingDir.Scale(armLength * math.Sin(a)))
			head.Y -= armLength * math.Cos(a)
			hammer.setPose(head, a)
		})
	}
	return out, pose.Advance(2*radius + 6)
}

// SpinnerBlades 静态地砖上方的旋转刀片，转速每个实例独立
func (b *Builder) SpinnerBlades(pose Pose, count int) ([]*Element, Pose) {
	if count <= 0 {
		return nil, pose
	}
	life := b.arena.current()
	const spacing = PlatformSize + 2
	var out []*Element
	for i := 0; i < count; i++ {
		center := pose.Advance(spacing/2 + float64(i)*spacing)
		out = b.add(out, newElement(KindPlatform, center, Vec3{PlatformSize, 1, PlatformSize}))
		blade := newHazard(KindMover, center.Offset(0, 1.5, 0), Vec3{7, 0.5, 0.6})
		out = b.add(out, blade)

		speed := b.rng.Range(1.5, 3.0) * b.rng.Sign()
		start := b.rng.Range(0, math.Pi)
		b.arena.animate(life, blade, MotionStep, func(t time.Duration) {
			blade.setAngle(center.Yaw + start + speed*t.Seconds())
		})
	}
	return out, pose.Advance(float64(count) * spacing)
}

// PushWalls 地砖旁的推墙，按固定节奏左右滑过地砖，中间随机停顿；墙体为危险元素
func (b *Builder) PushWalls(pose Pose, count int) ([]*Element, Pose) {
	if count <= 0 {
		return nil, pose
	}
	life := b.arena.current()
	const spacing = PlatformSize + 2
	const travel = 1200 * time.Millisecond
	edge := PlatformSize/2 - 0.5
	var out []*Element
	for i := 0; i < count; i++ {
		center := pose.Advance(spacing/2 + float64(i)*spacing)
		out = b.add(out, newElement(KindPlatform, center, Vec3{PlatformSize, 1, PlatformSize}))

		side := b.rng.Sign()
		wall := newHazard(KindMover, center.Offset(side*edge, 2, 0), Vec3{1, 3, PlatformSize})
		out = b.add(out, wall)

		b.arena.spawn(life, "wall:"+wall.ID, func(ctx context.Context) {
			from := side * edge
			for wall.Alive() {
				to := -from
				if !b.tween(ctx, wall, travel, func(k float64) {
					wall.setPos(center.Offset(lerp(from, to, k), 2, 0).Pos)
				}) {
					return
				}
				from = to
				if !b.arena.sleep(ctx, b.rng.Duration(300*time.Millisecond, 900*time.Millisecond)) {
					return
				}
			}
		})
	}
	return out, pose.Advance(float64(count) * spacing)
}

// tween 在 d 内以缓入缓出驱动 apply(k)，k ∈ [0,1]；实例撤销或元素失效返回 false
func (b *Builder) tween(ctx context.Context, e *Element, d time.Duration, apply func(k float64)) bool {
	for t := time.Duration(0); ; t += MotionStep {
		if ctx.Err() != nil || !e.Alive() {
			return false
		}
		if t >= d {
			apply(1)
			return true
		}
		apply(easeInOut(float64(t) / float64(d)))
		if !b.arena.sleep(ctx, MotionStep) {
			return false
		}
	}
}
