package course

import (
	"context"
	"time"
)

// cannonInterval 单门炮两次发射的间隔，∈ [1.5s, 2.5s)
func cannonInterval(rng *Rand) time.Duration {
	return rng.Duration(CannonMinGap, CannonMaxGap)
}

// CannonSchedule 返回一门炮在 total 时长内的所有发射时刻（相对开火起点）
func CannonSchedule(rng *Rand, total time.Duration) []time.Duration {
	var out []time.Duration
	for t := cannonInterval(rng); t <= total; t += cannonInterval(rng) {
		out = append(out, t)
	}
	return out
}

// CannonRun 一排平台，中点左右各一门炮，朝对侧发射炮弹；炮弹 6s 后必定移除
func (b *Builder) CannonRun(pose Pose, count int) ([]*Element, Pose) {
	if count <= 0 {
		return nil, pose
	}
	life := b.arena.current()
	var out []*Element
	for i := 0; i < count; i++ {
		out = b.add(out, newElement(KindPlatform, pose.Advance(PlatformSize/2+float64(i)*PlatformSize), Vec3{PlatformSize, 1, PlatformSize}))
	}

	length := float64(count) * PlatformSize
	mid := pose.Advance(length / 2)
	const reach = PlatformSize + 2
	for _, side := range []float64{-1, 1} {
		launcher := newElement(KindSpawner, mid.Offset(side*reach, 1.5, 0), Vec3{2, 2, 2})
		out = b.add(out, launcher)
		heading := mid.Right().Scale(-side * ProjectileSpeed)

		b.arena.spawn(life, "cannon:"+launcher.ID, func(ctx context.Context) {
			for launcher.Alive() {
				if !b.arena.sleep(ctx, cannonInterval(b.rng)) {
					return
				}
				if !launcher.Alive() {
					return
				}
				b.fire(life, launcher.Pos(), heading)
			}
		})
	}
	return out, pose.Advance(length)
}

// fire 生成一枚炮弹并启动其飞行循环；炮弹用自己的累计时间判断寿命
func (b *Builder) fire(life *lifetime, from, velocity Vec3) *Element {
	shot := newHazard(KindProjectile, Pose{Pos: from}, Vec3{1.5, 1.5, 1.5})
	b.arena.Add(shot)
	b.wire(shot)

	b.arena.spawn(life, "projectile:"+shot.ID, func(ctx context.Context) {
		defer b.arena.Remove(shot.ID)
		var age time.Duration
		for age < ProjectileLife {
			if ctx.Err() != nil || !shot.Alive() {
				return
			}
			if !b.arena.sleep(ctx, MotionStep) {
				return
			}
			age += MotionStep
			shot.setPos(from.Add(velocity.Scale(age.Seconds())))
		}
	})
	return shot
}
