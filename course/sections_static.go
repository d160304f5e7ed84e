package course

// StartPad 起点平台；返回出生位姿与下一段起点
func (b *Builder) StartPad(center Pose) ([]*Element, Pose, Pose) {
	var out []*Element
	out = b.add(out, newElement(KindPlatform, center, Vec3{16, 1, 16}))
	spawn := center.Offset(0, 3, 0)
	return out, spawn, center.Advance(8 + GapLength)
}

// FinishPad 终点平台；终点触发器由装配器单独追加
func (b *Builder) FinishPad(pose Pose) ([]*Element, Pose) {
	var out []*Element
	out = b.add(out, newElement(KindPlatform, pose.Advance(8), Vec3{16, 1, 16}))
	return out, pose.Advance(16)
}

// GapRun 等距平台直线；每第 4 块后的半间隙处放坑洞，每第 5 块放检查点
func (b *Builder) GapRun(pose Pose, count int) ([]*Element, Pose) {
	if count <= 0 {
		return nil, pose
	}
	step := PlatformSize + GapLength
	var out []*Element
	for i := 1; i <= count; i++ {
		center := pose.Advance(PlatformSize/2 + float64(i-1)*step)
		out = b.add(out, newElement(KindPlatform, center, Vec3{PlatformSize, 1, PlatformSize}))

		if i%5 == 0 {
			cp := newElement(KindCheckpoint, center.Offset(0, 1, 0), Vec3{PlatformSize, 0.2, PlatformSize})
			cp.setContact(func(participant string) { b.sink.CheckpointReached(participant, cp) })
			out = b.add(out, cp)
		}
		if i%4 == 0 {
			pit := center.Advance(PlatformSize/2+GapLength/2).Offset(0, -4, 0)
			out = b.add(out, newHazard(KindHazard, pit, Vec3{PlatformSize, 1, GapLength}))
		}
	}
	return out, pose.Advance(float64(count) * step)
}

// MazePath 生成迷宫每一行的安全格（1..3），相邻两行最多相差一格
func MazePath(rng *Rand, rows int) []int {
	if rows <= 0 {
		return nil
	}
	path := make([]int, rows)
	path[0] = rng.Intn(MazeSlots) + 1
	for i := 1; i < rows; i++ {
		next := path[i-1] + rng.Intn(3) - 1
		if next < 1 {
			next = 1
		}
		if next > MazeSlots {
			next = MazeSlots
		}
		path[i] = next
	}
	return path
}

// MazeRun 每行三格，只有一格安全
func (b *Builder) MazeRun(pose Pose, rows int) ([]*Element, Pose) {
	if rows <= 0 {
		return nil, pose
	}
	path := MazePath(b.rng, rows)
	var out []*Element
	for r, safe := range path {
		rowCenter := pose.Advance(MazeRowDepth/2 + float64(r)*MazeRowDepth)
		for slot := 1; slot <= MazeSlots; slot++ {
			p := rowCenter.Offset(float64(slot-2)*MazeSlotSize, 0, 0)
			size := Vec3{MazeSlotSize, 1, MazeRowDepth}
			if slot == safe {
				out = b.add(out, newElement(KindPlatform, p, size))
			} else {
				out = b.add(out, newHazard(KindHazard, p, size))
			}
		}
	}
	return out, pose.Advance(float64(rows) * MazeRowDepth)
}

// ConveyorField 传送带：沿前进方向叠加速度
func (b *Builder) ConveyorField(pose Pose, rows, cols int) ([]*Element, Pose) {
	return b.forceField(pose, rows, cols, pose.Forward().Scale(ConveyorPush))
}

// WindField 侧风：沿横向叠加速度
func (b *Builder) WindField(pose Pose, rows, cols int) ([]*Element, Pose) {
	return b.forceField(pose, rows, cols, pose.Right().Scale(WindPush))
}

func (b *Builder) forceField(pose Pose, rows, cols int, impulse Vec3) ([]*Element, Pose) {
	if rows <= 0 || cols <= 0 {
		return nil, pose
	}
	const tile = 6.0
	var out []*Element
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			lateral := (float64(c) - float64(cols-1)/2) * tile
			e := newElement(KindForceField, pose.Offset(lateral, 0, tile/2+float64(r)*tile), Vec3{tile, 0.5, tile})
			e.Impulse = impulse
			e.setContact(func(participant string) { b.sink.ImpulseApplied(participant, e.Impulse) })
			out = b.add(out, e)
		}
	}
	return out, pose.Advance(float64(rows) * tile)
}
