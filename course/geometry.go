package course

import "math"

// Vec3 三维向量（Y 轴向上）
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Dist(o Vec3) float64  { return v.Sub(o).Len() }
func (v Vec3) Up(h float64) Vec3    { return Vec3{v.X, v.Y + h, v.Z} }

// Pose 位姿：位置 + 绕 Y 轴的朝向（弧度）
// 前进方向为 (sin yaw, 0, cos yaw)，右侧为 (cos yaw, 0, -sin yaw)
type Pose struct {
	Pos Vec3    `json:"pos"`
	Yaw float64 `json:"yaw"`
}

func (p Pose) Forward() Vec3 { return Vec3{math.Sin(p.Yaw), 0, math.Cos(p.Yaw)} }
func (p Pose) Right() Vec3   { return Vec3{math.Cos(p.Yaw), 0, -math.Sin(p.Yaw)} }

// Advance 沿前进方向平移 d
func (p Pose) Advance(d float64) Pose {
	return Pose{Pos: p.Pos.Add(p.Forward().Scale(d)), Yaw: p.Yaw}
}

// Offset 在局部坐标系中平移：right 为横向，up 为竖直，forward 为纵向
func (p Pose) Offset(right, up, forward float64) Pose {
	pos := p.Pos.Add(p.Right().Scale(right)).Add(p.Forward().Scale(forward))
	pos.Y += up
	return Pose{Pos: pos, Yaw: p.Yaw}
}

// Rotated 返回绕 Y 轴旋转 a 弧度后的位姿
func (p Pose) Rotated(a float64) Pose { return Pose{Pos: p.Pos, Yaw: p.Yaw + a} }

// easeInOut 正弦缓动，t ∈ [0,1]
func easeInOut(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(math.Pi*t)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
