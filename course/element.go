package course

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind 障碍元素类型
type Kind int

const (
	KindPlatform Kind = iota
	KindHazard
	KindMover
	KindSpawner
	KindForceField
	KindCheckpoint
	KindFinish
	KindPodium
	KindProjectile
)

func (k Kind) String() string {
	switch k {
	case KindPlatform:
		return "platform"
	case KindHazard:
		return "hazard"
	case KindMover:
		return "mover"
	case KindSpawner:
		return "spawner"
	case KindForceField:
		return "force_field"
	case KindCheckpoint:
		return "checkpoint"
	case KindFinish:
		return "finish"
	case KindPodium:
		return "podium"
	case KindProjectile:
		return "projectile"
	default:
		return "unknown"
	}
}

// Element 课程中的单个元素；运动状态由其后台循环更新
type Element struct {
	ID      string
	Kind    Kind
	Hazard  bool
	Base    Pose // 生成时的位姿
	Size    Vec3
	Impulse Vec3 // 仅力场使用

	mu    sync.RWMutex
	pos   Vec3
	angle float64
	scale float64

	alive atomic.Bool

	contactMu sync.Mutex
	onContact func(participant string)
	wired     bool
}

func newElement(kind Kind, pose Pose, size Vec3) *Element {
	return &Element{
		ID:    uuid.NewString(),
		Kind:  kind,
		Base:  pose,
		Size:  size,
		pos:   pose.Pos,
		angle: pose.Yaw,
		scale: 1,
	}
}

func newHazard(kind Kind, pose Pose, size Vec3) *Element {
	e := newElement(kind, pose, size)
	e.Hazard = true
	return e
}

// Alive 元素是否仍属于一个存活的课程实例
func (e *Element) Alive() bool { return e.alive.Load() }

func (e *Element) Pos() Vec3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pos
}

func (e *Element) Angle() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.angle
}

func (e *Element) Scale() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scale
}

func (e *Element) setPos(p Vec3) {
	e.mu.Lock()
	e.pos = p
	e.mu.Unlock()
}

func (e *Element) setAngle(a float64) {
	e.mu.Lock()
	e.angle = a
	e.mu.Unlock()
}

func (e *Element) setPose(p Vec3, a float64) {
	e.mu.Lock()
	e.pos = p
	e.angle = a
	e.mu.Unlock()
}

func (e *Element) setScale(s float64) {
	e.mu.Lock()
	e.scale = s
	e.mu.Unlock()
}

func (e *Element) setContact(fn func(participant string)) {
	e.contactMu.Lock()
	e.onContact = fn
	e.contactMu.Unlock()
}

// WireHazard 为危险元素挂接触碰回调；同一元素只挂一次，返回是否本次挂上
func (e *Element) WireHazard(fn func(participant string)) bool {
	if !e.Hazard {
		return false
	}
	e.contactMu.Lock()
	defer e.contactMu.Unlock()
	if e.wired {
		return false
	}
	e.wired = true
	e.onContact = fn
	return true
}

// Touch 由宿主物理层在参与者与元素接触时调用
func (e *Element) Touch(participant string) bool {
	if !e.Alive() {
		return false
	}
	e.contactMu.Lock()
	fn := e.onContact
	e.contactMu.Unlock()
	if fn == nil {
		return false
	}
	fn(participant)
	return true
}

// State 广播给客户端的元素快照
type State struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	Hazard bool    `json:"hazard,omitempty"`
	Pos    Vec3    `json:"pos"`
	Size   Vec3    `json:"size"`
	Angle  float64 `json:"angle"`
	Scale  float64 `json:"scale"`
}

func (e *Element) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		ID:     e.ID,
		Kind:   e.Kind.String(),
		Hazard: e.Hazard,
		Pos:    e.pos,
		Size:   e.Size,
		Angle:  e.angle,
		Scale:  e.scale,
	}
}
