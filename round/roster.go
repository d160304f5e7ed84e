package round

import (
	"sort"
	"sync"

	"courserush/course"
)

// Participant 参与者的服务端状态
type Participant struct {
	ID       string      `json:"id"`
	Pose     course.Pose `json:"pose"`
	Velocity course.Vec3 `json:"velocity"`
	Away     bool        `json:"away"`
}

// Roster 在线参与者与离开状态；网络回调与阶段驱动并发访问
type Roster struct {
	mu      sync.RWMutex
	members map[string]*Participant
}

func NewRoster() *Roster {
	return &Roster{members: make(map[string]*Participant)}
}

// Join 已存在时返回 false
func (r *Roster) Join(id string, pose course.Pose) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; ok {
		return false
	}
	r.members[id] = &Participant{ID: id, Pose: pose}
	return true
}

func (r *Roster) Leave(id string) {
	r.mu.Lock()
	delete(r.members, id)
	r.mu.Unlock()
}

func (r *Roster) Get(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.members[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// IsAway 未知参与者视为不在场
func (r *Roster) IsAway(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.members[id]
	return !ok || p.Away
}

// ToggleAway 切换离开状态并返回新值
func (r *Roster) ToggleAway(id string) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[id]
	if !ok {
		return false, false
	}
	p.Away = !p.Away
	return p.Away, true
}

// Eligible 非离开状态的参与者，按 id 排序
func (r *Roster) Eligible() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.members))
	for id, p := range r.members {
		if !p.Away {
			out = append(out, id)
		}
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Teleport 设置位姿并清零速度；参与者已断开时为 no-op
func (r *Roster) Teleport(id string, pose course.Pose) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[id]
	if !ok {
		return false
	}
	p.Pose = pose
	p.Velocity = course.Vec3{}
	return true
}

// AddImpulse 力场叠加到速度上
func (r *Roster) AddImpulse(id string, impulse course.Vec3) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[id]
	if !ok {
		return false
	}
	p.Velocity = p.Velocity.Add(impulse)
	return true
}

// Respawner 记录每位参与者最近到达的检查点
type Respawner struct {
	mu    sync.Mutex
	spots map[string]course.Pose
}

func NewRespawner() *Respawner {
	return &Respawner{spots: make(map[string]course.Pose)}
}

func (r *Respawner) Mark(id string, pose course.Pose) {
	r.mu.Lock()
	r.spots[id] = pose
	r.mu.Unlock()
}

// PoseFor 没有检查点时返回 fallback（起点）
func (r *Respawner) PoseFor(id string, fallback course.Pose) course.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.spots[id]; ok {
		return p
	}
	return fallback
}

func (r *Respawner) Reset() {
	r.mu.Lock()
	r.spots = make(map[string]course.Pose)
	r.mu.Unlock()
}
