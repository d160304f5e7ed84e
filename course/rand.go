package course

import (
	"math/rand"
	"sync"
	"time"
)

// Rand 全局共享的随机源；所有布局与计时随机性都从这里取，固定 seed 即可复现
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand seed 为 0 时使用当前时间
func NewRand(seed int64) *Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Intn(n)
}

func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}

// Range 返回 [lo, hi) 内的均匀随机数
func (r *Rand) Range(lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// Duration 返回 [lo, hi) 内的随机时长
func (r *Rand) Duration(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(r.Float64()*float64(hi-lo))
}

func (r *Rand) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Perm(n)
}

// Sign 随机返回 1 或 -1
func (r *Rand) Sign() float64 {
	if r.Intn(2) == 0 {
		return -1
	}
	return 1
}
