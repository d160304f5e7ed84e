package round

import "time"

// TickInterval 阶段倒计时的节拍（每秒一次）
const TickInterval = time.Second

// TickerFactory 产生倒计时节拍；返回的 stop 用于释放底层计时器。
// 测试中替换为手动推送的通道，使阶段推进完全确定
type TickerFactory interface {
	Create(d time.Duration) (<-chan time.Time, func())
}

// RealTicker 基于 time.Ticker 的实现
type RealTicker struct{}

func (RealTicker) Create(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
