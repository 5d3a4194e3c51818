package server

import (
	"sync/atomic"
)

// Metrics 记录服务运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount       int64 // 所有模拟循环的 Tick 次数
	TotalTickNs     int64 // Tick 累计耗时（纳秒）
	BulletsFired    int64
	BulletsExpired  int64 // 飞出地图被移除的子弹
	Hits            int64
	Respawns        int64
	PowerupsSpawned int64
	PowerupsPicked  int64
	BuffsExpired    int64
	DecodeErrors    int64 // 无法解码而被丢弃的客户端消息
	Broadcasts      int64
	SendsDropped    int64 // 因发送队列满被丢弃的广播
	ConnsPruned     int64 // 因发送失败被移出注册表的连接
	PanicsRecovered int64
}

func (m *Metrics) IncBulletsFired() { atomic.AddInt64(&m.BulletsFired, 1) }
func (m *Metrics) AddBulletsExpired(n int) { atomic.AddInt64(&m.BulletsExpired, int64(n)) }
func (m *Metrics) IncHits() { atomic.AddInt64(&m.Hits, 1) }
func (m *Metrics) IncRespawns() { atomic.AddInt64(&m.Respawns, 1) }
func (m *Metrics) IncPowerupsSpawned() { atomic.AddInt64(&m.PowerupsSpawned, 1) }
func (m *Metrics) IncPowerupsPicked() { atomic.AddInt64(&m.PowerupsPicked, 1) }
func (m *Metrics) AddBuffsExpired(n int) { atomic.AddInt64(&m.BuffsExpired, int64(n)) }
func (m *Metrics) IncDecodeErrors() { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncBroadcasts() { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *Metrics) IncSendsDropped() { atomic.AddInt64(&m.SendsDropped, 1) }
func (m *Metrics) IncConnsPruned() { atomic.AddInt64(&m.ConnsPruned, 1) }
func (m *Metrics) IncPanicsRecovered() { atomic.AddInt64(&m.PanicsRecovered, 1) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":       tick,
		"avg_tick_ms":      avgMs,
		"bullets_fired":    atomic.LoadInt64(&m.BulletsFired),
		"bullets_expired":  atomic.LoadInt64(&m.BulletsExpired),
		"hits":             atomic.LoadInt64(&m.Hits),
		"respawns":         atomic.LoadInt64(&m.Respawns),
		"powerups_spawned": atomic.LoadInt64(&m.PowerupsSpawned),
		"powerups_picked":  atomic.LoadInt64(&m.PowerupsPicked),
		"buffs_expired":    atomic.LoadInt64(&m.BuffsExpired),
		"decode_errors":    atomic.LoadInt64(&m.DecodeErrors),
		"broadcasts":       atomic.LoadInt64(&m.Broadcasts),
		"sends_dropped":    atomic.LoadInt64(&m.SendsDropped),
		"conns_pruned":     atomic.LoadInt64(&m.ConnsPruned),
		"panics_recovered": atomic.LoadInt64(&m.PanicsRecovered),
	}
}
