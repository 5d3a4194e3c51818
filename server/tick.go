package server

import (
	"context"
	"runtime/debug"
	"time"
)

// runTicker 以固定周期执行 step 直到 ctx 取消
// 单次 step 的 panic 被记录后丢弃，循环在下一个 Tick 继续
func runTicker(ctx context.Context, name string, period time.Duration, metrics *Metrics, step func()) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	Log.Debugw("loop started", "loop", name, "period", period)
	for {
		select {
		case <-ctx.Done():
			Log.Debugw("loop stopped", "loop", name)
			return nil
		case <-ticker.C:
			start := time.Now()
			safeStep(name, metrics, step)
			metrics.AddTick(time.Since(start).Nanoseconds())
		}
	}
}

func safeStep(name string, metrics *Metrics, step func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncPanicsRecovered()
			Log.Errorw("panic in loop", "loop", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	step()
}
