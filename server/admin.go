package server

import (
	"encoding/json"
	"net/http"

	"shooterarena/config"
	"shooterarena/protocol"
)

// HandleAdminConfig 返回当前生效的配置（只读）
// GET /admin/config
func (g *Game) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, configView(g.cfg))
}

// configView 时长按 "20ms" 这类字符串输出，与环境变量的写法一致
func configView(c config.Config) map[string]any {
	return map[string]any{
		"host":                 c.Host,
		"port":                 c.Port,
		"httpAddr":             c.HTTPAddr,
		"wireCodec":            c.WireCodec,
		"logFile":              c.LogFile,
		"logLevel":             c.LogLevel,
		"mapWidth":             c.MapWidth,
		"mapHeight":            c.MapHeight,
		"bulletTick":           c.BulletTick.String(),
		"powerupSpawnInterval": c.PowerupSpawnInterval.String(),
		"pickupTick":           c.PickupTick.String(),
		"debugLocks":           c.DebugLocks,
	}
}

// HandleMetrics 输出世界规模与运行指标
// GET /metrics
func (g *Game) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := g.store.Snapshot()
	writeJSON(w, map[string]any{
		"players":     len(snap.Players),
		"bullets":     len(snap.Bullets),
		"powerups":    len(snap.Powerups),
		"connections": g.registry.Len(),
		"metrics":     g.metrics.Snapshot(),
	})
}

// HandleState 以 JSON 线上格式输出当前快照，便于调试
// GET /admin/state
func (g *Game) HandleState(w http.ResponseWriter, r *http.Request) {
	data, err := protocol.JSON.EncodeState(ToWire(g.store.Snapshot()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
