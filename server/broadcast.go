package server

import (
	"errors"

	"shooterarena/protocol"
)

// Notifier 状态变化后触发一次广播
type Notifier interface {
	Broadcast()
}

// Broadcaster 将世界快照编码后发送给所有已注册连接
type Broadcaster struct {
	store    *Store
	registry *Registry
	metrics  *Metrics
}

func NewBroadcaster(store *Store, registry *Registry, metrics *Metrics) *Broadcaster {
	return &Broadcaster{store: store, registry: registry, metrics: metrics}
}

// Broadcast 取快照，每种编码只序列化一次，再压入每个连接的发送队列
// 发送失败的连接被移出注册表，不影响其他连接
func (b *Broadcaster) Broadcast() {
	conns := b.registry.List()
	if len(conns) == 0 {
		return
	}
	state := ToWire(b.store.Snapshot())
	b.metrics.IncBroadcasts()

	payloads := make(map[string][]byte, 2)
	for _, c := range conns {
		codec := c.Codec()
		data, ok := payloads[codec.Name()]
		if !ok {
			var err error
			data, err = codec.EncodeState(state)
			if err != nil {
				Log.Errorw("encode state failed", "codec", codec.Name(), "error", err)
				continue
			}
			payloads[codec.Name()] = data
		}

		err := c.Enqueue(data)
		switch {
		case err == nil:
		case errors.Is(err, ErrQueueFull):
			// 慢客户端：丢弃本次快照，下一次广播会带上最新状态
			b.metrics.IncSendsDropped()
		default:
			if b.registry.Remove(c.ID()) {
				b.metrics.IncConnsPruned()
				Log.Infow("dropping connection after send failure", "conn", c.ID(), "error", err)
			}
			_ = c.Close()
		}
	}
}

// ToWire 将内部快照转换为线上格式
func ToWire(s Snapshot) protocol.State {
	out := protocol.State{
		Players:  make(map[int]protocol.PlayerState, len(s.Players)),
		Bullets:  make([]protocol.BulletState, 0, len(s.Bullets)),
		Powerups: make([]protocol.PowerupState, 0, len(s.Powerups)),
	}
	for id, p := range s.Players {
		out.Players[int(id)] = protocol.PlayerState{
			ID:        int(p.ID),
			X:         p.X,
			Y:         p.Y,
			Direction: string(p.Direction),
			Health:    p.Health,
			Speed:     p.Speed,
			Rapid:     p.Rapid,
		}
	}
	for _, b := range s.Bullets {
		out.Bullets = append(out.Bullets, protocol.BulletState{X: b.X, Y: b.Y, DX: b.DX, DY: b.DY, Owner: int(b.OwnerID)})
	}
	for _, p := range s.Powerups {
		out.Powerups = append(out.Powerups, protocol.PowerupState{X: p.X, Y: p.Y, Kind: string(p.Kind)})
	}
	return out
}
