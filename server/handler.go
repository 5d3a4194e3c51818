package server

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shooterarena/protocol"
)

// Handler 每个客户端连接一个：读取意图、写入状态、触发广播
type Handler struct {
	store    *Store
	registry *Registry
	notifier Notifier
	metrics  *Metrics
	nextID   atomic.Int64
}

func NewHandler(store *Store, registry *Registry, notifier Notifier, metrics *Metrics) *Handler {
	return &Handler{store: store, registry: registry, notifier: notifier, metrics: metrics}
}

// Serve 处理一个连接直到其关闭；ctx 取消时主动关闭连接
// 退出时无论原因都恰好执行一次清理：移出注册表、删除玩家、关闭连接
func (h *Handler) Serve(ctx context.Context, conn Conn) {
	id := PlayerID(h.nextID.Add(1))
	p := h.store.SpawnPlayer(id)
	h.registry.Add(conn)

	log := Log.With("player", int(id), "conn", conn.ID(), "remote", conn.RemoteAddr())
	log.Infow("player connected", "x", p.X, "y", p.Y)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		h.registry.Remove(conn.ID())
		h.store.RemovePlayer(id)
		_ = conn.Close()
		log.Infow("player disconnected")
		h.notifier.Broadcast()
	}()

	h.notifier.Broadcast()

	codec := conn.Codec()
	for {
		raw, err := conn.Receive()
		if err != nil {
			if !isClosedErr(err) {
				log.Warnw("receive failed", "error", err)
			}
			return
		}
		if h.handleMessage(id, codec, raw, log) {
			h.notifier.Broadcast()
		}
	}
}

// handleMessage 处理一条消息，返回状态是否发生变化
func (h *Handler) handleMessage(id PlayerID, codec protocol.Codec, raw []byte, log *zap.SugaredLogger) (changed bool) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.IncPanicsRecovered()
			log.Errorw("panic while handling message", "panic", r, "stack", string(debug.Stack()))
			changed = false
		}
	}()

	in, err := codec.DecodeIntent(raw)
	if err != nil {
		h.metrics.IncDecodeErrors()
		log.Warnw("dropping undecodable message", "error", err)
		return false
	}

	switch in.Type {
	case protocol.MsgPlayerUpdate:
		if in.Data == nil {
			return false
		}
		if _, err := h.store.ApplyPlayerFields(id, fieldsFromPatch(*in.Data)); err != nil {
			log.Debugw("player update ignored", "error", err)
			return false
		}
		return true
	case protocol.MsgShoot:
		b, ok := Shoot(h.store, id)
		if !ok {
			return false
		}
		h.metrics.IncBulletsFired()
		log.Debugw("bullet fired", "bullet", uint64(b.ID), "dx", b.DX, "dy", b.DY)
		return true
	default:
		log.Warnw("dropping unknown message type", "type", in.Type)
		return false
	}
}

// Shoot 在射击者当前位置沿其朝向生成一颗子弹；朝向无法识别时不生成
func Shoot(store *Store, id PlayerID) (Bullet, bool) {
	p, ok := store.Player(id)
	if !ok {
		return Bullet{}, false
	}
	dx, dy, ok := p.Direction.Velocity(BulletSpeed)
	if !ok {
		return Bullet{}, false
	}
	return store.AddBullet(Bullet{X: p.X, Y: p.Y, DX: dx, DY: dy, OwnerID: id}), true
}

func fieldsFromPatch(p protocol.PlayerPatch) PlayerFields {
	f := PlayerFields{
		X:      p.X,
		Y:      p.Y,
		Health: p.Health,
		Speed:  p.Speed,
		Rapid:  p.Rapid,
	}
	if p.Direction != nil {
		d := Direction(*p.Direction)
		f.Direction = &d
	}
	return f
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrConnClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
