package server

import (
	"context"
	"errors"
	"time"
)

// BulletSimulator 以固定周期推进所有子弹：移动、出界移除、命中结算
type BulletSimulator struct {
	store    *Store
	notifier Notifier
	metrics  *Metrics
	period   time.Duration
}

func NewBulletSimulator(store *Store, notifier Notifier, metrics *Metrics, period time.Duration) *BulletSimulator {
	return &BulletSimulator{store: store, notifier: notifier, metrics: metrics, period: period}
}

// Run 阻塞直到 ctx 取消
func (s *BulletSimulator) Run(ctx context.Context) error {
	return runTicker(ctx, "bullets", s.period, s.metrics, s.Step)
}

// Step 推进一个 Tick，所有子弹处理完后只广播一次
// 本 Tick 开始时没有子弹则直接返回、不广播，空场时不产生 50Hz 的空快照
func (s *BulletSimulator) Step() {
	bullets := s.store.Bullets()
	if len(bullets) == 0 {
		return
	}
	// 按 ID 升序，先命中者生效
	players := s.store.Players()

	var dead []BulletID
	expired := 0
	for _, b := range bullets {
		moved, ok := s.store.MutateBullet(b.ID, func(b *Bullet) {
			b.X += b.DX
			b.Y += b.DY
		})
		if !ok {
			continue
		}
		if !s.store.InBounds(moved.X, moved.Y) {
			dead = append(dead, moved.ID)
			expired++
			continue
		}
		if s.resolveHit(moved, players) {
			dead = append(dead, moved.ID)
		}
	}

	s.store.RemoveBullets(dead)
	s.metrics.AddBulletsExpired(expired)
	s.notifier.Broadcast()
}

// resolveHit 检查子弹是否命中除射击者以外的玩家，命中则结算伤害
func (s *BulletSimulator) resolveHit(b Bullet, players []Player) bool {
	for i := range players {
		p := &players[i]
		if p.ID == b.OwnerID || !p.Hit(b.X, b.Y) {
			continue
		}
		respawned, err := s.store.ApplyDamage(p.ID, BulletDamage)
		if errors.Is(err, ErrPlayerNotFound) {
			// 玩家已离开，继续检查其他玩家
			continue
		}
		s.metrics.IncHits()
		if respawned {
			s.metrics.IncRespawns()
			Log.Infow("player respawned", "player", int(p.ID), "by", int(b.OwnerID))
		}
		// 同一 Tick 内后续子弹需要看到新的位置
		if cur, ok := s.store.Player(p.ID); ok {
			*p = cur
		}
		return true
	}
	return false
}
