package server

import (
	"context"
	"errors"
	"time"
)

// PowerupSpawner 按固定间隔在地图上补充道具，数量不超过 MaxPowerups
type PowerupSpawner struct {
	store    *Store
	notifier Notifier
	metrics  *Metrics
	period   time.Duration
}

func NewPowerupSpawner(store *Store, notifier Notifier, metrics *Metrics, period time.Duration) *PowerupSpawner {
	return &PowerupSpawner{store: store, notifier: notifier, metrics: metrics, period: period}
}

func (s *PowerupSpawner) Run(ctx context.Context) error {
	return runTicker(ctx, "powerup-spawner", s.period, s.metrics, s.Step)
}

// Step 未达上限时生成一个随机道具；无论是否生成都会广播
func (s *PowerupSpawner) Step() {
	defer s.notifier.Broadcast()

	if s.store.PowerupCount() >= MaxPowerups {
		return
	}
	p, ok := s.store.AddPowerupCapped(s.store.RandomPowerup(), MaxPowerups)
	if !ok {
		return
	}
	s.metrics.IncPowerupsSpawned()
	Log.Debugw("powerup spawned", "powerup", uint64(p.ID), "kind", p.Kind, "x", p.X, "y", p.Y)
}

// PickupChecker 检测玩家拾取道具，并还原已到期的增益
type PickupChecker struct {
	store    *Store
	notifier Notifier
	metrics  *Metrics
	period   time.Duration
	now      func() time.Time
}

func NewPickupChecker(store *Store, notifier Notifier, metrics *Metrics, period time.Duration) *PickupChecker {
	return &PickupChecker{store: store, notifier: notifier, metrics: metrics, period: period, now: time.Now}
}

func (c *PickupChecker) Run(ctx context.Context) error {
	return runTicker(ctx, "pickups", c.period, c.metrics, func() { c.Step(c.now()) })
}

// Step 先还原到期增益，再为每个玩家结算至多一个道具，每次拾取立即广播
func (c *PickupChecker) Step(now time.Time) {
	if n := c.store.ExpireBuffs(now); n > 0 {
		c.metrics.AddBuffsExpired(n)
		c.notifier.Broadcast()
	}

	powerups := c.store.Powerups()
	if len(powerups) == 0 {
		return
	}
	for _, p := range c.store.Players() {
		for _, pu := range powerups {
			if !p.Hit(pu.X, pu.Y) {
				continue
			}
			// 删除成功即领取成功，已被其他玩家领取的道具跳过
			if !c.store.RemovePowerup(pu.ID) {
				continue
			}
			c.pickup(p.ID, pu, now)
			break
		}
	}
}

func (c *PickupChecker) pickup(id PlayerID, pu Powerup, now time.Time) {
	updated, err := c.store.ApplyPowerup(id, pu.Kind, now)
	if errors.Is(err, ErrPlayerNotFound) {
		Log.Debugw("powerup consumed by departed player", "player", int(id), "powerup", uint64(pu.ID))
		return
	}
	c.metrics.IncPowerupsPicked()
	Log.Infow("powerup picked", "player", int(id), "kind", pu.Kind,
		"health", updated.Health, "speed", updated.Speed, "rapid", updated.Rapid)
	c.notifier.Broadcast()
}
