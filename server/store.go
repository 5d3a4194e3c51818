package server

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// ErrPlayerNotFound 玩家已不存在（如断线后计时器/子弹仍引用该玩家），调用方应视为 no-op
var ErrPlayerNotFound = errors.New("player not found")

// Store 共享的世界状态：玩家、子弹、道具各自一个互斥域
//
// 任何方法都不会同时持有两个域的锁，因此不存在锁顺序问题。
// 读取方法返回值拷贝，调用方可在锁外自由使用。
type Store struct {
	width, height int
	rng           *lockedRand

	playersMu deadlock.RWMutex
	players   map[PlayerID]*Player

	bulletsMu  deadlock.RWMutex
	bullets    map[BulletID]*Bullet
	nextBullet BulletID

	powerupsMu  deadlock.RWMutex
	powerups    map[PowerupID]*Powerup
	nextPowerup PowerupID
}

// Snapshot 某一时刻的世界深拷贝，可在其他协程继续修改时安全序列化
type Snapshot struct {
	Players  map[PlayerID]Player
	Bullets  []Bullet
	Powerups []Powerup
}

// NewStore 创建 width x height 地图的状态存储；rng 为 nil 时使用时间种子
func NewStore(width, height int, rng *rand.Rand) *Store {
	return &Store{
		width:    width,
		height:   height,
		rng:      newLockedRand(rng),
		players:  make(map[PlayerID]*Player),
		bullets:  make(map[BulletID]*Bullet),
		powerups: make(map[PowerupID]*Powerup),
	}
}

// Bounds 返回地图尺寸
func (s *Store) Bounds() (width, height int) {
	return s.width, s.height
}

// InBounds 点是否位于 [0,width]×[0,height] 内
func (s *Store) InBounds(x, y int) bool {
	return x >= 0 && x <= s.width && y >= 0 && y <= s.height
}

func (s *Store) randomSpawn() (int, int) {
	return s.rng.Between(SpawnMin, SpawnMax), s.rng.Between(SpawnMin, SpawnMax)
}

// RandomPowerup 返回一个随机类型、位于 [margin, size-margin] 内的道具（尚未写入）
func (s *Store) RandomPowerup() Powerup {
	return Powerup{
		X:    s.rng.Between(PowerupMargin, s.width-PowerupMargin),
		Y:    s.rng.Between(PowerupMargin, s.height-PowerupMargin),
		Kind: powerupKinds[s.rng.Intn(len(powerupKinds))],
	}
}

// ---- players ----

// SpawnPlayer 在随机出生点创建默认属性的玩家并写入
func (s *Store) SpawnPlayer(id PlayerID) Player {
	x, y := s.randomSpawn()
	p := NewPlayer(id, x, y)
	s.UpsertPlayer(p)
	return p
}

// UpsertPlayer 插入或整体替换玩家
func (s *Store) UpsertPlayer(p Player) {
	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	cp := p
	s.players[p.ID] = &cp
}

// RemovePlayer 删除玩家，返回玩家此前是否存在
func (s *Store) RemovePlayer(id PlayerID) bool {
	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	return true
}

// Player 读取单个玩家
func (s *Store) Player(id PlayerID) (Player, bool) {
	s.playersMu.RLock()
	defer s.playersMu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Players 返回按 ID 升序排列的玩家拷贝
func (s *Store) Players() []Player {
	s.playersMu.RLock()
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	s.playersMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlayerCount 当前玩家数
func (s *Store) PlayerCount() int {
	s.playersMu.RLock()
	defer s.playersMu.RUnlock()
	return len(s.players)
}

// ApplyPlayerFields 合并部分字段：出现的字段覆盖，缺失的字段保持不变
// 坐标裁剪到地图内，生命值裁剪到 [0,100]，非法朝向被忽略
// 合并后生命值 <= 0 时与受伤致死一样原地复活
func (s *Store) ApplyPlayerFields(id PlayerID, f PlayerFields) (Player, error) {
	var x, y int
	if f.Health != nil && *f.Health <= 0 {
		x, y = s.randomSpawn()
	}

	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return Player{}, ErrPlayerNotFound
	}
	if f.X != nil {
		p.X = clamp(*f.X, 0, s.width)
	}
	if f.Y != nil {
		p.Y = clamp(*f.Y, 0, s.height)
	}
	if f.Direction != nil && f.Direction.Valid() {
		p.Direction = *f.Direction
	}
	if f.Health != nil {
		p.Health = clamp(*f.Health, 0, MaxHealth)
	}
	if f.Speed != nil {
		p.Speed = max(*f.Speed, 0)
	}
	if f.Rapid != nil {
		p.Rapid = *f.Rapid
	}
	if p.Health <= 0 {
		respawnLocked(p, x, y)
	}
	return *p, nil
}

// ApplyDamage 扣血；生命值 <= 0 时原地复活：满血、随机位置、清除增益
// 返回是否触发了复活
func (s *Store) ApplyDamage(id PlayerID, amount int) (respawned bool, err error) {
	x, y := s.randomSpawn()

	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return false, ErrPlayerNotFound
	}
	p.Health -= amount
	if p.Health > 0 {
		return false, nil
	}
	respawnLocked(p, x, y)
	return true, nil
}

// respawnLocked 满血复活到 (x, y) 并清除增益；调用方持有 playersMu
func respawnLocked(p *Player, x, y int) {
	p.Health = MaxHealth
	p.X, p.Y = x, y
	p.Speed = DefaultSpeed
	p.Rapid = false
	p.SpeedBuffExpiresAt = time.Time{}
	p.RapidBuffExpiresAt = time.Time{}
}

// ApplyPowerup 对玩家施加道具效果；计时类增益在 now+BuffDuration 到期
func (s *Store) ApplyPowerup(id PlayerID, kind PowerupKind, now time.Time) (Player, error) {
	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return Player{}, ErrPlayerNotFound
	}
	switch kind {
	case PowerupHealth:
		p.Health = min(p.Health+HealthPickup, MaxHealth)
	case PowerupSpeed:
		p.Speed = BuffedSpeed
		p.SpeedBuffExpiresAt = now.Add(BuffDuration)
	case PowerupRapid:
		p.Rapid = true
		p.RapidBuffExpiresAt = now.Add(BuffDuration)
	}
	return *p, nil
}

// ExpireBuffs 还原所有已到期的增益，返回被还原的增益数量
// 再次拾取同类道具会推迟到期时间，因此旧的到期不会覆盖新的增益
func (s *Store) ExpireBuffs(now time.Time) int {
	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	n := 0
	for _, p := range s.players {
		if !p.SpeedBuffExpiresAt.IsZero() && !now.Before(p.SpeedBuffExpiresAt) {
			p.Speed = DefaultSpeed
			p.SpeedBuffExpiresAt = time.Time{}
			n++
		}
		if !p.RapidBuffExpiresAt.IsZero() && !now.Before(p.RapidBuffExpiresAt) {
			p.Rapid = false
			p.RapidBuffExpiresAt = time.Time{}
			n++
		}
	}
	return n
}

// ---- bullets ----

// AddBullet 写入子弹并分配 ID
func (s *Store) AddBullet(b Bullet) Bullet {
	s.bulletsMu.Lock()
	defer s.bulletsMu.Unlock()
	s.nextBullet++
	b.ID = s.nextBullet
	cp := b
	s.bullets[b.ID] = &cp
	return b
}

// RemoveBullet 删除子弹，返回子弹此前是否存在
func (s *Store) RemoveBullet(id BulletID) bool {
	s.bulletsMu.Lock()
	defer s.bulletsMu.Unlock()
	if _, ok := s.bullets[id]; !ok {
		return false
	}
	delete(s.bullets, id)
	return true
}

// RemoveBullets 批量删除，返回实际删除数量
func (s *Store) RemoveBullets(ids []BulletID) int {
	if len(ids) == 0 {
		return 0
	}
	s.bulletsMu.Lock()
	defer s.bulletsMu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.bullets[id]; ok {
			delete(s.bullets, id)
			n++
		}
	}
	return n
}

// MutateBullet 在锁内修改子弹并返回修改后的拷贝
func (s *Store) MutateBullet(id BulletID, fn func(b *Bullet)) (Bullet, bool) {
	s.bulletsMu.Lock()
	defer s.bulletsMu.Unlock()
	b, ok := s.bullets[id]
	if !ok {
		return Bullet{}, false
	}
	fn(b)
	b.ID = id
	return *b, true
}

// Bullets 返回按 ID 升序排列的子弹拷贝
func (s *Store) Bullets() []Bullet {
	s.bulletsMu.RLock()
	out := make([]Bullet, 0, len(s.bullets))
	for _, b := range s.bullets {
		out = append(out, *b)
	}
	s.bulletsMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- powerups ----

// AddPowerup 写入道具并分配 ID（不检查上限）
func (s *Store) AddPowerup(p Powerup) Powerup {
	s.powerupsMu.Lock()
	defer s.powerupsMu.Unlock()
	return s.addPowerupLocked(p)
}

// AddPowerupCapped 仅当当前道具数 < limit 时写入；检查与写入在同一临界区内
func (s *Store) AddPowerupCapped(p Powerup, limit int) (Powerup, bool) {
	s.powerupsMu.Lock()
	defer s.powerupsMu.Unlock()
	if len(s.powerups) >= limit {
		return Powerup{}, false
	}
	return s.addPowerupLocked(p), true
}

func (s *Store) addPowerupLocked(p Powerup) Powerup {
	s.nextPowerup++
	p.ID = s.nextPowerup
	cp := p
	s.powerups[p.ID] = &cp
	return p
}

// RemovePowerup 删除道具，返回道具此前是否存在（用于独占地“领取”道具）
func (s *Store) RemovePowerup(id PowerupID) bool {
	s.powerupsMu.Lock()
	defer s.powerupsMu.Unlock()
	if _, ok := s.powerups[id]; !ok {
		return false
	}
	delete(s.powerups, id)
	return true
}

// Powerups 返回按 ID 升序排列的道具拷贝
func (s *Store) Powerups() []Powerup {
	s.powerupsMu.RLock()
	out := make([]Powerup, 0, len(s.powerups))
	for _, p := range s.powerups {
		out = append(out, *p)
	}
	s.powerupsMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PowerupCount 当前道具数
func (s *Store) PowerupCount() int {
	s.powerupsMu.RLock()
	defer s.powerupsMu.RUnlock()
	return len(s.powerups)
}

// Snapshot 依次在各域的读锁下拷贝三类实体
func (s *Store) Snapshot() Snapshot {
	s.playersMu.RLock()
	players := make(map[PlayerID]Player, len(s.players))
	for id, p := range s.players {
		players[id] = *p
	}
	s.playersMu.RUnlock()

	return Snapshot{
		Players:  players,
		Bullets:  s.Bullets(),
		Powerups: s.Powerups(),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
