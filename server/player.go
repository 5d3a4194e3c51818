package server

import (
	"math/rand"
	"sync"
	"time"
)

// 玩家与战斗相关的固定参数
const (
	MaxHealth     = 100
	DefaultSpeed  = 5
	BuffedSpeed   = 8
	BuffDuration  = 5 * time.Second
	HealthPickup  = 30
	BulletSpeed   = 10
	BulletDamage  = 25
	HitboxSize    = 48 // 玩家碰撞盒边长，左上角为玩家坐标
	MaxPowerups   = 5
	PowerupMargin = 50

	// 出生/复活区域 [SpawnMin, SpawnMax]²
	SpawnMin = 100
	SpawnMax = 500
)

// PlayerID 表示玩家唯一标识（连接生命周期内不变）
type PlayerID int

// Direction 玩家朝向
type Direction string

const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

// Valid 是否为四个基本方向之一
func (d Direction) Valid() bool {
	switch d {
	case DirUp, DirDown, DirLeft, DirRight:
		return true
	}
	return false
}

// Velocity 返回该朝向上大小为 speed 的速度分量
func (d Direction) Velocity(speed int) (dx, dy int, ok bool) {
	switch d {
	case DirUp:
		return 0, -speed, true
	case DirDown:
		return 0, speed, true
	case DirLeft:
		return -speed, 0, true
	case DirRight:
		return speed, 0, true
	}
	return 0, 0, false
}

// Player 玩家实体（服务端权威状态）
type Player struct {
	ID        PlayerID
	X         int
	Y         int
	Direction Direction
	Health    int
	Speed     int
	Rapid     bool

	// 增益到期时间，零值表示没有生效中的增益
	SpeedBuffExpiresAt time.Time
	RapidBuffExpiresAt time.Time
}

// NewPlayer 以默认属性创建玩家
func NewPlayer(id PlayerID, x, y int) Player {
	return Player{
		ID:        id,
		X:         x,
		Y:         y,
		Direction: DirDown,
		Health:    MaxHealth,
		Speed:     DefaultSpeed,
	}
}

// Hit 判断点 (x, y) 是否落在玩家的碰撞盒内
func (p Player) Hit(x, y int) bool {
	return x >= p.X && x < p.X+HitboxSize && y >= p.Y && y < p.Y+HitboxSize
}

// PlayerFields 玩家字段的部分更新，nil 字段保持原值
type PlayerFields struct {
	X         *int
	Y         *int
	Direction *Direction
	Health    *int
	Speed     *int
	Rapid     *bool
}

type BulletID uint64

// Bullet 子弹；OwnerID 可能指向已离开的玩家
type Bullet struct {
	ID      BulletID
	X, Y    int
	DX, DY  int
	OwnerID PlayerID
}

type PowerupID uint64

// PowerupKind 道具类型
type PowerupKind string

const (
	PowerupHealth PowerupKind = "health"
	PowerupSpeed  PowerupKind = "speed"
	PowerupRapid  PowerupKind = "rapid"
)

var powerupKinds = []PowerupKind{PowerupHealth, PowerupSpeed, PowerupRapid}

// Powerup 地图上的道具
type Powerup struct {
	ID   PowerupID
	X, Y int
	Kind PowerupKind
}

// lockedRand 可被多个协程共享的随机源
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(r *rand.Rand) *lockedRand {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &lockedRand{r: r}
}

// Between 返回 [lo, hi] 内的均匀随机整数
func (l *lockedRand) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo + l.r.Intn(hi-lo+1)
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
