package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSim(s *Store) (*BulletSimulator, *countingNotifier, *Metrics) {
	n := &countingNotifier{}
	m := &Metrics{}
	return NewBulletSimulator(s, n, m, 0), n, m
}

func TestShootSpawnsBulletAlongDirection(t *testing.T) {
	cases := []struct {
		dir    Direction
		dx, dy int
	}{
		{DirUp, 0, -10},
		{DirDown, 0, 10},
		{DirLeft, -10, 0},
		{DirRight, 10, 0},
	}
	for _, c := range cases {
		t.Run(string(c.dir), func(t *testing.T) {
			s := newTestStore()
			p := NewPlayer(1, 100, 100)
			p.Direction = c.dir
			s.UpsertPlayer(p)

			b, ok := Shoot(s, 1)
			require.True(t, ok)
			assert.Equal(t, 100, b.X)
			assert.Equal(t, 100, b.Y)
			assert.Equal(t, c.dx, b.DX)
			assert.Equal(t, c.dy, b.DY)
			assert.Equal(t, PlayerID(1), b.OwnerID)
		})
	}
}

func TestShootUnknownDirection(t *testing.T) {
	s := newTestStore()
	p := NewPlayer(1, 100, 100)
	p.Direction = "sideways"
	s.UpsertPlayer(p)

	_, ok := Shoot(s, 1)
	assert.False(t, ok)
	_, ok = Shoot(s, 2)
	assert.False(t, ok)
	assert.Empty(t, s.Bullets())
}

func TestBulletAdvancesWithoutHit(t *testing.T) {
	s := newTestStore()
	a := NewPlayer(1, 100, 100)
	a.Direction = DirRight
	s.UpsertPlayer(a)
	_, ok := Shoot(s, 1)
	require.True(t, ok)

	sim, n, m := newTestSim(s)
	for i := 0; i < 5; i++ {
		sim.Step()
	}

	bs := s.Bullets()
	require.Len(t, bs, 1)
	assert.Equal(t, 150, bs[0].X)
	assert.Equal(t, 100, bs[0].Y)
	assert.Equal(t, 5, n.Count())
	assert.Zero(t, m.Hits)
}

func TestBulletHitsOtherPlayer(t *testing.T) {
	s := newTestStore()
	s.UpsertPlayer(NewPlayer(1, 500, 500))
	s.UpsertPlayer(NewPlayer(2, 200, 200))
	s.AddBullet(Bullet{X: 200, Y: 210, DX: 10, OwnerID: 1})

	sim, n, m := newTestSim(s)
	sim.Step()

	b, _ := s.Player(2)
	assert.Equal(t, 75, b.Health)
	assert.Empty(t, s.Bullets())
	assert.Equal(t, 1, n.Count())
	assert.EqualValues(t, 1, m.Hits)
}

func TestBulletIgnoresOwner(t *testing.T) {
	s := newTestStore()
	s.UpsertPlayer(NewPlayer(1, 200, 200))
	s.AddBullet(Bullet{X: 200, Y: 210, DX: 10, OwnerID: 1})

	sim, _, _ := newTestSim(s)
	sim.Step()

	p, _ := s.Player(1)
	assert.Equal(t, MaxHealth, p.Health)
	require.Len(t, s.Bullets(), 1)
}

func TestBulletFromDepartedOwnerStillHits(t *testing.T) {
	s := newTestStore()
	s.UpsertPlayer(NewPlayer(2, 200, 200))
	s.AddBullet(Bullet{X: 200, Y: 210, DX: 10, OwnerID: 99})

	sim, _, _ := newTestSim(s)
	sim.Step()

	p, _ := s.Player(2)
	assert.Equal(t, 75, p.Health)
}

func TestBulletHitTriggersRespawn(t *testing.T) {
	s := newTestStore()
	b := NewPlayer(2, 200, 200)
	b.Health = 20
	b.Speed = BuffedSpeed
	b.Rapid = true
	s.UpsertPlayer(b)
	s.AddBullet(Bullet{X: 200, Y: 210, DX: 10, OwnerID: 1})

	sim, _, m := newTestSim(s)
	sim.Step()

	got, _ := s.Player(2)
	assert.Equal(t, MaxHealth, got.Health)
	assert.Equal(t, DefaultSpeed, got.Speed)
	assert.False(t, got.Rapid)
	assert.True(t, got.X >= SpawnMin && got.X <= SpawnMax)
	assert.True(t, got.Y >= SpawnMin && got.Y <= SpawnMax)
	assert.EqualValues(t, 1, m.Respawns)
}

func TestBulletFirstHitWinsByAscendingID(t *testing.T) {
	s := newTestStore()
	s.UpsertPlayer(NewPlayer(3, 200, 200))
	s.UpsertPlayer(NewPlayer(2, 190, 190))
	s.AddBullet(Bullet{X: 200, Y: 200, DX: 10, DY: 10, OwnerID: 1})

	sim, _, _ := newTestSim(s)
	sim.Step()

	p2, _ := s.Player(2)
	p3, _ := s.Player(3)
	assert.Equal(t, 75, p2.Health)
	assert.Equal(t, MaxHealth, p3.Health)
	assert.Empty(t, s.Bullets())
}

func TestBulletLeavesMap(t *testing.T) {
	s := newTestStore()
	s.AddBullet(Bullet{X: 1275, Y: 100, DX: 10, OwnerID: 1})
	s.AddBullet(Bullet{X: 1270, Y: 100, DX: 10, OwnerID: 1})

	sim, n, m := newTestSim(s)
	sim.Step()

	// x=1280 仍在地图内，x=1285 越界
	bs := s.Bullets()
	require.Len(t, bs, 1)
	assert.Equal(t, 1280, bs[0].X)
	assert.EqualValues(t, 1, m.BulletsExpired)

	sim.Step()
	assert.Empty(t, s.Bullets())
	assert.Equal(t, 2, n.Count())
}

func TestOutOfBoundsBulletDoesNotHit(t *testing.T) {
	s := newTestStore()
	s.UpsertPlayer(NewPlayer(2, 0, 0))
	s.AddBullet(Bullet{X: 5, Y: 5, DX: -10, OwnerID: 1})

	sim, _, m := newTestSim(s)
	sim.Step()

	p, _ := s.Player(2)
	assert.Equal(t, MaxHealth, p.Health)
	assert.Empty(t, s.Bullets())
	assert.Zero(t, m.Hits)
}

func TestBulletStepIdleDoesNotBroadcast(t *testing.T) {
	s := newTestStore()
	s.UpsertPlayer(NewPlayer(1, 100, 100))

	sim, n, _ := newTestSim(s)
	sim.Step()
	assert.Zero(t, n.Count())
}
