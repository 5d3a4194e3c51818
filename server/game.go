package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"shooterarena/config"
	"shooterarena/protocol"
)

// Game 组装状态存储、连接注册表、广播器与三个模拟循环，管理其生命周期
type Game struct {
	cfg      config.Config
	codec    protocol.Codec
	store    *Store
	registry *Registry
	metrics  *Metrics

	broadcaster *Broadcaster
	handler     *Handler
	bullets     *BulletSimulator
	spawner     *PowerupSpawner
	pickups     *PickupChecker

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

// NewGame 按配置构建一局游戏；rng 为 nil 时使用时间种子
func NewGame(cfg config.Config, rng *rand.Rand) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := protocol.ByName(cfg.WireCodec)
	if err != nil {
		return nil, err
	}

	store := NewStore(cfg.MapWidth, cfg.MapHeight, rng)
	registry := NewRegistry()
	metrics := &Metrics{}
	bc := NewBroadcaster(store, registry, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	return &Game{
		cfg:         cfg,
		codec:       codec,
		store:       store,
		registry:    registry,
		metrics:     metrics,
		broadcaster: bc,
		handler:     NewHandler(store, registry, bc, metrics),
		bullets:     NewBulletSimulator(store, bc, metrics, cfg.BulletTick),
		spawner:     NewPowerupSpawner(store, bc, metrics, cfg.PowerupSpawnInterval),
		pickups:     NewPickupChecker(store, bc, metrics, cfg.PickupTick),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

func (g *Game) Store() *Store       { return g.store }
func (g *Game) Registry() *Registry { return g.registry }
func (g *Game) Metrics() *Metrics   { return g.metrics }

// Run 启动三个模拟循环，阻塞直到 ctx 取消或 Shutdown
func (g *Game) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(g.ctx, cancel)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return g.bullets.Run(ctx) })
	eg.Go(func() error { return g.spawner.Run(ctx) })
	eg.Go(func() error { return g.pickups.Run(ctx) })
	Log.Infow("simulation started",
		"map", fmt.Sprintf("%dx%d", g.cfg.MapWidth, g.cfg.MapHeight),
		"bulletTick", g.cfg.BulletTick,
		"spawnInterval", g.cfg.PowerupSpawnInterval,
		"pickupTick", g.cfg.PickupTick)
	return eg.Wait()
}

// ServeTCP 在 ln 上接受原始 TCP 连接，直到 ctx 取消或 Shutdown
func (g *Game) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	stopGame := context.AfterFunc(g.ctx, func() { _ = ln.Close() })
	defer stopGame()

	Log.Infow("tcp listening", "addr", ln.Addr().String())
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || g.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				Log.Warnw("accept timeout", "error", err)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		go g.serve(NewTCPConn(c))
	}
}

// serve 在当前协程处理一个连接，直到连接关闭
func (g *Game) serve(conn Conn) {
	if g.ctx.Err() != nil {
		_ = conn.Close()
		return
	}
	g.conns.Add(1)
	defer g.conns.Done()
	g.handler.Serve(g.ctx, conn)
}

// Shutdown 停止模拟循环并关闭所有连接，等待各连接完成清理
func (g *Game) Shutdown(ctx context.Context) error {
	g.cancel()

	var err error
	for _, c := range g.registry.List() {
		err = multierr.Append(err, c.Close())
	}

	done := make(chan struct{})
	go func() {
		g.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, fmt.Errorf("waiting for connections: %w", ctx.Err()))
	}
	Log.Infow("game stopped", "metrics", g.metrics.Snapshot())
	return err
}
