package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/sync/errgroup"

	"shooterarena/config"
	"shooterarena/server"
)

// shooterarena 入口：原始 TCP + WebSocket 接入，管理与监控接口走 HTTP
func main() {
	var envFile, addr string
	flag.StringVar(&envFile, "env", ".env", "path of the .env file (optional)")
	flag.StringVar(&addr, "addr", "", "http listen address, overrides HTTP_ADDR, e.g. :8080")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}

	// 使用 zap 日志库写入 LOG_FILE（带滚动）
	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	// 锁顺序检测只在调试时打开
	deadlock.Opts.Disable = !cfg.DebugLocks

	game, err := server.NewGame(cfg, nil)
	if err != nil {
		server.Log.Fatalf("init game: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return game.Run(ctx) })

	if tcpAddr := cfg.TCPAddr(); tcpAddr != "" {
		ln, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			server.Log.Fatalf("listen tcp: %v", err)
		}
		eg.Go(func() error { return game.ServeTCP(ctx, ln) })
	}

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", game.HandleWS)
		// 管理与监控接口
		mux.HandleFunc("/admin/config", game.HandleAdminConfig)
		mux.HandleFunc("/admin/state", game.HandleState)
		mux.HandleFunc("/metrics", game.HandleMetrics)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})

		srv = &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		eg.Go(func() error {
			server.Log.Infof("shooterarena http listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	server.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			server.Log.Warnw("http shutdown", "error", err)
		}
	}
	if err := game.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnw("game shutdown", "error", err)
	}
	if err := eg.Wait(); err != nil {
		server.Log.Errorw("server exited with error", "error", err)
		server.SyncLogger()
		os.Exit(1)
	}
}
