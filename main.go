package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"courserush/config"
	"courserush/course"
	"courserush/logger"
	"courserush/round"
	"courserush/server"
	"courserush/store"
)

// courserush 入口：加载配置，选择存储后端，启动回合循环与 HTTP + WebSocket 服务
func main() {
	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "optional JSON config file (catalog, shop, titles, durations)")
	flag.StringVar(&addr, "addr", "", "override listen address, e.g. :8080")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	// 使用 zap 写入滚动日志文件
	if err := logger.Init(cfg.LogFile, cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	arena := course.NewArena(nil)
	metrics := server.NewMetrics(func() float64 { return float64(arena.Loops()) })
	hub := server.NewHub(metrics)

	backends := openBackends(ctx, cfg)
	defer backends.close()
	opts := store.Options{OnDegraded: metrics.StoreDegraded}
	balances := store.NewBalances(backends.balances, opts)
	wins := store.NewWins(backends.wins, opts)
	inventory := store.NewInventory(backends.inventory, backends.daily, opts)
	balances.Start(ctx)
	wins.Start(ctx)
	inventory.Start(ctx)

	ctrl := round.NewController(cfg, arena, course.NewRand(cfg.Seed), round.Deps{
		Balances:  balances,
		Wins:      wins,
		Inventory: inventory,
		Presenter: hub,
		Observer:  metrics,
	})
	go func() {
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Errorf("round controller stopped: %v", err)
		}
	}()

	srv := &http.Server{Addr: cfg.Addr, Handler: server.New(ctrl, hub, metrics).Router()}
	go func() {
		logger.Log.Infof("courserush listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	logger.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("http shutdown: %v", err)
	}
}

type backends struct {
	balances  store.BalanceBackend
	wins      store.WinBackend
	inventory store.InventoryBackend
	daily     store.DailyBackend
	closers   []func()
}

func (b *backends) close() {
	for _, fn := range b.closers {
		fn()
	}
}

// openBackends redis 承载金币/道具/每日奖励，postgres 承载胜场；未配置或连接失败时退回内存
func openBackends(ctx context.Context, cfg config.Config) *backends {
	mem := store.NewMemory()
	b := &backends{balances: mem, wins: mem, inventory: mem, daily: mem}

	if cfg.RedisURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		r, err := store.NewRedis(dialCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Log.Warnf("redis unavailable, using memory: %v", err)
		} else {
			b.balances, b.inventory, b.daily = r, r, r
			b.closers = append(b.closers, func() { _ = r.Close() })
			logger.Log.Infof("redis store enabled")
		}
	}
	if cfg.DatabaseURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		p, err := store.NewPostgresWins(dialCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Log.Warnf("postgres unavailable, using memory wins: %v", err)
		} else {
			b.wins = p
			b.closers = append(b.closers, p.Close)
			logger.Log.Infof("postgres win store enabled")
		}
	}
	return b
}
