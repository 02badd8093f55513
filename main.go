package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/LeonMotaung/f2gbetting/common"
	"github.com/LeonMotaung/f2gbetting/common/logger"
	"github.com/LeonMotaung/f2gbetting/internal/config"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	infrds "github.com/LeonMotaung/f2gbetting/internal/infra/redis"
	"github.com/LeonMotaung/f2gbetting/internal/model"
	"github.com/LeonMotaung/f2gbetting/internal/service"
	"github.com/LeonMotaung/f2gbetting/internal/worker"
	"github.com/LeonMotaung/f2gbetting/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 配置：Nacos -> etcd -> 本地文件
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Printf("[Main] 配置加载失败: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyDefaults()
	config.Set(cfg)
	config.SetCurrent(cfg)

	// 2. 日志
	logger.InitLogger()
	defer logger.Sync()
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// 3. MySQL 主库
	maxIdle := cfg.Database.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	maxOpen := cfg.Database.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	db := common.InitDB(cfg.Database.DSN, maxIdle, maxOpen)
	infmysql.UseDB(db.DB)

	// 4. Redis
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	bootTraceID := uuid.NewString()

	// 5. 号码统计初始化：52 行，初始 ESI 为下限、赔率为回归目标
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := model.EnsureNumberStats(initCtx, infmysql.SQLX(), cfg.Odds.EsiMin, cfg.Odds.TargetPayout); err != nil {
		cancel()
		logger.Fatalf("ensure number stats failed", zap.Error(err))
	}
	// 6. 保证存在可投注期次
	if _, err := service.NewRoundService().GetOrCreateActiveRound(initCtx, bootTraceID); err != nil {
		cancel()
		logger.Fatalf("ensure active round failed", zap.Error(err))
	}
	cancel()

	// 7. 后台任务：开奖调度 / Outbox 分发 / MQ 消费
	var wg sync.WaitGroup
	worker.StartDrawScheduler(ctx, &wg)
	worker.StartOutboxDispatcher(ctx, &wg)
	worker.StartInboxConsumer(ctx, &wg)

	// 8. 配置热更新
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		config.Set(newCfg)
		if newCfg.Server.LogLevel != "" && (oldCfg == nil || oldCfg.Server.LogLevel != newCfg.Server.LogLevel) {
			logger.SetLevel(newCfg.Server.LogLevel)
		}
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// 9. HTTP 服务
	routers.Register()

	beego.BConfig.AppName = "f2gbetting"
	beego.BConfig.RunMode = beego.PROD
	beego.BConfig.CopyRequestBody = true
	port := cfg.Server.Port
	if port <= 0 {
		port = 8080
	}
	beego.BConfig.Listen.HTTPPort = port
	// beego 自带优雅退出：收到信号后等待存量请求完成
	beego.BConfig.Listen.Graceful = true

	logger.Info("server starting",
		zap.Int("port", port),
		zap.String("trace_id", bootTraceID))

	go beego.Run()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining workers")

	// 等待后台任务退出（含进行中的开奖），上限 30 秒
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("workers drained, bye")
	case <-time.After(30 * time.Second):
		logger.Warn("workers drain timeout, forcing exit")
	}
}
