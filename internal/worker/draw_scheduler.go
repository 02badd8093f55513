package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeonMotaung/f2gbetting/common/logger"
	"github.com/LeonMotaung/f2gbetting/internal/config"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	"github.com/LeonMotaung/f2gbetting/internal/model"
	"github.com/LeonMotaung/f2gbetting/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartDrawScheduler 启动开奖调度器
// 周期扫描已过截止时间且未结算的期次（active 与 resolving）并触发开奖结算；
// resolving 也纳入扫描：进程在账本等待窗口内崩溃后，重启的实例据此接管卡住的期次。
// 单实例内用 in-flight 标记避免上一次开奖（含账本等待，最长约 20s）未结束时重入。
// 开奖失败（随机源超时等）不在本周期重试，等待下一次扫描。
func StartDrawScheduler(ctx context.Context, wg *sync.WaitGroup) {
	interval := 60 * time.Second
	if cfg := config.Get(); cfg != nil && cfg.Draw.SchedulerIntervalSec > 0 {
		interval = time.Duration(cfg.Draw.SchedulerIntervalSec) * time.Second
	}

	resolver := service.NewResolveService()
	rounds := service.NewRoundService()

	var inFlight atomic.Bool

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info("draw scheduler started", zap.Duration("interval", interval))

		for {
			select {
			case <-ctx.Done():
				logger.Info("draw scheduler stopped")
				return
			case <-ticker.C:
				if !inFlight.CompareAndSwap(false, true) {
					logger.Warn("draw scheduler tick skipped: resolution in flight")
					continue
				}
				runSchedulerTick(ctx, resolver, rounds)
				inFlight.Store(false)
			}
		}
	}()
}

// runSchedulerTick 单次扫描：确保存在 active 期次，并结算全部已到期期次
func runSchedulerTick(ctx context.Context, resolver service.ResolveService, rounds service.RoundService) {
	traceID := uuid.NewString()
	ctx = logger.WithTraceID(ctx, traceID)

	// 兜底开期：首次启动或上次开奖中断后无 active 期次
	if _, err := rounds.GetOrCreateActiveRound(ctx, traceID); err != nil {
		logger.WarnCtx(ctx, "scheduler: ensure active round failed", zap.Error(err))
	}

	nowMs := time.Now().UnixMilli()
	expired, err := model.ListExpiredUnsettledRounds(ctx, infmysql.SQLX(), nowMs)
	if err != nil {
		logger.WarnCtx(ctx, "scheduler: list expired rounds failed", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	logger.InfoCtx(ctx, "scheduler: expired rounds found", zap.Int("count", len(expired)))

	for _, r := range expired {
		if ctx.Err() != nil {
			return
		}
		// 列表查询与逐个处理之间期次可能已被并发结算（如管理端手动触发），再过滤一次
		if !needsResolution(r, nowMs) {
			continue
		}
		if err := resolver.ResolveRound(ctx, service.ResolveInput{
			RoundID:  r.RoundID,
			Operator: "scheduler",
			TraceID:  traceID,
		}); err != nil {
			// 失败留给下一次扫描重试（期次已被置回 active）
			logger.WarnCtx(ctx, "scheduler: resolve round failed",
				zap.String("round_id", r.RoundID),
				zap.Error(err))
		}
	}
}

// needsResolution 判断期次是否应进入开奖：已过截止、未结算，
// 状态为 active 或 resolving（后者为崩溃恢复续作）
func needsResolution(r model.GameRound, nowMs int64) bool {
	if r.IsSettled == 1 {
		return false
	}
	if r.Status != model.RoundStatusActive && r.Status != model.RoundStatusResolving {
		return false
	}
	return r.EndTime <= nowMs
}
