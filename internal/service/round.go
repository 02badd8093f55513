package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/LeonMotaung/f2gbetting/common"
	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/config"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	infrds "github.com/LeonMotaung/f2gbetting/internal/infra/redis"
	"github.com/LeonMotaung/f2gbetting/internal/model"
	"github.com/LeonMotaung/f2gbetting/internal/state"
)

// RoundService 负责期次的创建与查询
// 每天一期：截止时间为业务时区（约翰内斯堡）当天 17:00，已过则为次日 17:00
type RoundService interface {
	// GetOrCreateActiveRound 返回当前 active 期次；不存在时创建新期次（幂等，可并发调用）
	GetOrCreateActiveRound(ctx context.Context, traceID string) (*model.GameRound, error)
	// GetRoundSnapshot 查询期次信息（Redis 缓存优先，DB 回源）
	GetRoundSnapshot(ctx context.Context, roundID string) (*model.RoundSnapshot, error)
}

type roundService struct{}

func NewRoundService() RoundService { return &roundService{} }

// roundInfoTTL 期次信息缓存 TTL（前端倒计时轮询用）
const roundInfoTTL = 30 * time.Second

// NewRoundID 生成期次ID：毫秒时间戳字符串
func NewRoundID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// deadlineHour 读取配置的开奖截止小时（默认 17）
func deadlineHour() int {
	if cfg := config.Get(); cfg != nil && cfg.Draw.DeadlineHour > 0 {
		return cfg.Draw.DeadlineHour
	}
	return 17
}

// codeToState 将期次状态数值码映射为状态机字符串
func codeToState(code int8) string {
	switch code {
	case model.RoundStatusActive:
		return state.StateActive
	case model.RoundStatusResolving:
		return state.StateResolving
	case model.RoundStatusCompleted:
		return state.StateCompleted
	}
	return ""
}

// GetOrCreateActiveRound 获取或创建当前 active 期次
// 并发创建通过事务内加锁复查吸收：第二个进入者会看到第一个已提交的期次
func (s *roundService) GetOrCreateActiveRound(ctx context.Context, traceID string) (*model.GameRound, error) {
	db := infmysql.SQLX()

	// 快路径：已有 active 期次
	if r, err := model.GetActiveRound(ctx, db); err == nil {
		return r, nil
	} else if !chelper.IsNoRows(err) {
		return nil, err
	}

	// 慢路径：开启事务创建新期次
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 加锁复查，避免并发重复开期
	if r, err := model.GetActiveRoundForUpdate(ctx, tx); err == nil {
		_ = tx.Rollback()
		return r, nil
	} else if !chelper.IsNoRows(err) {
		return nil, err
	}

	now := time.Now()
	roundID := NewRoundID()
	startMs := now.UnixMilli()
	endMs := common.NextDrawTime(now, deadlineHour()).UnixMilli()

	if err := model.InsertRound(ctx, tx, roundID, startMs, endMs, traceID); err != nil {
		return nil, err
	}

	// 审计：开期
	aud := &model.RoundAudit{
		RoundID:   roundID,
		EventType: model.AuditRoundOpen,
		PrevState: "",
		NextState: state.StateActive,
		Operator:  "system",
		Source:    "scheduler",
		Payload:   fmt.Sprintf(`{"start_time":%d,"end_time":%d}`, startMs, endMs),
		TraceID:   traceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	fmt.Printf("[Round] 开启新期次: round_id=%s, end_time=%d, trace_id=%s\n", roundID, endMs, traceID)

	round := &model.GameRound{
		RoundID:   roundID,
		StartTime: startMs,
		EndTime:   endMs,
		Status:    model.RoundStatusActive,
		TraceID:   traceID,
	}
	s.cacheRoundInfo(ctx, round)

	return round, nil
}

// GetRoundSnapshot Redis 缓存优先，miss 时回源 DB 并回填
func (s *roundService) GetRoundSnapshot(ctx context.Context, roundID string) (*model.RoundSnapshot, error) {
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.RoundInfoKey(roundID)).Bytes(); len(bs) > 0 {
			var snap model.RoundSnapshot
			if json.Unmarshal(bs, &snap) == nil {
				return &snap, nil
			}
		}
	}

	snap, err := model.GetRoundSnapshot(ctx, infmysql.SQLX(), roundID)
	if err != nil {
		return nil, err
	}

	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(snap); e == nil {
			_ = r.Set(ctx, infrds.RoundInfoKey(roundID), b, roundInfoTTL).Err()
		}
	}

	return snap, nil
}

// cacheRoundInfo 将期次信息写入 Redis（降级容错）
func (s *roundService) cacheRoundInfo(ctx context.Context, round *model.GameRound) {
	r := infrds.Client()
	if r == nil {
		return
	}
	snap := model.RoundSnapshot{
		RoundID:   round.RoundID,
		StartTime: round.StartTime,
		EndTime:   round.EndTime,
		Status:    round.Status,
	}
	if b, e := json.Marshal(snap); e == nil {
		_ = r.Set(ctx, infrds.RoundInfoKey(round.RoundID), b, roundInfoTTL).Err()
	}
}
