package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LeonMotaung/f2gbetting/internal/config"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	infrds "github.com/LeonMotaung/f2gbetting/internal/infra/redis"
	"github.com/LeonMotaung/f2gbetting/internal/model"

	decimal "github.com/shopspring/decimal"
)

// NumberOdds 单个号码的当前赔率（对外展示，两位小数）
type NumberOdds struct {
	Number     int     `json:"number"`
	Multiplier float64 `json:"multiplier"`
}

// OddsService 赔率查询：Redis 短 TTL 快照 + DB 回源
// 投注与结算路径在改动赔率后会主动失效快照
type OddsService interface {
	GetOdds(ctx context.Context) ([]NumberOdds, error)
}

type oddsService struct{}

func NewOddsService() OddsService { return &oddsService{} }

// snapshotTTL 读取赔率快照 TTL（默认 10 秒）
func snapshotTTL() time.Duration {
	if cfg := config.Get(); cfg != nil && cfg.Odds.CacheTTLSec > 0 {
		return time.Duration(cfg.Odds.CacheTTLSec) * time.Second
	}
	return 10 * time.Second
}

// GetOdds 返回 52 个号码的当前赔率
func (s *oddsService) GetOdds(ctx context.Context) ([]NumberOdds, error) {
	// Redis 快照命中直接返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.KeyOddsSnapshot).Bytes(); len(bs) > 0 {
			var out []NumberOdds
			if json.Unmarshal(bs, &out) == nil && len(out) == model.NumberCount {
				return out, nil
			}
		}
	}

	// DB 回源
	stats, err := model.ListNumberStats(ctx, infmysql.SQLX())
	if err != nil {
		return nil, err
	}

	out := make([]NumberOdds, len(stats))
	for i, st := range stats {
		out[i] = NumberOdds{
			Number:     st.Number,
			Multiplier: decimal.NewFromFloat(st.PayoutMultiplier).Round(2).InexactFloat64(),
		}
	}

	// 回填快照（降级容错）
	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = r.Set(ctx, infrds.KeyOddsSnapshot, b, snapshotTTL()).Err()
		}
	}

	return out, nil
}
