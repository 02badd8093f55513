package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	"github.com/LeonMotaung/f2gbetting/common/logger"
	"github.com/LeonMotaung/f2gbetting/internal/metrics"

	"go.uber.org/zap"
)

// Stellar Horizon 账本随机源
// 开奖流程：读取最新账本序号 N，然后以固定间隔轮询序号 N+1 的账本；
// 该账本在投注截止之后才关闭，其哈希对任何一方都不可预测，可公开复验。

var (
	// ErrLedgerTimeout 等待下一账本超时（本次开奖中止，调度器下个周期重试）
	ErrLedgerTimeout = errors.New("oracle: timed out waiting for next ledger")
	// errLedgerPending 目标账本尚未关闭（Horizon 404）
	errLedgerPending = errors.New("oracle: ledger not yet closed")
)

// Ledger 账本标识
type Ledger struct {
	Sequence int64  `json:"sequence"`
	Hash     string `json:"hash"`
}

// Client Horizon REST 客户端
type Client struct {
	baseURL      string
	timeout      time.Duration
	pollInterval time.Duration
	maxAttempts  int
}

// NewClient 创建 Horizon 客户端
func NewClient(baseURL string, requestTimeout, pollInterval time.Duration, maxAttempts int) *Client {
	if requestTimeout <= 0 {
		requestTimeout = chelper.FastTimeout
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	return &Client{
		baseURL:      baseURL,
		timeout:      requestTimeout,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

// horizonLedger Horizon 账本记录（只取所需字段）
type horizonLedger struct {
	Sequence int64  `json:"sequence"`
	Hash     string `json:"hash"`
}

// LatestSequence 查询最新已关闭账本的序号
func (c *Client) LatestSequence(ctx context.Context) (int64, error) {
	uri := fmt.Sprintf("%s/ledgers?order=desc&limit=1", c.baseURL)

	body, status, err := chelper.HttpDoTimeout(nil, "GET", uri, nil, c.timeout)
	if err != nil {
		metrics.RecordOraclePoll("error")
		return 0, err
	}
	if status != 200 {
		metrics.RecordOraclePoll("error")
		return 0, fmt.Errorf("oracle: horizon latest ledgers status %d", status)
	}

	var resp struct {
		Embedded struct {
			Records []horizonLedger `json:"records"`
		} `json:"_embedded"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.RecordOraclePoll("error")
		return 0, fmt.Errorf("oracle: decode latest ledgers: %w", err)
	}
	if len(resp.Embedded.Records) == 0 {
		metrics.RecordOraclePoll("error")
		return 0, errors.New("oracle: horizon returned no ledgers")
	}

	metrics.RecordOraclePoll("hit")
	return resp.Embedded.Records[0].Sequence, nil
}

// LedgerBySequence 查询指定序号的账本；尚未关闭时返回 errLedgerPending
func (c *Client) LedgerBySequence(ctx context.Context, seq int64) (*Ledger, error) {
	uri := fmt.Sprintf("%s/ledgers/%d", c.baseURL, seq)

	body, status, err := chelper.HttpDoTimeout(nil, "GET", uri, nil, c.timeout)
	if err != nil {
		metrics.RecordOraclePoll("error")
		return nil, err
	}
	switch status {
	case 200:
	case 404:
		metrics.RecordOraclePoll("pending")
		return nil, errLedgerPending
	default:
		metrics.RecordOraclePoll("error")
		return nil, fmt.Errorf("oracle: horizon ledger %d status %d", seq, status)
	}

	var rec horizonLedger
	if err := json.Unmarshal(body, &rec); err != nil {
		metrics.RecordOraclePoll("error")
		return nil, fmt.Errorf("oracle: decode ledger %d: %w", seq, err)
	}

	metrics.RecordOraclePoll("hit")
	return &Ledger{Sequence: rec.Sequence, Hash: rec.Hash}, nil
}

// AwaitNextLedger 等待当前最新账本之后的下一个账本关闭并返回
// 轮询 pollInterval × maxAttempts 后仍未关闭则返回 ErrLedgerTimeout
func (c *Client) AwaitNextLedger(ctx context.Context) (*Ledger, error) {
	started := time.Now()

	latest, err := c.LatestSequence(ctx)
	if err != nil {
		metrics.RecordOracleAwait("error", started)
		return nil, err
	}
	target := latest + 1

	logger.InfoCtx(ctx, "oracle: waiting for next ledger",
		zap.Int64("latest_sequence", latest),
		zap.Int64("target_sequence", target))

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			metrics.RecordOracleAwait("error", started)
			return nil, ctx.Err()
		case <-ticker.C:
		}

		ledger, err := c.LedgerBySequence(ctx, target)
		if err == nil {
			metrics.RecordOracleAwait("success", started)
			metrics.SetOracleLedgerSequence(ledger.Sequence)
			logger.InfoCtx(ctx, "oracle: next ledger closed",
				zap.Int64("sequence", ledger.Sequence),
				zap.String("hash", ledger.Hash),
				zap.Int("attempts", attempt))
			return ledger, nil
		}
		if !errors.Is(err, errLedgerPending) {
			// 瞬时网络错误按 pending 处理，继续轮询
			logger.WarnCtx(ctx, "oracle: poll failed, will retry",
				zap.Int64("target_sequence", target),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
	}

	metrics.RecordOracleAwait("timeout", started)
	return nil, ErrLedgerTimeout
}

// WinningNumber 由账本哈希导出开奖号码（纯函数，可公开复验）
// 取哈希末 8 个十六进制字符解析为 uint32，对 52 取模后加 1
func WinningNumber(hash string) (int, error) {
	if len(hash) < 8 {
		return 0, fmt.Errorf("oracle: ledger hash too short: %q", hash)
	}
	tail := hash[len(hash)-8:]
	v, err := strconv.ParseUint(tail, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("oracle: ledger hash tail %q not hex: %w", tail, err)
	}
	return int(v%52) + 1, nil
}
