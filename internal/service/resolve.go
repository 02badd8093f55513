package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/LeonMotaung/f2gbetting/common"
	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/config"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	infrds "github.com/LeonMotaung/f2gbetting/internal/infra/redis"
	"github.com/LeonMotaung/f2gbetting/internal/metrics"
	"github.com/LeonMotaung/f2gbetting/internal/model"
	"github.com/LeonMotaung/f2gbetting/internal/odds"
	"github.com/LeonMotaung/f2gbetting/internal/oracle"
	"github.com/LeonMotaung/f2gbetting/internal/state"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// ResolveInput 开奖结算入参
type ResolveInput struct {
	RoundID  string
	Operator string // scheduler / admin
	TraceID  string
}

// ResolveService 负责单期开奖与结算（幂等，按 round_id）
// 1) active -> resolving（短事务，释放投注锁后再等账本）
// 2) 等待下一个 Stellar 账本关闭，哈希导出开奖号码
// 3) 结算事务：结算日志(唯一索引) -> 写开奖结果 -> 派彩 -> 赔率递推 -> 开下一期
// 4) 随机源超时则回到 active，调度器下个周期重试
type ResolveService interface {
	ResolveRound(ctx context.Context, in ResolveInput) error
}

type resolveService struct {
	oracle *oracle.Client
}

// NewResolveService 由配置构造 Horizon 客户端
func NewResolveService() ResolveService {
	cfg := config.Get()

	horizonURL := "https://horizon.stellar.org"
	requestTimeout := chelper.FastTimeout
	pollInterval := time.Second
	maxAttempts := 20

	if cfg != nil {
		if cfg.Oracle.HorizonURL != "" {
			horizonURL = cfg.Oracle.HorizonURL
		}
		if cfg.Oracle.RequestTimeoutMs > 0 {
			requestTimeout = time.Duration(cfg.Oracle.RequestTimeoutMs) * time.Millisecond
		}
		if cfg.Oracle.PollIntervalMs > 0 {
			pollInterval = time.Duration(cfg.Oracle.PollIntervalMs) * time.Millisecond
		}
		if cfg.Oracle.MaxAttempts > 0 {
			maxAttempts = cfg.Oracle.MaxAttempts
		}
	}

	return &resolveService{
		oracle: oracle.NewClient(horizonURL, requestTimeout, pollInterval, maxAttempts),
	}
}

var (
	ErrRoundNotFound       = errors.New("round not found")
	ErrInvalidStateResolve = errors.New("resolve not allowed in current state")
)

// roundResultTTL 开奖结果 Redis 缓存 TTL
const roundResultTTL = 10 * time.Minute

// ResolveRound 执行单期开奖结算
func (s *resolveService) ResolveRound(ctx context.Context, in ResolveInput) error {
	start := time.Now()
	resultLabel := "fail"
	defer func() { metrics.RecordResolution(resultLabel, start) }()

	fmt.Printf("[Resolve] 收到开奖请求: round_id=%s, operator=%s, trace_id=%s\n",
		in.RoundID, in.Operator, in.TraceID)

	// ========== 第一阶段：active -> resolving（短事务） ==========
	// 先释放投注路径上的行锁，再进行耗时的账本等待
	alreadySettled, err := s.markResolving(ctx, in)
	if err != nil {
		return err
	}
	if alreadySettled {
		resultLabel = "skipped"
		fmt.Printf("[Resolve] 该期次已结算，跳过: round_id=%s, trace_id=%s\n", in.RoundID, in.TraceID)
		return nil
	}

	// ========== 第二阶段：等待下一个账本关闭 ==========
	// 以“当前最新账本之后的下一个账本”为随机源：该账本在投注截止之后关闭，
	// 哈希对任何一方均不可预测，事后可在 Horizon 公开复验
	ledger, err := s.oracle.AwaitNextLedger(ctx)
	if err != nil {
		// 随机源不可用：回到 active，调度器下个周期重试
		s.abortResolve(ctx, in, err)
		if errors.Is(err, oracle.ErrLedgerTimeout) {
			fmt.Printf("[Resolve] 等待账本超时，本次开奖中止: round_id=%s, trace_id=%s\n",
				in.RoundID, in.TraceID)
		}
		return err
	}

	winningNumber, err := oracle.WinningNumber(ledger.Hash)
	if err != nil {
		s.abortResolve(ctx, in, err)
		return err
	}

	fmt.Printf("[Resolve] 开奖号码确定: round_id=%s, winning_number=%d, ledger_seq=%d, ledger_hash=%s, trace_id=%s\n",
		in.RoundID, winningNumber, ledger.Sequence, ledger.Hash, in.TraceID)

	// ========== 第三阶段：结算事务 ==========
	totalPayout, totalWinners, err := s.settle(ctx, in, winningNumber, ledger)
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			resultLabel = "skipped"
			return nil
		}
		return err
	}

	// 结算后缓存开奖结果，失效期次信息与赔率快照
	if r := infrds.Client(); r != nil {
		val := map[string]any{
			"round_id":       in.RoundID,
			"winning_number": winningNumber,
			"ledger_seq":     ledger.Sequence,
			"ledger_hash":    ledger.Hash,
			"total_winners":  totalWinners,
			"total_payout":   totalPayout,
			"is_settled":     1,
		}
		if b, e := json.Marshal(val); e == nil {
			_ = r.Set(ctx, infrds.RoundResultKey(in.RoundID), b, roundResultTTL).Err()
		}
		_ = r.Del(ctx, infrds.RoundInfoKey(in.RoundID)).Err()
		_ = r.Del(ctx, infrds.KeyOddsSnapshot).Err()
	}

	resultLabel = "success"
	metrics.RecordDrawOutcome(winningNumber, totalPayout)
	fmt.Printf("[Resolve] 开奖结算完成: round_id=%s, winning_number=%d, total_winners=%d, total_payout=%.2f, trace_id=%s\n",
		in.RoundID, winningNumber, totalWinners, totalPayout, in.TraceID)
	return nil
}

// markResolving 将期次从 active 置为 resolving
// 返回 (alreadySettled, error)
func (s *resolveService) markResolving(ctx context.Context, in ResolveInput) (bool, error) {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	statusCode, isSettled, err := model.GetSettlementStatusForUpdate(ctx, tx, in.RoundID)
	if err != nil {
		if chelper.IsNoRows(err) {
			return false, ErrRoundNotFound
		}
		return false, err
	}

	if isSettled == 1 || statusCode == model.RoundStatusCompleted {
		return true, nil
	}

	// 已是 resolving：上一轮开奖中止后的重试，直接继续
	if statusCode == model.RoundStatusResolving {
		return false, tx.Commit()
	}

	// 状态机：active --round_expire--> resolving
	if _, err := state.NextState(codeToState(statusCode), state.EvtExpire); err != nil {
		return false, ErrInvalidStateResolve
	}

	if err := model.UpdateRoundState(ctx, tx, in.RoundID, model.RoundStatusResolving); err != nil {
		return false, err
	}

	aud := &model.RoundAudit{
		RoundID:   in.RoundID,
		EventType: model.AuditRoundExpire,
		PrevState: state.StateActive,
		NextState: state.StateResolving,
		Operator:  in.Operator,
		Source:    "scheduler",
		TraceID:   in.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return false, err
	}

	return false, tx.Commit()
}

// abortResolve 随机源失败时回到 active 等待重试（尽力而为，失败仅记录）
// 回退带状态条件（仅 resolving -> active）：并发结算方可能已将本期置为
// completed，此时不得回退，否则会出现已结算却仍 active 的期次
func (s *resolveService) abortResolve(ctx context.Context, in ResolveInput, cause error) {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		fmt.Printf("[Resolve] 回滚状态失败（开启事务）: round_id=%s, error=%v\n", in.RoundID, err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	reopened, err := model.ReopenResolvingRound(ctx, tx, in.RoundID)
	if err != nil {
		fmt.Printf("[Resolve] 回滚状态失败: round_id=%s, error=%v\n", in.RoundID, err)
		return
	}
	if !reopened {
		fmt.Printf("[Resolve] 期次已不在 resolving 状态，跳过回退: round_id=%s, trace_id=%s\n",
			in.RoundID, in.TraceID)
		return
	}

	aud := &model.RoundAudit{
		RoundID:   in.RoundID,
		EventType: model.AuditResolveAbort,
		PrevState: state.StateResolving,
		NextState: state.StateActive,
		Operator:  in.Operator,
		Source:    "scheduler",
		Payload:   fmt.Sprintf(`{"cause":%q}`, cause.Error()),
		TraceID:   in.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		fmt.Printf("[Resolve] 写入中止审计失败: round_id=%s, error=%v\n", in.RoundID, err)
		return
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Resolve] 提交中止事务失败: round_id=%s, error=%v\n", in.RoundID, err)
	}
}

// errAlreadySettled 结算事务内发现重复结算（结算日志唯一索引兜底）
var errAlreadySettled = errors.New("round already settled")

// settle 结算事务：派彩 + 赔率递推 + 开下一期
func (s *resolveService) settle(ctx context.Context, in ResolveInput, winningNumber int, ledger *oracle.Ledger) (float64, int, error) {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	// ========== 幂等性保护 #1: 检查结算状态 ==========
	_, isSettled, err := model.GetSettlementStatusForUpdate(ctx, tx, in.RoundID)
	if err != nil {
		if chelper.IsNoRows(err) {
			return 0, 0, ErrRoundNotFound
		}
		return 0, 0, err
	}
	if isSettled == 1 {
		return 0, 0, errAlreadySettled
	}

	// ========== 幂等性保护 #2: 创建结算日志 ==========
	// 利用 round_id 唯一索引防止重复结算（双重保护）
	resLog := &model.ResolutionLog{
		RoundID:       in.RoundID,
		WinningNumber: winningNumber,
		LedgerSeq:     ledger.Sequence,
		LedgerHash:    ledger.Hash,
		Operator:      in.Operator,
		TraceID:       in.TraceID,
	}
	if err := model.CreateResolutionLog(ctx, tx, resLog); err != nil {
		if model.IsDuplicateKeyError(err) {
			fmt.Printf("[Resolve] 结算日志已存在，跳过重复结算: round_id=%s, trace_id=%s\n",
				in.RoundID, in.TraceID)
			return 0, 0, errAlreadySettled
		}
		return 0, 0, err
	}

	// ========== 幂等性保护 #3: 写开奖结果并标记已结算 ==========
	if err := model.CompleteRound(ctx, tx, in.RoundID, winningNumber, ledger.Sequence, ledger.Hash); err != nil {
		return 0, 0, err
	}

	// 派彩赔率取开奖时刻中奖号码的当前赔率（赔率递推执行之前的值）
	// 注单上记录的下单报价仅作展示，不参与派彩计算
	winStat, err := model.GetNumberStatForUpdate(ctx, tx, winningNumber)
	if err != nil {
		return 0, 0, err
	}
	payMult := winStat.PayoutMultiplier

	// 查询中奖注单并加锁（按 round_id + pick_number 索引列，不解析描述文本）
	winners, err := model.ListWinningBetsForUpdate(ctx, tx, in.RoundID, winningNumber)
	if err != nil {
		return 0, 0, err
	}

	fmt.Printf("[Resolve] 找到 %d 笔中奖注单: round_id=%s, winning_number=%d, trace_id=%s\n",
		len(winners), in.RoundID, winningNumber, in.TraceID)

	// 按用户分组，批量处理余额更新（避免同一用户多次锁定）
	type userPayout struct {
		userID int64
		bets   []model.Transaction
	}
	userMap := make(map[int64]*userPayout)
	userOrder := make([]int64, 0, len(winners))
	for i := range winners {
		w := winners[i]
		if _, exists := userMap[w.UserID]; !exists {
			userMap[w.UserID] = &userPayout{userID: w.UserID}
			userOrder = append(userOrder, w.UserID)
		}
		userMap[w.UserID].bets = append(userMap[w.UserID].bets, w)
	}
	// 固定用户加锁顺序，避免与并发结算路径互相死锁
	sort.Slice(userOrder, func(i, j int) bool { return userOrder[i] < userOrder[j] })

	totalPayoutDec := decimal.Zero
	for _, uid := range userOrder {
		up := userMap[uid]

		// 锁定用户
		account, err := model.GetAccountForUpdate(ctx, tx, up.userID)
		if err != nil {
			return 0, 0, err
		}

		// 使用 decimal 进行精确计算：派彩 = 本金 × 开奖时赔率
		currentDec := decimal.NewFromFloat(account.Balance)
		userPayoutDec := decimal.Zero
		for _, bet := range up.bets {
			payoutDec := payoutForBet(bet.Amount, payMult)

			beforeDec := currentDec
			currentDec = currentDec.Add(payoutDec).Round(2)
			userPayoutDec = userPayoutDec.Add(payoutDec)

			winTx := &model.Transaction{
				UserID:       bet.UserID,
				TxType:       model.TxTypeWin,
				Amount:       payoutDec.InexactFloat64(),
				BeforeAmount: beforeDec.InexactFloat64(),
				AfterAmount:  currentDec.InexactFloat64(),
				Status:       model.TxStatusCompleted,
				Description:  fmt.Sprintf("win payout for number %d", winningNumber),
				RoundID:      in.RoundID,
				PickNumber:   winningNumber,
				PayoutMult:   payMult,
				BillNo:       bet.BillNo,
				TraceID:      in.TraceID,
			}
			if err := winTx.Insert(ctx, tx); err != nil {
				return 0, 0, err
			}
		}

		// 余额回写并累计中奖笔数/金额
		if err := model.ApplyWinToAccount(ctx, tx, up.userID,
			currentDec.InexactFloat64(), len(up.bets), userPayoutDec.Round(2).InexactFloat64()); err != nil {
			return 0, 0, err
		}

		totalPayoutDec = totalPayoutDec.Add(userPayoutDec)
	}

	totalPayout := totalPayoutDec.Round(2).InexactFloat64()

	// 回填结算日志统计
	if err := model.UpdateResolutionTotals(ctx, tx, in.RoundID, len(winners), totalPayout); err != nil {
		return 0, 0, err
	}

	// ========== 赔率反馈控制环：对 52 个号码执行一次递推 ==========
	if err := s.applyOddsRecurrence(ctx, tx, winningNumber); err != nil {
		return 0, 0, err
	}

	// 开启下一期（今天 17:00 已过，截止为明天 17:00）
	// 崩溃恢复续作时调度器可能已兜底开出新一期，此时沿用现有 active 期次，不再重复开期
	now := time.Now()
	nextRoundID := ""
	nextEndMs := int64(0)
	openedNext := false
	if existing, err := model.GetActiveRoundForUpdate(ctx, tx); err == nil {
		nextRoundID = existing.RoundID
		nextEndMs = existing.EndTime
	} else if !chelper.IsNoRows(err) {
		return 0, 0, err
	} else {
		openedNext = true
		nextRoundID = NewRoundID()
		nextEndMs = common.NextDrawTime(now, deadlineHour()).UnixMilli()
		if err := model.InsertRound(ctx, tx, nextRoundID, now.UnixMilli(), nextEndMs, in.TraceID); err != nil {
			return 0, 0, err
		}
	}

	// Outbox 消息（事务内写入，确保与数据库状态一致）
	if err := model.CreateOutbox(ctx, tx, "round_resolved", in.RoundID, map[string]any{
		"event":          "round_resolved",
		"round_id":       in.RoundID,
		"winning_number": winningNumber,
		"ledger_seq":     ledger.Sequence,
		"ledger_hash":    ledger.Hash,
		"total_winners":  len(winners),
		"total_payout":   totalPayout,
		"next_round_id":  nextRoundID,
		"trace_id":       in.TraceID,
	}); err != nil {
		return 0, 0, err
	}

	// 审计：结算完成 + 下一期开启
	settleAud := &model.RoundAudit{
		RoundID:   in.RoundID,
		EventType: model.AuditRoundSettle,
		PrevState: state.StateResolving,
		NextState: state.StateCompleted,
		Operator:  in.Operator,
		Source:    "scheduler",
		Payload: toJSON(map[string]any{
			"winning_number": winningNumber,
			"ledger_seq":     ledger.Sequence,
			"ledger_hash":    ledger.Hash,
			"total_winners":  len(winners),
			"total_payout":   totalPayout,
		}),
		TraceID: in.TraceID,
	}
	if err := settleAud.Insert(ctx, tx); err != nil {
		return 0, 0, err
	}
	if openedNext {
		openAud := &model.RoundAudit{
			RoundID:   nextRoundID,
			EventType: model.AuditRoundOpen,
			NextState: state.StateActive,
			Operator:  "system",
			Source:    "scheduler",
			Payload:   fmt.Sprintf(`{"end_time":%d}`, nextEndMs),
			TraceID:   in.TraceID,
		}
		if err := openAud.Insert(ctx, tx); err != nil {
			return 0, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Resolve] 提交结算事务失败: round_id=%s, error=%v, trace_id=%s\n",
			in.RoundID, err, in.TraceID)
		return 0, 0, err
	}

	if openedNext {
		fmt.Printf("[Resolve] 下一期已开启: round_id=%s, end_time=%d, trace_id=%s\n",
			nextRoundID, nextEndMs, in.TraceID)
	} else {
		fmt.Printf("[Resolve] 沿用现有 active 期次: round_id=%s, end_time=%d, trace_id=%s\n",
			nextRoundID, nextEndMs, in.TraceID)
	}

	return totalPayout, len(winners), nil
}

// applyOddsRecurrence 在结算事务内对全部号码执行一次 ESI 递推并回写
func (s *resolveService) applyOddsRecurrence(ctx context.Context, tx *sqlx.Tx, winningNumber int) error {
	stats, err := model.ListNumberStatsForUpdate(ctx, tx)
	if err != nil {
		return err
	}

	in := make([]odds.Stat, len(stats))
	for i, st := range stats {
		in[i] = odds.Stat{Number: st.Number, Esi: st.Esi, Multiplier: st.PayoutMultiplier}
	}

	p := oddsParams()
	out := odds.Resolve(in, winningNumber, p, func() float64 {
		return chelper.SymmetricNoise(p.NoiseAmp)
	})

	nowMs := time.Now().UnixMilli()
	for _, st := range out {
		wonAt := int64(0)
		if st.Number == winningNumber {
			wonAt = nowMs
		}
		if err := model.UpdateNumberStat(ctx, tx, st.Number, st.Esi, st.Multiplier, wonAt); err != nil {
			return err
		}
	}
	return nil
}

// oddsParams 从配置读取控制环参数（缺省走默认值）
func oddsParams() odds.Params {
	p := odds.DefaultParams()
	cfg := config.Get()
	if cfg == nil {
		return p
	}
	o := cfg.Odds
	if o.Gamma > 0 {
		p.Gamma = o.Gamma
	}
	if o.TargetPayout > 0 {
		p.TargetPayout = o.TargetPayout
	}
	if o.WinBoost > 0 {
		p.WinBoost = o.WinBoost
	}
	if o.WinShock > 0 {
		p.WinShock = o.WinShock
	}
	if o.EsiDecay > 0 {
		p.EsiDecay = o.EsiDecay
	}
	if o.EsiMin > 0 {
		p.EsiMin = o.EsiMin
	}
	if o.EsiMax > 0 {
		p.EsiMax = o.EsiMax
	}
	if o.MultFloor > 0 {
		p.MultFloor = o.MultFloor
	}
	if o.MultCeil > 0 {
		p.MultCeil = o.MultCeil
	}
	if o.NoiseAmp > 0 {
		p.NoiseAmp = o.NoiseAmp
	}
	return p
}

// payoutForBet 单笔派彩金额：本金 × 开奖时赔率，两位小数
func payoutForBet(amount, resolutionMult float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(resolutionMult)).Round(2)
}

func toJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
