package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// RoundAudit 对应 round_audit 表（期次生命周期审计）
// event_type 采用数值枚举（1=round_open 2=round_expire 3=round_resolve 4=round_settle 5=resolve_abort）
// prev_state/next_state 使用字符串快照，便于直观查询
type RoundAudit struct {
	ID        int64  `db:"id"`
	RoundID   string `db:"round_id"`
	EventType int8   `db:"event_type"`
	PrevState string `db:"prev_state"`
	NextState string `db:"next_state"`
	Operator  string `db:"operator"`
	Source    string `db:"source"`
	Payload   string `db:"payload"`
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
}

// 审计事件枚举
const (
	AuditRoundOpen    int8 = 1
	AuditRoundExpire  int8 = 2
	AuditRoundResolve int8 = 3
	AuditRoundSettle  int8 = 4
	AuditResolveAbort int8 = 5
)

// Insert
func (e *RoundAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO round_audit (round_id, event_type, prev_state, next_state, operator, source, payload, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{e.RoundID, e.EventType, e.PrevState, e.NextState, e.Operator, e.Source, e.Payload, e.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}
