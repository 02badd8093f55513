package state

import "fmt"

// State 期次状态
const (
	StateActive    = "active"    // 投注中（未到开奖截止时间）
	StateResolving = "resolving" // 截止后开奖结算中
	StateCompleted = "completed" // 已开奖结算完成
)

// Event 期次事件
const (
	EvtExpire = "round_expire"  // 到达截止时间，进入开奖
	EvtSettle = "draw_settle"   // 开奖结算完成
	EvtReopen = "resolve_abort" // 开奖失败（如随机源超时），回到投注中等待重试
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateActive:
		if evt == EvtExpire {
			return StateResolving, nil
		}
	case StateResolving:
		if evt == EvtSettle {
			return StateCompleted, nil
		}
		if evt == EvtReopen {
			return StateActive, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}
