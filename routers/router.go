package routers

import (
	"github.com/LeonMotaung/f2gbetting/internal/config"
	"github.com/LeonMotaung/f2gbetting/internal/controller/api"
	"github.com/LeonMotaung/f2gbetting/internal/metrics"
	"github.com/LeonMotaung/f2gbetting/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register 注册HTTP路由与全局过滤器
// 必须在配置加载完成后调用（过滤器开关依赖配置）
func Register() {
	cfg := config.Get()

	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（如果启用）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)
	}

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查与指标（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")
	beego.Handler("/metrics", promhttp.Handler())

	// ========== 公开 API（无需认证） ==========

	// 注册 / 登录
	beego.Router("/api/user/register", &api.UserController{}, "post:Register")
	beego.Router("/api/user/login", &api.UserController{}, "post:Login")

	// 当前赔率与期次信息
	beego.Router("/api/odds", &api.OddsController{}, "get:GetOdds")
	beego.Router("/api/round/current", &api.RoundController{}, "get:GetCurrent")
	beego.Router("/api/round/:round_id", &api.RoundController{}, "get:GetRound")

	// 历史结果与开奖验证
	beego.Router("/api/results", &api.ResultsController{}, "get:ListResults")
	beego.Router("/api/verify/:round_id", &api.VerifyController{}, "get:Verify")

	// 支付网关回跳（由收银台重定向，携带 bill_no）
	beego.Router("/api/wallet/deposit/success", &api.WalletController{}, "get:DepositSuccess")
	beego.Router("/api/wallet/deposit/cancel", &api.WalletController{}, "get:DepositCancel")
	beego.Router("/api/wallet/deposit/failure", &api.WalletController{}, "get:DepositFailure")

	// ========== 业务 API（需要登录） ==========

	// 投注接口：JWT 认证 + 限流
	beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.UserAuthFilter)
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/bet", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/bet", &api.BetController{}, "post:Bet")

	// 用户查询接口：JWT 认证（用户只能查询自己的数据）
	beego.InsertFilter("/api/user/balance", beego.BeforeExec, middleware.UserAuthFilter)
	beego.InsertFilter("/api/user/bets", beego.BeforeExec, middleware.UserAuthFilter)
	beego.InsertFilter("/api/user/transactions", beego.BeforeExec, middleware.UserAuthFilter)
	beego.Router("/api/user/balance", &api.UserController{}, "get:Balance")
	beego.Router("/api/user/bets", &api.UserController{}, "get:Bets")
	beego.Router("/api/user/transactions", &api.UserController{}, "get:Transactions")

	// 钱包接口：JWT 认证 + 限流
	beego.InsertFilter("/api/wallet/deposit", beego.BeforeExec, middleware.UserAuthFilter)
	beego.InsertFilter("/api/wallet/withdraw", beego.BeforeExec, middleware.UserAuthFilter)
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/wallet/deposit", beego.BeforeExec, middleware.RateLimitFilter)
		beego.InsertFilter("/api/wallet/withdraw", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/wallet/deposit", &api.WalletController{}, "post:Deposit")
	beego.Router("/api/wallet/withdraw", &api.WalletController{}, "post:Withdraw")

	// ========== 管理 API（需要管理员认证） ==========

	if cfg != nil && cfg.Auth.Admin.Enabled {
		beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	}
	beego.Router("/api/admin/stats", &api.AdminController{}, "get:Stats")
	beego.Router("/api/admin/withdrawals", &api.AdminController{}, "get:PendingWithdrawals")
	beego.Router("/api/admin/rounds/:round_id/bets", &api.AdminController{}, "get:RoundBets")
	beego.Router("/api/admin/withdrawals/:id/approve", &api.AdminController{}, "post:ApproveWithdrawal")
	beego.Router("/api/admin/withdrawals/:id/cancel", &api.AdminController{}, "post:CancelWithdrawal")
	beego.Router("/api/admin/deposits/:id/approve", &api.AdminController{}, "post:ApproveDeposit")
	beego.Router("/api/admin/bets/:id/cancel", &api.AdminController{}, "post:CancelBet")
	beego.Router("/api/admin/resolve", &api.AdminController{}, "post:ResolveRound")
}
