package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	"github.com/LeonMotaung/f2gbetting/common/logger"
	"github.com/LeonMotaung/f2gbetting/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Yoco 托管收银台客户端
// 创建 checkout 后将用户重定向到 redirectUrl 完成支付，支付结果经 success/cancel/failure 回跳确认

var (
	// ErrPaymentDisabled 未配置支付网关（演示环境仅支持 instant 充值）
	ErrPaymentDisabled = errors.New("payment: yoco gateway disabled")
)

// Checkout 托管收银台会话
type Checkout struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl"`
	Status      string `json:"status"`
}

// CheckoutRequest 创建收银台会话的请求体
// 金额单位为分（cents）
type CheckoutRequest struct {
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	SuccessURL string            `json:"successUrl,omitempty"`
	CancelURL  string            `json:"cancelUrl,omitempty"`
	FailureURL string            `json:"failureUrl,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// CreateCheckout 创建 Yoco 收银台会话
// amount 为主币单位金额（如 100.50 ZAR），内部转换为分
func CreateCheckout(ctx context.Context, amount float64, billNo, traceID string) (*Checkout, error) {
	cfg := config.Get()
	if cfg == nil || !cfg.Payment.Yoco.Enabled || cfg.Payment.Yoco.SecretKey == "" {
		return nil, ErrPaymentDisabled
	}

	// 金额转分（decimal 避免浮点误差）
	cents := decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	base := cfg.Server.BaseURL
	reqBody := CheckoutRequest{
		Amount:     cents,
		Currency:   cfg.Payment.Yoco.Currency,
		SuccessURL: chelper.BuildFullURL(base, "/api/wallet/deposit/success?bill_no="+billNo),
		CancelURL:  chelper.BuildFullURL(base, "/api/wallet/deposit/cancel?bill_no="+billNo),
		FailureURL: chelper.BuildFullURL(base, "/api/wallet/deposit/failure?bill_no="+billNo),
		Metadata: map[string]string{
			"bill_no":  billNo,
			"trace_id": traceID,
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Authorization": "Bearer " + cfg.Payment.Yoco.SecretKey,
		"Content-Type":  "application/json",
	}

	body, status, err := chelper.HttpDoTimeoutForPayment(b, "POST", cfg.Payment.Yoco.CheckoutURL, headers, chelper.PaymentTimeout)
	if err != nil {
		logger.Error("yoco checkout request failed",
			zap.String("bill_no", billNo),
			zap.String("trace_id", traceID),
			zap.Error(err))
		return nil, err
	}
	if status < 200 || status >= 300 {
		logger.Error("yoco checkout rejected",
			zap.Int("status", status),
			zap.String("bill_no", billNo),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("payment: yoco checkout status %d", status)
	}

	var out Checkout
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("payment: decode yoco checkout: %w", err)
	}
	if out.ID == "" || out.RedirectURL == "" {
		return nil, errors.New("payment: yoco checkout missing id or redirect url")
	}

	logger.Info("yoco checkout created",
		zap.String("checkout_id", out.ID),
		zap.String("bill_no", billNo),
		zap.Int64("amount_cents", cents))

	return &out, nil
}
