package middleware

import (
	"time"

	"github.com/LeonMotaung/f2gbetting/common/logger"
	"github.com/LeonMotaung/f2gbetting/internal/auth"
	"github.com/LeonMotaung/f2gbetting/internal/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/common/response"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// UserAuthFilter 用户认证过滤器（JWT Token）
// 验证用户的 JWT Token，提取用户信息
func UserAuthFilter(ctx *beegocontext.Context) {
	traceID := helper.GetTraceID(ctx)

	// 辅助函数：返回错误
	returnError := func(httpCode int, bizCode int, message string) {
		ctx.Output.SetStatus(httpCode)
		ctx.Output.JSON(response.APIResponse{
			Code:      bizCode,
			Message:   message,
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	// 1. 验证 JWT Token
	claims, err := auth.VerifyJWTToken(ctx)
	if err != nil {
		logger.Warn("user authentication failed",
			zap.String("trace_id", traceID),
			zap.Error(err))

		// 根据错误类型返回不同的错误码
		switch err {
		case auth.ErrMissingToken:
			returnError(401, response.CodeUnauthorized, "缺少认证Token")
		case auth.ErrInvalidTokenFormat:
			returnError(401, response.CodeInvalidToken, "Token格式无效")
		case auth.ErrInvalidToken:
			returnError(401, response.CodeInvalidToken, "Token无效")
		case auth.ErrTokenExpired:
			returnError(401, response.CodeTokenExpired, "Token已过期")
		case auth.ErrTokenRevoked:
			returnError(401, response.CodeTokenRevoked, "Token已撤销")
		default:
			returnError(401, response.CodeUnauthorized, "认证失败")
		}
		return
	}

	// 2. 将用户信息存入 context
	ctx.Input.SetData("user_id", claims.UserID)
	ctx.Input.SetData("email", claims.Email)
	ctx.Input.SetData("is_admin_user", claims.IsAdmin)
	ctx.Input.SetData("jwt_claims", claims)

	logger.Debug("user authentication successful",
		zap.String("trace_id", traceID),
		zap.Int64("user_id", claims.UserID),
		zap.String("email", claims.Email))
}
