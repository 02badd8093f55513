package service

import (
	"context"
	"fmt"
	"strings"

	chelper "github.com/LeonMotaung/f2gbetting/common/helper"
	"github.com/LeonMotaung/f2gbetting/internal/auth"
	infmysql "github.com/LeonMotaung/f2gbetting/internal/infra/mysql"
	"github.com/LeonMotaung/f2gbetting/internal/model"

	decimal "github.com/shopspring/decimal"
)

// 用户账户业务：注册 / 登录

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	TraceID   string
}

type LoginInput struct {
	Email    string
	Password string
	TraceID  string
}

type AuthOutput struct {
	UserID       int64  `json:"user_id"`
	Email        string `json:"email"`
	IsAdmin      bool   `json:"is_admin"`
	Balance      string `json:"balance"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthOutput, error)
	Login(ctx context.Context, in LoginInput) (*AuthOutput, error)
}

type userService struct{}

func NewUserService() UserService { return &userService{} }

// Register 注册新账户（邮箱唯一）
func (s *userService) Register(ctx context.Context, in RegisterInput) (*AuthOutput, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	hash, err := chelper.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
	}
	if err := account.Insert(ctx, infmysql.SQLX()); err != nil {
		if model.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("email already registered")
		}
		return nil, err
	}

	fmt.Printf("[User] 注册成功: user_id=%d, email=%s, trace_id=%s\n",
		account.UserID, email, in.TraceID)

	return s.issueTokens(account)
}

// Login 邮箱密码登录
func (s *userService) Login(ctx context.Context, in LoginInput) (*AuthOutput, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	account, err := model.GetAccountByEmail(ctx, infmysql.SQLX(), email)
	if err != nil {
		if chelper.IsNoRows(err) {
			// 不区分“账户不存在”与“密码错误”，避免探测
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}

	if !chelper.CheckPassword(in.Password, account.PasswordHash) {
		return nil, auth.ErrInvalidCredentials
	}

	if account.Status != 1 {
		return nil, auth.ErrAccountDisabled
	}

	fmt.Printf("[User] 登录成功: user_id=%d, email=%s, trace_id=%s\n",
		account.UserID, email, in.TraceID)

	return s.issueTokens(account)
}

func (s *userService) issueTokens(account *model.Account) (*AuthOutput, error) {
	isAdmin := account.IsAdmin == 1

	access, err := auth.GenerateAccessToken(account.UserID, account.Email, isAdmin)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.GenerateRefreshToken(account.UserID, account.Email, isAdmin)
	if err != nil {
		return nil, err
	}

	return &AuthOutput{
		UserID:       account.UserID,
		Email:        account.Email,
		IsAdmin:      isAdmin,
		Balance:      chelper.TrimDecimal(decimal.NewFromFloat(account.Balance)),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
