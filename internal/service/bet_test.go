package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateBillNo(t *testing.T) {
	billNo := generateBillNo(100156789)

	// BET + 14位日期时间 + 4位用户尾号 + 3位十六进制
	if !strings.HasPrefix(billNo, "BET") {
		t.Fatalf("missing prefix: %s", billNo)
	}
	if len(billNo) != 3+14+4+3 {
		t.Fatalf("len = %d, want 24: %s", len(billNo), billNo)
	}

	dateTime := billNo[3 : 3+14]
	if _, err := time.ParseInLocation("20060102150405", dateTime, time.Local); err != nil {
		t.Fatalf("datetime part invalid: %s", dateTime)
	}

	userPart := billNo[17:21]
	if userPart != "6789" {
		t.Fatalf("user suffix = %s, want 6789", userPart)
	}

	hexPart := billNo[21:]
	for _, ch := range hexPart {
		if !strings.ContainsRune("0123456789ABCDEF", ch) {
			t.Fatalf("random part not hex: %s", hexPart)
		}
	}
}

func TestGenerateBillNoShortUserID(t *testing.T) {
	billNo := generateBillNo(7)
	if billNo[17:21] != "0007" {
		t.Fatalf("user suffix = %s, want 0007", billNo[17:21])
	}
}

func TestGenerateBillNoUniqueness(t *testing.T) {
	seen := map[string]bool{}
	dup := 0
	for i := 0; i < 100; i++ {
		b := generateBillNo(42)
		if seen[b] {
			dup++
		}
		seen[b] = true
	}
	// 同秒内仅靠 3 位十六进制随机数区分，允许极少量碰撞
	if dup > 10 {
		t.Fatalf("too many duplicate bill numbers: %d", dup)
	}
}

func TestNewRoundID(t *testing.T) {
	id := NewRoundID()
	if len(id) != 13 {
		t.Fatalf("round id len = %d, want 13 (ms timestamp): %s", len(id), id)
	}
	for _, ch := range id {
		if ch < '0' || ch > '9' {
			t.Fatalf("round id not numeric: %s", id)
		}
	}
}

// 入参校验在触达 Redis / MySQL 之前完成，可直接走 PlaceBet 验证
func TestPlaceBetRejectsInvalidInput(t *testing.T) {
	svc := NewBetService()

	t.Run("pick number out of range", func(t *testing.T) {
		for _, n := range []int{0, -1, 53, 100} {
			_, err := svc.PlaceBet(context.Background(), BetInput{
				UserID: 1, PickNumber: n, BetAmount: "10",
			})
			if !errors.Is(err, ErrInvalidPickNumber) {
				t.Fatalf("pick=%d: err = %v, want ErrInvalidPickNumber", n, err)
			}
		}
	})

	cases := []struct {
		name    string
		amount  string
		wantSub string
	}{
		{"non-numeric amount", "abc", "invalid bet amount format"},
		{"zero amount", "0", "must be positive"},
		{"negative amount", "-5", "must be positive"},
		{"three decimal places", "10.123", "two decimal places"},
		{"below minimum", "0.5", "below minimum"},
		{"above maximum", "100000.01", "exceeds maximum"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.PlaceBet(context.Background(), BetInput{
				UserID: 1, PickNumber: 7, BetAmount: c.amount,
			})
			if err == nil {
				t.Fatalf("amount=%q: expected error", c.amount)
			}
			if !strings.Contains(err.Error(), c.wantSub) {
				t.Fatalf("amount=%q: err = %v, want containing %q", c.amount, err, c.wantSub)
			}
		})
	}
}

func TestDemandParamsDefaults(t *testing.T) {
	perUnit, floor := demandParams()
	if perUnit <= 0 || floor <= 0 {
		t.Fatalf("invalid defaults: perUnit=%v floor=%v", perUnit, floor)
	}
}
