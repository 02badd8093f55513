package helper

import (
	"strings"
	"testing"
)

func TestIsMoneyFormat(t *testing.T) {
	valid := []string{"1", "0.5", "10.25", "100", "0.01", "1000000", "52.00"}
	for _, s := range valid {
		if !IsMoneyFormat(s) {
			t.Fatalf("IsMoneyFormat(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "-1", "1.234", "01", ".5", "1.", "abc", "1e3", "1,000", " 1"}
	for _, s := range invalid {
		if IsMoneyFormat(s) {
			t.Fatalf("IsMoneyFormat(%q) = true, want false", s)
		}
	}
}

func TestIsEmailFormat(t *testing.T) {
	valid := []string{"a@b.co", "user.name@example.com", "x+tag@domain.io"}
	for _, s := range valid {
		if !IsEmailFormat(s) {
			t.Fatalf("IsEmailFormat(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "a", "a@", "@b.co", "a@b", "a b@c.de"}
	for _, s := range invalid {
		if IsEmailFormat(s) {
			t.Fatalf("IsEmailFormat(%q) = true, want false", s)
		}
	}
}

func TestValidateBet(t *testing.T) {
	ok, _ := ValidateBet(&BetParsed{PickNumber: 7, BetAmount: "100.50", IdempotencyKey: "k1"})
	if !ok {
		t.Fatal("valid bet rejected")
	}

	cases := []BetParsed{
		{PickNumber: 0, BetAmount: "100", IdempotencyKey: "k"},  // 号码过小
		{PickNumber: 53, BetAmount: "100", IdempotencyKey: "k"}, // 号码过大
		{PickNumber: 7, BetAmount: "", IdempotencyKey: "k"},     // 缺金额
		{PickNumber: 7, BetAmount: "1.234", IdempotencyKey: "k"},
		{PickNumber: 7, BetAmount: "-5", IdempotencyKey: "k"},
		{PickNumber: 7, BetAmount: "100", IdempotencyKey: ""}, // 缺幂等键
		{PickNumber: 7, BetAmount: "100", IdempotencyKey: strings.Repeat("x", 65)},
	}
	for i, c := range cases {
		if ok, _ := ValidateBet(&c); ok {
			t.Fatalf("case %d: invalid bet accepted: %+v", i, c)
		}
	}

	// 边界号码
	for _, pn := range []int{1, 52} {
		if ok, msg := ValidateBet(&BetParsed{PickNumber: pn, BetAmount: "1", IdempotencyKey: "k"}); !ok {
			t.Fatalf("pick %d rejected: %s", pn, msg)
		}
	}
}

func TestValidateDeposit(t *testing.T) {
	in := DepositParsed{Amount: "50", IdempotencyKey: "k1"}
	ok, _ := ValidateDeposit(&in)
	if !ok {
		t.Fatal("valid deposit rejected")
	}
	// method 缺省为 instant
	if in.Method != "instant" {
		t.Fatalf("default method = %q, want instant", in.Method)
	}

	in = DepositParsed{Amount: "50", Method: "YOCO", IdempotencyKey: "k1"}
	if ok, _ := ValidateDeposit(&in); !ok {
		t.Fatal("yoco deposit rejected")
	}
	if in.Method != "yoco" {
		t.Fatalf("method not normalized: %q", in.Method)
	}

	bad := []DepositParsed{
		{Amount: "50", Method: "paypal", IdempotencyKey: "k"},
		{Amount: "", IdempotencyKey: "k"},
		{Amount: "1.234", IdempotencyKey: "k"},
		{Amount: "50", IdempotencyKey: ""},
	}
	for i, c := range bad {
		if ok, _ := ValidateDeposit(&c); ok {
			t.Fatalf("case %d: invalid deposit accepted: %+v", i, c)
		}
	}
}

func TestValidateWithdraw(t *testing.T) {
	if ok, _ := ValidateWithdraw(&WithdrawParsed{Amount: "100", IdempotencyKey: "k"}); !ok {
		t.Fatal("valid withdraw rejected")
	}
	bad := []WithdrawParsed{
		{Amount: "", IdempotencyKey: "k"},
		{Amount: "abc", IdempotencyKey: "k"},
		{Amount: "100", IdempotencyKey: ""},
	}
	for i, c := range bad {
		if ok, _ := ValidateWithdraw(&c); ok {
			t.Fatalf("case %d: invalid withdraw accepted: %+v", i, c)
		}
	}
}

func TestValidateRegister(t *testing.T) {
	in := RegisterParsed{Email: " User@Example.COM ", Password: "secret123"}
	ok, msg := ValidateRegister(&in)
	if !ok {
		t.Fatalf("valid register rejected: %s", msg)
	}
	// 邮箱归一化为小写
	if in.Email != "user@example.com" {
		t.Fatalf("email not normalized: %q", in.Email)
	}

	bad := []RegisterParsed{
		{Email: "not-an-email", Password: "secret123"},
		{Email: "a@b.co", Password: "short"},
		{Email: "a@b.co", Password: strings.Repeat("p", 73)},
		{Email: "a@b.co", Password: "secret123", Phone: strings.Repeat("9", 33)},
	}
	for i, c := range bad {
		if ok, _ := ValidateRegister(&c); ok {
			t.Fatalf("case %d: invalid register accepted: %+v", i, c)
		}
	}
}

func TestValidateLogin(t *testing.T) {
	if ok, _ := ValidateLogin(&LoginParsed{Email: "a@b.co", Password: "x"}); !ok {
		t.Fatal("valid login rejected")
	}
	bad := []LoginParsed{
		{Email: "", Password: "x"},
		{Email: "a@b.co", Password: ""},
		{Email: "bad", Password: "x"},
	}
	for i, c := range bad {
		if ok, _ := ValidateLogin(&c); ok {
			t.Fatalf("case %d: invalid login accepted: %+v", i, c)
		}
	}
}
