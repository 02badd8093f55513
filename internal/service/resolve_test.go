package service

import "testing"

func TestPayoutForBet(t *testing.T) {
	cases := []struct {
		amount float64
		mult   float64
		want   string
	}{
		{100, 25.4, "2540"},
		{1, 28, "28"},
		{33.33, 27.77, "925.57"}, // 925.57410 -> 两位小数
		{0.01, 10, "0.1"},
	}
	for _, c := range cases {
		got := payoutForBet(c.amount, c.mult)
		if got.String() != c.want {
			t.Fatalf("payoutForBet(%v, %v) = %s, want %s", c.amount, c.mult, got.String(), c.want)
		}
	}
}

// 派彩以开奖时赔率为准：同一注单在不同开奖赔率下派彩不同，
// 注单上的下单报价不参与计算
func TestPayoutFollowsResolutionMultiplier(t *testing.T) {
	amount := 200.0
	atBet := 28.0
	atResolution := 23.0

	got := payoutForBet(amount, atResolution)
	if got.String() != "4600" {
		t.Fatalf("payout = %s, want 4600", got.String())
	}
	if got.Equal(payoutForBet(amount, atBet)) {
		t.Fatalf("payout should differ when resolution multiplier differs from quote")
	}
}
