package odds

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func freshStats(esi, mult float64) []Stat {
	stats := make([]Stat, 52)
	for i := range stats {
		stats[i] = Stat{Number: i + 1, Esi: esi, Multiplier: mult}
	}
	return stats
}

// 中奖号递推：esi 1.0 -> 2.5，赔率 28 先冲击到 23，再回归 +2.4 = 25.4
func TestResolveWinnerRecurrence(t *testing.T) {
	p := DefaultParams()
	stats := freshStats(1.0, 28.0)

	out := Resolve(stats, 7, p, nil)

	w := out[6]
	if w.Number != 7 {
		t.Fatalf("unexpected number at index 6: %d", w.Number)
	}
	if !almostEqual(w.Esi, 2.5) {
		t.Fatalf("winner esi = %v, want 2.5", w.Esi)
	}
	// delta = 0.8 * (1 - 1/2.5) * (28 - 23) = 2.4
	if !almostEqual(w.Multiplier, 25.4) {
		t.Fatalf("winner multiplier = %v, want 25.4", w.Multiplier)
	}
}

// 未中奖号在目标赔率处静止：esi 衰减但 delta 为 0
func TestResolveLoserAtTarget(t *testing.T) {
	p := DefaultParams()
	stats := freshStats(2.0, 28.0)

	out := Resolve(stats, 1, p, nil)

	for _, s := range out[1:] {
		if !almostEqual(s.Esi, 1.9) {
			t.Fatalf("number %d esi = %v, want 1.9", s.Number, s.Esi)
		}
		if !almostEqual(s.Multiplier, 28.0) {
			t.Fatalf("number %d multiplier = %v, want 28.0", s.Number, s.Multiplier)
		}
	}
}

// esi 在下限 1 时回归系数为 0：赔率除扰动外不动
func TestResolveEsiFloorStallsReversion(t *testing.T) {
	p := DefaultParams()
	stats := freshStats(1.0, 12.0)

	out := Resolve(stats, 1, p, nil)

	// 号码 2..52 的 esi 钳制在 1，delta = gamma*(1-1/1)*(...) = 0
	for _, s := range out[1:] {
		if !almostEqual(s.Esi, 1.0) {
			t.Fatalf("number %d esi = %v, want 1.0", s.Number, s.Esi)
		}
		if !almostEqual(s.Multiplier, 12.0) {
			t.Fatalf("number %d multiplier = %v, want 12.0", s.Number, s.Multiplier)
		}
	}
}

// 不变量：任意开奖序列下赔率始终在 [10,35]，ESI 始终在 [1,15]
func TestResolveBoundsInvariant(t *testing.T) {
	p := DefaultParams()
	rng := rand.New(rand.NewSource(42))
	noise := func() float64 { return (rng.Float64()*2 - 1) * p.NoiseAmp }

	stats := freshStats(1.0, 28.0)
	for i := 0; i < 500; i++ {
		winner := rng.Intn(52) + 1
		stats = Resolve(stats, winner, p, noise)
		for _, s := range stats {
			if s.Multiplier < p.MultFloor || s.Multiplier > p.MultCeil {
				t.Fatalf("iteration %d: number %d multiplier %v out of [%v,%v]",
					i, s.Number, s.Multiplier, p.MultFloor, p.MultCeil)
			}
			if s.Esi < p.EsiMin || s.Esi > p.EsiMax {
				t.Fatalf("iteration %d: number %d esi %v out of [%v,%v]",
					i, s.Number, s.Esi, p.EsiMin, p.EsiMax)
			}
		}
	}
}

// 连续中奖的号码赔率被压向下限，ESI 被推向上限
func TestResolveRepeatedWinnerConverges(t *testing.T) {
	p := DefaultParams()
	stats := freshStats(1.0, 28.0)

	for i := 0; i < 50; i++ {
		stats = Resolve(stats, 13, p, nil)
	}

	w := stats[12]
	if !almostEqual(w.Esi, p.EsiMax) {
		t.Fatalf("repeated winner esi = %v, want %v", w.Esi, p.EsiMax)
	}
	// 稳态：mult 在冲击与回归之间震荡，但始终低于目标值
	if w.Multiplier >= p.TargetPayout {
		t.Fatalf("repeated winner multiplier = %v, want < %v", w.Multiplier, p.TargetPayout)
	}
}

func TestBetPressure(t *testing.T) {
	// 1000 金额 * 0.0005 = 0.5 压降
	if got := BetPressure(28.0, 1000, 0.0005, 10); !almostEqual(got, 27.5) {
		t.Fatalf("BetPressure(28, 1000) = %v, want 27.5", got)
	}
	// 压降不击穿下限
	if got := BetPressure(10.2, 100000, 0.0005, 10); !almostEqual(got, 10) {
		t.Fatalf("BetPressure floor clamp = %v, want 10", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(9.5, 10, 35); got != 10 {
		t.Fatalf("Clamp low = %v", got)
	}
	if got := Clamp(35.5, 10, 35); got != 35 {
		t.Fatalf("Clamp high = %v", got)
	}
	if got := Clamp(20, 10, 35); got != 20 {
		t.Fatalf("Clamp mid = %v", got)
	}
}
