package odds

// 赔率反馈控制环（ESI: 每个号码的稳定指数，控制其赔率向基准回归的速率）
// 每次开奖对 52 个号码执行一次递推：
//   中奖号:   esi = min(esi + WinBoost, EsiMax)；赔率先受冲击 mult = max(mult - WinShock, MultFloor)
//   未中奖号: esi = max(esi - EsiDecay, EsiMin)
//   全部号码: delta = Gamma * (1 - 1/esi) * (TargetPayout - mult)
//             mult = clamp(mult + delta + noise, MultFloor, MultCeil)
// ESI 越高（刚中过奖），赔率向目标值回归越快；ESI 趋近 1 时回归几乎停滞。

// Params 控制环参数（由配置层注入，零值经 config.ApplyDefaults 填充）
type Params struct {
	Gamma        float64 // 回归速率
	TargetPayout float64 // 回归目标赔率
	WinBoost     float64 // 中奖号 ESI 提升
	WinShock     float64 // 中奖号赔率下调
	EsiDecay     float64 // 未中奖 ESI 衰减
	EsiMin       float64
	EsiMax       float64
	MultFloor    float64 // 赔率下限
	MultCeil     float64 // 赔率上限
	NoiseAmp     float64 // 扰动幅度
}

// DefaultParams 返回控制环默认参数
func DefaultParams() Params {
	return Params{
		Gamma:        0.8,
		TargetPayout: 28,
		WinBoost:     1.5,
		WinShock:     5,
		EsiDecay:     0.1,
		EsiMin:       1,
		EsiMax:       15,
		MultFloor:    10,
		MultCeil:     35,
		NoiseAmp:     0.1,
	}
}

// Stat 单个号码的控制环状态
type Stat struct {
	Number     int
	Esi        float64
	Multiplier float64
}

// Clamp 将 v 收敛到 [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Resolve 对全部号码执行一次开奖递推并返回新状态
// noise 为扰动采样函数（返回 [-NoiseAmp, +NoiseAmp]）；传 nil 则不加扰动
// 输入切片不被修改
func Resolve(stats []Stat, winningNumber int, p Params, noise func() float64) []Stat {
	out := make([]Stat, len(stats))
	for i, s := range stats {
		esi := s.Esi
		mult := s.Multiplier

		if s.Number == winningNumber {
			// 中奖：ESI 激励 + 赔率冲击
			esi = esi + p.WinBoost
			if esi > p.EsiMax {
				esi = p.EsiMax
			}
			mult = mult - p.WinShock
			if mult < p.MultFloor {
				mult = p.MultFloor
			}
		} else {
			// 未中奖：ESI 衰减
			esi = esi - p.EsiDecay
			if esi < p.EsiMin {
				esi = p.EsiMin
			}
		}

		// 向目标赔率回归，ESI 控制回归速率
		delta := p.Gamma * (1 - 1/esi) * (p.TargetPayout - mult)
		mult += delta
		if noise != nil {
			mult += noise()
		}
		mult = Clamp(mult, p.MultFloor, p.MultCeil)

		out[i] = Stat{Number: s.Number, Esi: esi, Multiplier: mult}
	}
	return out
}

// BetPressure 投注需求压降：赔率按投注金额线性下调，钳制在下限之上
func BetPressure(mult, amount, perUnit, floor float64) float64 {
	m := mult - amount*perUnit
	if m < floor {
		m = floor
	}
	return m
}
