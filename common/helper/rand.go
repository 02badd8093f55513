package helper

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
)

func GenerateRandNum(min, max int) int {
	rngMu.Lock()
	defer rngMu.Unlock()

	return min + rng.Intn(max-min)
}

// SymmetricNoise 返回 [-amplitude, +amplitude] 上的均匀随机扰动
func SymmetricNoise(amplitude float64) float64 {
	rngMu.Lock()
	defer rngMu.Unlock()

	return (rng.Float64()*2 - 1) * amplitude
}
