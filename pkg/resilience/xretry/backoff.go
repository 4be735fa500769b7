package xretry

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// DefaultJitterWindow 默认抖动窗口。
// 每次延迟在封顶后叠加 [0, DefaultJitterWindow) 的均匀随机抖动。
const DefaultJitterWindow = time.Second

// Delay 计算第 attempt 次失败后的重试延迟。
//
// delay = min(BaseDelay * BackoffFactor^(attempt-1), MaxDelay) + jitter
//
// jitter 在 [0, DefaultJitterWindow) 内均匀分布。抖动叠加在封顶之后，
// 因此返回值可能超过 MaxDelay（上界为 MaxDelay + 窗口）。
// attempt 小于 1 时按 1 处理。
func Delay(attempt int, p Policy) time.Duration {
	return delayIn(attempt, p, DefaultJitterWindow)
}

// delayIn 是 Delay 的内部版本，抖动窗口由调用方指定。
// window <= 0 表示关闭抖动（确定性延迟，主要用于测试）。
func delayIn(attempt int, p Policy, window time.Duration) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	raw := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))

	// 设计决策: NaN 安全的延迟封顶。attempt 极大时 math.Pow 溢出为 +Inf，
	// 后续运算可能产生 NaN。IEEE 754 中 NaN 的所有比较均返回 false，
	// 会绕过 MaxDelay 封顶。NaN/负数按已达上限处理，返回 MaxDelay。
	var capped time.Duration
	switch {
	case math.IsNaN(raw) || raw < 0:
		capped = p.MaxDelay
	case raw >= float64(p.MaxDelay):
		capped = p.MaxDelay
	default:
		capped = time.Duration(raw)
	}

	if window <= 0 {
		return capped
	}
	return capped + time.Duration(randomFloat64()*float64(window))
}

const (
	floatBits  = 53
	floatScale = 1.0 / (1 << floatBits)
)

// randomFloat64 返回 [0, 1) 内的均匀随机数。
func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand 失败时返回 0，这意味着无抖动（安全默认值）
		return 0
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) * floatScale
}
