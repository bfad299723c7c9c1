// Package backoff computes the delay schedule between retry attempts.
package backoff

import (
	"math/rand"
	"time"
)

// maxExponent bounds the multiplier power so the float product cannot overflow.
const maxExponent = 30

// Strategy returns the delay before retry number attempt+1.
type Strategy interface {
	Delay(attempt int, s Schedule) time.Duration
}

// Schedule holds the parameters shared by every strategy.
type Schedule struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter adds up to Jitter*delay of random spread, clamped to [0,1].
	Jitter float64
	// Rand returns a value in [0,1). Nil uses math/rand.
	Rand func() float64
}

func (s Schedule) random() float64 {
	if s.Rand != nil {
		return s.Rand()
	}
	return rand.Float64()
}

// Exponential doubles (or multiplies) the delay every attempt up to Max.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, s Schedule) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxExponent {
		attempt = maxExponent
	}

	delay := time.Duration(float64(s.Initial) * Pow(s.Multiplier, attempt))
	if delay < 0 || delay > s.Max {
		delay = s.Max
	}

	jitter := ClampJitter(s.Jitter)
	if jitter > 0 {
		delay += time.Duration(float64(delay) * jitter * s.random())
		if delay > s.Max {
			delay = s.Max
		}
	}
	return delay
}

// Decorrelated picks a random delay between Initial and min(Max, Initial*3^attempt).
type Decorrelated struct{}

// Delay implements Strategy.
func (Decorrelated) Delay(attempt int, s Schedule) time.Duration {
	if attempt <= 0 {
		return s.Initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(s.Initial)
	upper := base * Pow(3.0, attempt)
	if upper > float64(s.Max) || upper < 0 {
		upper = float64(s.Max)
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + s.random()*(upper-base))
	if delay < 0 || delay > s.Max {
		delay = s.Max
	}
	return delay
}

// Calculator binds a Strategy to a Schedule.
type Calculator struct {
	strategy Strategy
	schedule Schedule
}

// NewCalculator returns a calculator; a nil strategy means Exponential.
func NewCalculator(strategy Strategy, schedule Schedule) *Calculator {
	if strategy == nil {
		strategy = Exponential{}
	}
	return &Calculator{strategy: strategy, schedule: schedule}
}

// Delay returns the wait before the retry following attempt (0-based).
func (c *Calculator) Delay(attempt int) time.Duration {
	return c.strategy.Delay(attempt, c.schedule)
}

// Schedule returns the configured parameters.
func (c *Calculator) Schedule() Schedule {
	return c.schedule
}

// ClampJitter limits jitter to [0,1].
func ClampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow calculates base^exponent for a non-negative integer exponent.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
