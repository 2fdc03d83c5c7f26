package resilience

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// JitterMode controls how jitter is applied to a computed base delay.
type JitterMode int

const (
	// JitterPartial perturbs the delay by ±factor, e.g. d ± d*factor.
	JitterPartial JitterMode = iota
	// JitterFull replaces the delay with a uniform draw from [0, d].
	JitterFull
)

// BackoffPreset names a fixed-parameter backoff configuration. Presets
// ignore the caller-supplied InitialDelay/Multiplier and use their own
// literals, matching the source calculator's preset behavior.
type BackoffPreset int

const (
	// PresetNone means no preset is applied; BackoffConfig fields are used as-is.
	PresetNone BackoffPreset = iota
	// PresetAggressive retries quickly: initial=100ms, base=1.3.
	PresetAggressive
	// PresetStandard is the default preset: initial=1s, base=2.0.
	PresetStandard
	// PresetConservative backs off slowly: initial=2s, base=3.0.
	PresetConservative
)

var presetParams = map[BackoffPreset]struct {
	initial time.Duration
	base    float64
}{
	PresetAggressive:   {100 * time.Millisecond, 1.3},
	PresetStandard:     {1 * time.Second, 2.0},
	PresetConservative: {2 * time.Second, 3.0},
}

// BackoffConfig configures a BackoffCalculator.
type BackoffConfig struct {
	// Strategy selects the delay formula.
	// Default: BackoffExponential (kept, extended set below).
	Strategy BackoffStrategy

	// Preset, if not PresetNone, overrides InitialDelay/Multiplier with
	// fixed literals for the duration of the calculator's lifetime.
	Preset BackoffPreset

	// InitialDelay is the base delay for FIXED/LINEAR/EXPONENTIAL strategies.
	// Default: 1s
	InitialDelay time.Duration

	// Multiplier is the exponential base (also used as the Fibonacci
	// strategy's step multiplier is N/A; Fibonacci ignores Multiplier).
	// Default: 2.0
	Multiplier float64

	// MaxDelay caps the final delay, including jitter.
	// Default: 30s
	MaxDelay time.Duration

	// Jitter enables jitter. Default: false.
	Jitter bool

	// JitterMode selects full vs partial jitter. Default: JitterPartial.
	JitterMode JitterMode

	// JitterFactor is the partial-jitter spread factor, in [0,1].
	// Default: 0.3
	JitterFactor float64
}

// BackoffCalculator is a pure attempt->delay function supporting the
// full strategy set: FIXED, LINEAR, EXPONENTIAL,
// EXPONENTIAL_WITH_JITTER, FIBONACCI, DECORRELATED_JITTER, plus the
// AGGRESSIVE/STANDARD/CONSERVATIVE presets.
//
// DecorrelatedJitter retains state across calls (last delay), so a
// BackoffCalculator must be owned by a single caller/config identity,
// never shared as a package-level singleton across unrelated callers.
type BackoffCalculator struct {
	cfg BackoffConfig

	mu   sync.Mutex
	last time.Duration // decorrelated-jitter state
}

// NewBackoffCalculator creates a calculator with defaults applied.
func NewBackoffCalculator(cfg BackoffConfig) *BackoffCalculator {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 1 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.JitterFactor <= 0 {
		cfg.JitterFactor = 0.3
	}
	if p, ok := presetParams[cfg.Preset]; ok {
		cfg.InitialDelay = p.initial
		cfg.Multiplier = p.base
	}
	return &BackoffCalculator{cfg: cfg, last: cfg.InitialDelay}
}

// Delay computes the delay for the given attempt (1-indexed).
func (b *BackoffCalculator) Delay(attempt int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.baseDelay(attempt)

	switch {
	case b.cfg.Strategy == BackoffExponentialWithJitter:
		delay = b.addJitter(delay, true)
	case b.cfg.Jitter:
		delay = b.addJitter(delay, false)
	}

	if delay > b.cfg.MaxDelay {
		delay = b.cfg.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

func (b *BackoffCalculator) baseDelay(attempt int) time.Duration {
	switch b.cfg.Strategy {
	case BackoffFixed:
		return b.cfg.InitialDelay

	case BackoffLinear:
		return b.cfg.InitialDelay * time.Duration(attempt)

	case BackoffExponential, BackoffExponentialWithJitter:
		mult := math.Pow(b.cfg.Multiplier, float64(attempt-1))
		return time.Duration(float64(b.cfg.InitialDelay) * mult)

	case BackoffFibonacci:
		return b.cfg.InitialDelay * time.Duration(fibonacci(attempt))

	case BackoffDecorrelatedJitter:
		// last = uniform(initial, last*3), capped by MaxDelay upstream.
		lo := float64(b.cfg.InitialDelay)
		hi := float64(b.last) * 3
		if hi < lo {
			hi = lo
		}
		next := lo + rand.Float64()*(hi-lo) // #nosec G404 -- timing jitter, not security sensitive.
		b.last = time.Duration(next)
		return b.last

	default: // BackoffConstant kept for backward compatibility.
		return b.cfg.InitialDelay
	}
}

// addJitter applies full or forced jitter (forceFull for EXPONENTIAL_WITH_JITTER,
// which always uses full jitter regardless of JitterMode).
func (b *BackoffCalculator) addJitter(delay time.Duration, forceFull bool) time.Duration {
	if delay <= 0 {
		return delay
	}
	mode := b.cfg.JitterMode
	if forceFull {
		mode = JitterFull
	}
	switch mode {
	case JitterFull:
		return time.Duration(rand.Float64() * float64(delay)) // #nosec G404
	default:
		factor := b.cfg.JitterFactor
		spread := float64(delay) * factor
		offset := (rand.Float64()*2 - 1) * spread // #nosec G404
		return delay + time.Duration(offset)
	}
}

// Reset clears decorrelated-jitter state back to InitialDelay.
func (b *BackoffCalculator) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = b.cfg.InitialDelay
}

func fibonacci(n int) int64 {
	if n <= 0 {
		return 0
	}
	var a, c int64 = 0, 1
	for i := 1; i < n; i++ {
		a, c = c, a+c
	}
	return c
}
