// Package backoff computes how long a failed job waits before it becomes
// eligible again. Strategies are stateless and safe for concurrent use.
package backoff

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// Strategy computes the delay before retry n (1-indexed: the first retry
// after the first failed attempt is 1).
type Strategy interface {
	Delay(retry int) time.Duration
}

// ──────────────────────────────────────────────────
// None
// ──────────────────────────────────────────────────

// None retries immediately.
type None struct{}

// Delay always returns zero.
func (None) Delay(int) time.Duration { return 0 }

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant waits the same interval before every retry.
type Constant struct {
	Interval time.Duration
}

// Delay returns the fixed interval.
func (c Constant) Delay(int) time.Duration { return c.Interval }

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay on each retry, capped at Max.
// With Jitter set the delay is drawn uniformly from [0, capped delay].
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// Delay returns min(Initial * 2^(retry-1), Max), optionally jittered.
func (e Exponential) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := float64(e.Initial) * math.Pow(2, float64(retry-1))
	if e.Max > 0 && d > float64(e.Max) {
		d = float64(e.Max)
	}
	if e.Jitter {
		d = rand.Float64() * d //nolint:gosec // jitter does not need crypto rand
	}
	return time.Duration(d)
}

// ──────────────────────────────────────────────────
// Parse
// ──────────────────────────────────────────────────

// Parse builds a strategy from its config form:
//
//	none
//	constant:10s
//	exponential:1s:1m
//	jitter:1s:1m
//
// An empty string is the same as "none".
func Parse(s string) (Strategy, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	kind := strings.ToLower(parts[0])
	args, err := parseDurations(parts[1:])
	if err != nil {
		return nil, fmt.Errorf("backoff: %q: %w", s, err)
	}

	switch {
	case (kind == "" || kind == "none") && len(args) == 0:
		return None{}, nil
	case kind == "constant" && len(args) == 1:
		return Constant{Interval: args[0]}, nil
	case kind == "exponential" && len(args) == 2:
		return Exponential{Initial: args[0], Max: args[1]}, nil
	case kind == "jitter" && len(args) == 2:
		return Exponential{Initial: args[0], Max: args[1], Jitter: true}, nil
	default:
		return nil, fmt.Errorf("backoff: unrecognised strategy %q", s)
	}
}

func parseDurations(in []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(in))
	for _, s := range in {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative duration %s", s)
		}
		out = append(out, d)
	}
	return out, nil
}
