// Package observability records the outcome and latency of transition
// operations, dataset runs and exports.
package observability

import (
	"context"
	"time"
)

// Recorder captures one operation outcome.
type Recorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Nop discards observations.
type Nop struct{}

func (Nop) Observe(context.Context, string, bool, time.Duration) {}

// Multi fans an observation out to several recorders.
type Multi []Recorder

func (m Multi) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, operation, success, duration)
		}
	}
}

// Time runs fn and records its outcome under operation.
func Time(ctx context.Context, r Recorder, operation string, fn func() error) error {
	if r == nil {
		r = Nop{}
	}
	start := time.Now()
	err := fn()
	r.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
