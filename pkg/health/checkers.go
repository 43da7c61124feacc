package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when any recent GC pause exceeded threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		if len(stats.Pause) == 0 {
			return nil
		}
		if longest := slices.Max(stats.Pause); longest > threshold {
			return errors.Errorf("GC pause %s exceeds threshold %s", longest, threshold)
		}
		return nil
	}
}

// CapacityCheck fails once current() reaches limit. A non-positive limit
// disables the check. Used to pull an instance with a full cart session
// table out of rotation.
func CapacityCheck(what string, current func() int, limit int) CheckFunc {
	return func(context.Context) error {
		if limit <= 0 {
			return nil
		}
		if n := current(); n >= limit {
			return errors.Errorf("%s at capacity: %d of %d", what, n, limit)
		}
		return nil
	}
}
