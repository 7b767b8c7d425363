package felt

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// -----------------------------------------------------------------------------
// Adapter Functions - wrap functions to create Turn processors
// -----------------------------------------------------------------------------

// Do creates a processor from a custom function that can fail.
//
// Example:
//
//	stamp := felt.Do("stamp-family", func(ctx context.Context, t *felt.Turn) (*felt.Turn, error) {
//	    t.FamilyID = clusterer.Assign(ctx, t.Signature)
//	    return t, nil
//	})
func Do(name string, fn func(context.Context, *Turn) (*Turn, error)) pipz.Processor[*Turn] {
	return pipz.Apply(pipz.NewIdentity(name, ""), fn)
}

// Transform creates a processor from a pure transformation function.
// Use this when the operation cannot fail.
func Transform(name string, fn func(context.Context, *Turn) *Turn) pipz.Processor[*Turn] {
	return pipz.Transform(pipz.NewIdentity(name, ""), fn)
}

// Effect creates a processor that performs a side effect without
// modifying the turn. Use this for telemetry or bookkeeping.
func Effect(name string, fn func(context.Context, *Turn) error) pipz.Processor[*Turn] {
	return pipz.Effect(pipz.NewIdentity(name, ""), fn)
}

// Enrich creates a processor that optionally enhances a turn. Unlike Do,
// errors are logged but don't stop the pipeline.
func Enrich(name string, fn func(context.Context, *Turn) (*Turn, error)) pipz.Processor[*Turn] {
	return pipz.Enrich(pipz.NewIdentity(name, ""), fn)
}

// -----------------------------------------------------------------------------
// Connectors - compose Turn processors
// -----------------------------------------------------------------------------

// Sequence creates a sequential pipeline of turn processors.
func Sequence(name string, processors ...pipz.Chainable[*Turn]) *pipz.Sequence[*Turn] {
	return pipz.NewSequence(pipz.NewIdentity(name, ""), processors...)
}

// Filter creates a conditional processor that either processes or passes
// through.
func Filter(name string, predicate func(context.Context, *Turn) bool, processor pipz.Chainable[*Turn]) *pipz.Filter[*Turn] {
	return pipz.NewFilter(pipz.NewIdentity(name, ""), predicate, processor)
}

// Fallback creates a processor that tries alternatives on failure.
func Fallback(name string, processors ...pipz.Chainable[*Turn]) *pipz.Fallback[*Turn] {
	return pipz.NewFallback(pipz.NewIdentity(name, ""), processors...)
}

// Retry creates a processor that retries on failure up to maxAttempts
// times.
func Retry(name string, processor pipz.Chainable[*Turn], maxAttempts int) *pipz.Retry[*Turn] {
	return pipz.NewRetry(pipz.NewIdentity(name, ""), processor, maxAttempts)
}

// Timeout creates a processor that enforces a time limit on execution.
func Timeout(name string, processor pipz.Chainable[*Turn], duration time.Duration) *pipz.Timeout[*Turn] {
	return pipz.NewTimeout(pipz.NewIdentity(name, ""), processor, duration)
}

// Concurrent runs all processors in parallel on cloned turns.
// Requires *Turn to implement pipz.Cloner[*Turn] (see turn.go Clone()).
func Concurrent(name string, reducer func(original *Turn, results map[pipz.Identity]*Turn, errors map[pipz.Identity]error) *Turn, processors ...pipz.Chainable[*Turn]) *pipz.Concurrent[*Turn] {
	return pipz.NewConcurrent(pipz.NewIdentity(name, ""), reducer, processors...)
}

// Race runs all processors in parallel and returns the first successful
// result.
func Race(name string, processors ...pipz.Chainable[*Turn]) *pipz.Race[*Turn] {
	return pipz.NewRace(pipz.NewIdentity(name, ""), processors...)
}
