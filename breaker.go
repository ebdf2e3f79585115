package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// adapterGuard bounds one external adapter: every call gets a timeout, and repeated
// failures open a circuit breaker so later calls fail fast until the cooldown elapses.
type adapterGuard struct {
	name    string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[any]
	metrics *Metrics
}

type guardSettings struct {
	Timeout          time.Duration
	FailureThreshold uint32
	Cooldown         time.Duration
	// HalfOpenRequests is how many trial calls may run at once after a cooldown. The
	// aggregator fans out one call per region, so it must cover the region limit.
	HalfOpenRequests uint32
	Metrics          *Metrics
}

const defaultHalfOpenRequests = 10

// errCallerGone marks calls abandoned because the caller's own context ended. They say
// nothing about the adapter's health and do not count against the breaker.
var errCallerGone = errors.New("caller context done")

func newAdapterGuard(name string, s guardSettings) *adapterGuard {
	if s.Timeout <= 0 {
		s.Timeout = 15 * time.Second
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 3
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 5 * time.Minute
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = defaultHalfOpenRequests
	}
	threshold := s.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("[AdapterGuard] Circuit state changed",
				slog.String("adapter", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &adapterGuard{name: name, timeout: s.Timeout, breaker: breaker, metrics: s.Metrics}
}

// guardedCall runs fn under g and converts every failure (error, timeout, panic, open
// circuit) into an empty result. It never blocks longer than the guard's timeout.
func guardedCall[T any](ctx context.Context, g *adapterGuard, query string, fn func(ctx context.Context) ([]T, error)) []T {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.breaker.Execute(func() (any, error) {
		items, err := runBounded(callCtx, fn)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, err)
			}
			return nil, err
		}
		return items, nil
	})
	if err != nil {
		level := slog.LevelWarn
		switch {
		case errors.Is(err, errCallerGone):
			level = slog.LevelDebug
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			g.metrics.AdapterFailed(g.name)
			level = slog.LevelDebug
		default:
			g.metrics.AdapterFailed(g.name)
		}
		slog.Log(ctx, level, "[AdapterGuard] Adapter call failed, using empty result",
			slog.String("adapter", g.name),
			slog.String("query", query),
			slog.Any("error", err))
		return nil
	}
	items, _ := out.([]T)
	return items
}

func runBounded[T any](ctx context.Context, fn func(ctx context.Context) ([]T, error)) ([]T, error) {
	type outcome struct {
		items []T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		items, err := fn(ctx)
		done <- outcome{items: items, err: err}
	}()

	select {
	case o := <-done:
		return o.items, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("adapter call abandoned: %w", ctx.Err())
	}
}
