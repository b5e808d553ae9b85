// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package offload runs blocking and CPU heavy work on a bounded set of
// worker goroutines.
package offload

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool limits the number of concurrently running functions.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a new [Pool] that runs at most size functions at once. If
// size is less than 1, the number of CPUs is used.
func NewPool(size int) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}

	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn on a worker goroutine as soon as a slot is free and waits for
// its result.
//
// If the context is done before fn returns, Do returns the context's error
// immediately. The function keeps running until it returns on its own, so fn
// should watch the context as well.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	err := p.sem.Acquire(ctx, 1)
	if err != nil {
		return fmt.Errorf("acquire worker: %w", err)
	}

	done := make(chan error, 1)

	go func() {
		defer p.sem.Release(1)
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	}
}

var defaultPool = NewPool(0)

// Do runs fn on the default pool sized by the number of CPUs. See
// [Pool.Do].
func Do(ctx context.Context, fn func(context.Context) error) error {
	return defaultPool.Do(ctx, fn)
}
