// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package offload_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aibor/repack/internal/offload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDo(t *testing.T) {
	errTest := errors.New("test error")

	tests := []struct {
		name        string
		fn          func(context.Context) error
		expectedErr error
	}{
		{
			name: "success",
			fn:   func(context.Context) error { return nil },
		},
		{
			name:        "failure",
			fn:          func(context.Context) error { return errTest },
			expectedErr: errTest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := offload.Do(t.Context(), tt.fn)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestPool_Bounded(t *testing.T) {
	pool := offload.NewPool(2)

	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := pool.Do(t.Context(), func(context.Context) error {
				current := running.Add(1)
				defer running.Add(-1)

				for {
					old := peak.Load()
					if current <= old || peak.CompareAndSwap(old, current) {
						break
					}
				}

				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_Canceled(t *testing.T) {
	pool := offload.NewPool(1)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = pool.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release

			return nil
		})
	}()

	<-started

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := pool.Do(ctx, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)

	close(release)

	// The slot is free again once the blocking function returned.
	require.NoError(t, pool.Do(t.Context(), func(context.Context) error { return nil }))
}
