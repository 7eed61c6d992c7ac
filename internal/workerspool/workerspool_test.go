// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolLimit(t *testing.T) {
	const limit = 3
	pool := New().SetMaxParallelism(limit)
	var running, peak, done atomic.Int32
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(limit)
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		for range 10 {
			pool.WaitToStart(func() {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				if n <= limit && done.Load() == 0 {
					started.Done()
				}
				<-release
				done.Add(1)
				running.Add(-1)
			})
		}
	}()
	started.Wait()
	assert.False(t, pool.StartIfAvailable(func() {}), "pool should be full")
	close(release)
	<-fed
	pool.Wait()
	assert.Equal(t, int32(10), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestPoolInlineAndUnlimited(t *testing.T) {
	pool := New().SetMaxParallelism(0)
	require.False(t, pool.IsEnabled())
	var count atomic.Int32
	pool.WaitToStart(func() { count.Add(1) })
	assert.Equal(t, int32(1), count.Load(), "disabled pool runs tasks inline")
	assert.False(t, pool.StartIfAvailable(func() { count.Add(1) }))

	pool = New().SetMaxParallelism(-1)
	require.True(t, pool.IsUnlimited())
	for range 100 {
		require.True(t, pool.StartIfAvailable(func() { count.Add(1) }))
	}
	pool.Wait()
	assert.Equal(t, int32(101), count.Load())
}
