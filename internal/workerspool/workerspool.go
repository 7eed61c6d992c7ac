// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs build tasks in goroutines, with a limit on how many run at the same
// time: code generation of many stencils at once is CPU bound.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool of workers. Create it with New.
type Pool struct {
	limit int // 0 runs tasks inline, < 0 is unlimited.

	mu       sync.Mutex
	slotFree sync.Cond // broadcast when a goroutine task ends.
	drained  sync.Cond // broadcast when pending drops to 0.
	running  int       // tasks running in their own goroutine.
	pending  int       // tasks not finished yet, inline ones included.
}

// New returns a Pool limited to runtime.NumCPU() tasks at a time.
func New() *Pool {
	p := &Pool{limit: runtime.NumCPU()}
	p.slotFree.L = &p.mu
	p.drained.L = &p.mu
	return p
}

// SetMaxParallelism changes the limit of tasks running at the same time: 0 runs every task
// inline, and a negative value removes the limit. Set it before starting tasks.
func (p *Pool) SetMaxParallelism(limit int) *Pool {
	p.limit = limit
	return p
}

// MaxParallelism returns the current limit, see SetMaxParallelism.
func (p *Pool) MaxParallelism() int { return p.limit }

// IsEnabled returns false if tasks run inline.
func (p *Pool) IsEnabled() bool { return p.limit != 0 }

// IsUnlimited returns true if there is no limit on the number of goroutines.
func (p *Pool) IsUnlimited() bool { return p.limit < 0 }

// WaitToStart blocks until a worker is free and starts task on it.
// With parallelism disabled the task runs inline instead.
func (p *Pool) WaitToStart(task func()) {
	p.mu.Lock()
	if p.limit == 0 {
		p.pending++
		p.mu.Unlock()
		defer p.done(false)
		task()
		return
	}
	for p.full() {
		p.slotFree.Wait()
	}
	p.spawn(task)
	p.mu.Unlock()
}

// StartIfAvailable starts task in a goroutine only if a worker is free, and reports whether it did.
func (p *Pool) StartIfAvailable(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit == 0 || p.full() {
		return false
	}
	p.spawn(task)
	return true
}

// Wait returns once every task started, including tasks started by other tasks, has finished.
func (p *Pool) Wait() {
	p.mu.Lock()
	for p.pending > 0 {
		p.drained.Wait()
	}
	p.mu.Unlock()
}

// full requires p.mu.
func (p *Pool) full() bool {
	return p.limit > 0 && p.running >= p.limit
}

// spawn requires p.mu.
func (p *Pool) spawn(task func()) {
	p.running++
	p.pending++
	go func() {
		defer p.done(true)
		task()
	}()
}

func (p *Pool) done(inGoroutine bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inGoroutine {
		p.running--
		p.slotFree.Broadcast()
	}
	if p.pending--; p.pending == 0 {
		p.drained.Broadcast()
	}
}
