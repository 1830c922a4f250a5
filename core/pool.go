// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// NewPool creates an executor running at most workers tasks at once.
// Submit never blocks, tasks over the limit wait for a free worker.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Pool is a bounded Executor.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Submit implements Executor
func (p *Pool) Submit(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		fn()
	}()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close drops tasks still waiting for a worker and waits for running ones.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}

type immediate struct{}

func (immediate) Submit(fn func()) { fn() }
func (immediate) Post(fn func())   { fn() }

// Immediate runs every task synchronously on the calling goroutine.
// It is both an Executor and a Scheduler.
var Immediate = immediate{}
