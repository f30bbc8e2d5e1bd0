/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workqueue

import (
	"context"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
)

// Task performs the work for one fleet item and reports what happened. The
// pool stamps Name, Kind, and Elapsed onto the returned Outcome.
type Task func(ctx context.Context) Outcome

type job struct {
	name    string
	kind    string
	run     Task
	outcome Outcome
}

// Pool executes tasks on a fixed set of workers.
type Pool struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*job
	jobs    []*job // submission order, for the report
	pending int    // queued + running
	stopped bool
	closed  bool
}

// New starts a pool with the given number of workers. Tasks run under ctx;
// canceling it aborts work in flight.
func New(ctx context.Context, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
	return p
}

// Submit enqueues a task. Tasks may call Submit themselves; all work,
// including work submitted by running tasks, completes before Wait returns.
func (p *Pool) Submit(name, kind string, task Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		panic("workqueue: Submit after Wait returned")
	}
	j := &job{name: name, kind: kind, run: task}
	p.jobs = append(p.jobs, j)
	p.queue = append(p.queue, j)
	p.pending++
	p.cond.Broadcast()
}

// Stop prevents queued tasks from starting. Running tasks finish; queued
// tasks drain with StatusSkipped and the report is marked interrupted.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Wait blocks until every submitted task has finished, shuts the workers
// down, and returns the report in submission order.
func (p *Pool) Wait() *Report {
	p.mu.Lock()
	for p.pending > 0 {
		p.cond.Wait()
	}
	p.closed = true
	p.cond.Broadcast()

	report := &Report{
		Outcomes:    make([]Outcome, len(p.jobs)),
		Interrupted: p.stopped,
	}
	for i, j := range p.jobs {
		report.Outcomes[i] = j.outcome
	}
	p.mu.Unlock()

	p.wg.Wait()
	return report
}

func (p *Pool) worker(ctx context.Context) {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue = p.queue[1:]
		stopped := p.stopped
		p.mu.Unlock()

		start := time.Now()
		if stopped || ctx.Err() != nil {
			clog.FromContext(ctx).Debugf("Skipping %s %s: interrupted", j.kind, j.name)
			j.outcome = Outcome{
				Status: StatusSkipped,
				Detail: "interrupted before start",
			}
		} else {
			j.outcome = j.run(ctx)
		}
		j.outcome.Name = j.name
		j.outcome.Kind = j.kind
		j.outcome.Elapsed = time.Since(start)

		p.mu.Lock()
		p.pending--
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}
