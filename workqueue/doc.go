/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workqueue runs fleet synchronization tasks on a fixed number of
// workers and collects one Outcome per task in submission order.
//
// # Dynamic submission
//
// Tasks may submit further tasks while running; nested fleets feed the same
// pool instead of spawning their own. Wait returns only after every task,
// including tasks submitted by other tasks, has finished.
//
// # Interruption
//
// Stop marks the pool as interrupted: tasks that have not started drain with
// StatusSkipped while running tasks finish. Canceling the pool's context
// additionally aborts the remote operations of running tasks.
package workqueue
