/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workqueue

import "time"

// Status classifies what synchronization did to one fleet item.
type Status int

const (
	// StatusCreated means the destination was materialized from scratch.
	StatusCreated Status = iota
	// StatusUpdated means an existing destination was moved to the
	// requested state.
	StatusUpdated
	// StatusUpToDate means the destination already matched.
	StatusUpToDate
	// StatusSkipped means the task never ran, for example after an
	// interrupt or in a dry run.
	StatusSkipped
	// StatusFailed means the task ran and errored.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusUpdated:
		return "updated"
	case StatusUpToDate:
		return "up-to-date"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome records the result of one fleet item.
type Outcome struct {
	// Name identifies the item, typically its destination path or release
	// name.
	Name string
	// Kind is the item flavor, "repository" or "release".
	Kind string
	// Status classifies the result.
	Status Status
	// Detail carries human-oriented context: the checked-out SHA, an asset
	// count, or a skip reason.
	Detail string
	// Err is set when Status is StatusFailed.
	Err error
	// Elapsed is how long the task ran.
	Elapsed time.Duration
}

// Report aggregates outcomes in submission order.
type Report struct {
	Outcomes []Outcome
	// Interrupted is set when the run was stopped before all tasks started.
	Interrupted bool
}

// HasFailures reports whether any task failed.
func (r *Report) HasFailures() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Count returns how many outcomes have the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
