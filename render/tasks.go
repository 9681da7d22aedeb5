// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

// DefaultMaxTasksPerFrame bounds queued work run in one frame.
const DefaultMaxTasksPerFrame = 4

// Task is a unit of deferred frame work, such as one step of a chunked
// rebuild.
type Task func()

// TaskQueue holds deferred work run a few items per frame. It is not safe
// for concurrent use; it lives on the frame thread.
type TaskQueue struct {
	tasks []Task
}

// Push appends t.
func (q *TaskQueue) Push(t Task) {
	if t != nil {
		q.tasks = append(q.tasks, t)
	}
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// Run runs at most budget tasks in FIFO order and returns how many ran.
// Tasks pushed by a running task wait for a later frame.
func (q *TaskQueue) Run(budget int) int {
	n := min(budget, len(q.tasks))
	if n <= 0 {
		return 0
	}
	batch := q.tasks[:n:n]
	q.tasks = q.tasks[n:]
	for _, t := range batch {
		t()
	}
	return n
}

// Clear drops every queued task.
func (q *TaskQueue) Clear() {
	q.tasks = nil
}
