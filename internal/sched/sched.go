// Package sched is a small in-process task scheduler for foreground
// reminders. Tasks live only as long as the invoking command's process;
// nothing here is persisted or detached.
package sched

import (
	"sync"
	"time"
)

// Task is a scheduled action that can be cancelled before (or between)
// runs. Cancellation is cooperative and immediate: the waiting goroutine
// is woken and exits without running the action again.
type Task struct {
	name   string
	done   chan struct{}
	cancel chan struct{}
	once   sync.Once
}

// Name returns the task's label.
func (t *Task) Name() string { return t.name }

// Cancel stops the task. Safe to call multiple times and from any
// goroutine.
func (t *Task) Cancel() {
	t.once.Do(func() { close(t.cancel) })
}

// Done is closed when the task's goroutine has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Once runs fn once after delay unless cancelled first.
func Once(delay time.Duration, fn func(), name string) *Task {
	t := &Task{name: name, done: make(chan struct{}), cancel: make(chan struct{})}

	go func() {
		defer close(t.done)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			fn()
		case <-t.cancel:
		}
	}()

	return t
}

// Every runs fn every interval until cancelled. The first run happens
// after initialDelay; pass interval as initialDelay for the plain
// periodic case.
func Every(interval, initialDelay time.Duration, fn func(), name string) *Task {
	t := &Task{name: name, done: make(chan struct{}), cancel: make(chan struct{})}

	go func() {
		defer close(t.done)

		timer := time.NewTimer(initialDelay)
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				fn()
				timer.Reset(interval)
			case <-t.cancel:
				return
			}
		}
	}()

	return t
}
