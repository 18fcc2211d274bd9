// Package jobmgr runs named background jobs with cancellation, lifecycle
// callbacks, and in-memory tracking of what is running.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(func(msg string) {
//	    log.Println("JOB:", msg)
//	})
//
//	err := jm.StartAsync(ctx, "sanction-sweep", func(ctx context.Context) error {
//	    // do work until ctx is cancelled
//	    return nil
//	})
//
//	// later, block until the job has returned
//	_ = jm.StopWait(ctx, "sanction-sweep")
//
// No retries, no persistence. Jobs are removed when they return.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrNotRunning = errors.New("job not running")

// Job represents a running unit of work.
type Job struct {
	Name   string
	Cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the job's runner has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// StatusReporter receives lifecycle events for jobs.
// Example messages:
//
//	running:sanction-sweep
//	error:sanction-autosave:disk full
//	done:sanction-sweep
type StatusReporter func(string)

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	Reporter StatusReporter
}

// NewManager creates a new Manager. The reporter callback may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// StartAsync runs a job in its own goroutine and returns immediately.
// The job's context is derived from parent. Starting a name that is already
// running is an error.
func (m *Manager) StartAsync(parent context.Context, name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	job := &Job{Name: name, Cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("job '%s' is already running", name)
	}
	m.jobs[name] = job
	m.mu.Unlock()

	go func() {
		defer close(job.done)
		defer cancel()

		m.report("running:" + name)

		err := runner(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		if m.jobs[name] == job {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job by name without waiting for it.
func (m *Manager) Stop(name string) error {
	_, err := m.cancel(name)
	return err
}

// StopWait cancels a running job and blocks until it returns or ctx ends.
func (m *Manager) StopWait(ctx context.Context, name string) error {
	job, err := m.cancel(name)
	if err != nil {
		return err
	}
	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) cancel(name string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job '%s': %w", name, ErrNotRunning)
	}

	job.Cancel()
	delete(m.jobs, name)
	return job, nil
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
