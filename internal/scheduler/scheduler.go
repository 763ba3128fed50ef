// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic housekeeping jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

var (
	// ErrJobNotFound is returned for an unknown job name.
	ErrJobNotFound = errors.New("scheduler: job not found")
	// ErrTriggerLimited is returned when manual triggers come too fast.
	ErrTriggerLimited = errors.New("scheduler: trigger rate limited")
)

// JobFunc is the body of a job.
type JobFunc func(ctx context.Context) error

type job struct {
	name        string
	description string
	schedule    string
	entryID     cron.EntryID
	fn          JobFunc
	limiter     *rate.Limiter

	mu      sync.Mutex
	lastErr error
	lastRun time.Time
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	LastError   string
}

// Scheduler wraps a cron instance with named jobs.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.RWMutex
	jobs map[string]*job
}

// New creates a scheduler. Jobs are added with Add before Start.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger,
		timeout: DefaultJobTimeout,
		jobs:    make(map[string]*job),
	}
}

// Add registers fn under name with a standard five-field cron spec or a
// descriptor such as "@hourly".
func (s *Scheduler) Add(name, description, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{
		name:        name,
		description: description,
		schedule:    spec,
		fn:          fn,
		limiter:     rate.NewLimiter(rate.Every(time.Minute), 1),
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	j.entryID = id
	s.jobs[name] = j

	s.logger.Debug("registered scheduled job", "name", name, "schedule", spec)
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// List returns all jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		info := JobInfo{
			Name:        j.name,
			Description: j.description,
			Schedule:    j.schedule,
			LastRun:     j.lastRun,
			NextRun:     s.cron.Entry(j.entryID).Next,
		}
		if j.lastErr != nil {
			info.LastError = j.lastErr.Error()
		}
		j.mu.Unlock()
		result = append(result, info)
	}

	sort.Slice(result, func(a, b int) bool { return result[a].Name < result[b].Name })
	return result
}

// TriggerNow runs a job immediately in the caller's goroutine. Manual
// triggers are limited to one per minute per job.
func (s *Scheduler) TriggerNow(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !j.limiter.Allow() {
		return ErrTriggerLimited
	}

	s.logger.Info("manually triggering job", "name", name)
	return s.run(j)
}

func (s *Scheduler) run(j *job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := j.fn(ctx)

	j.mu.Lock()
	j.lastRun = start.UTC()
	j.lastErr = err
	j.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "name", j.name, "error", err)
		return err
	}
	s.logger.Debug("scheduled job finished", "name", j.name, "duration", time.Since(start))
	return nil
}
