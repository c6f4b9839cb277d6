package cron

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Job represents a scheduled task that runs inside the scheduler.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule is a daily wall-clock time.
type Schedule struct {
	Hour   int
	Minute int
}

// ParseSchedule parses "HH:MM" (24h).
func ParseSchedule(value string) (Schedule, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return Schedule{}, fmt.Errorf("invalid schedule %q: expected HH:MM", value)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Schedule{}, fmt.Errorf("invalid schedule hour %q", value)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Schedule{}, fmt.Errorf("invalid schedule minute %q", value)
	}
	return Schedule{Hour: hour, Minute: minute}, nil
}

// Next returns the first occurrence strictly after t, in t's location.
func (s Schedule) Next(t time.Time) time.Time {
	y, mo, d := t.Date()
	candidate := time.Date(y, mo, d, s.Hour, s.Minute, 0, 0, t.Location())
	if !candidate.After(t) {
		candidate = time.Date(y, mo, d+1, s.Hour, s.Minute, 0, 0, t.Location())
	}
	return candidate
}

func (s Schedule) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// Entry binds a job to its daily run time.
type Entry struct {
	Job Job
	At  Schedule
}

// Registry tracks scheduled jobs.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a registry preloaded with the provided entries.
func NewRegistry(entries ...Entry) *Registry {
	registry := &Registry{}
	for _, entry := range entries {
		registry.Register(entry.Job, entry.At)
	}
	return registry
}

// Register adds a job to run daily at the given time.
func (r *Registry) Register(job Job, at Schedule) {
	if job == nil {
		return
	}
	r.entries = append(r.entries, Entry{Job: job, At: at})
}

// Entries returns the registered entries in the order they were added.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Lookup finds a job by name.
func (r *Registry) Lookup(name string) (Job, bool) {
	for _, entry := range r.entries {
		if entry.Job.Name() == name {
			return entry.Job, true
		}
	}
	return nil, false
}
