package process

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Registry tracks the jobs of active sessions.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:   make(map[string]*Job),
		logger: logger,
	}
}

// Add registers a job under its ID.
func (r *Registry) Add(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, job.ID())
	}
	r.jobs[job.ID()] = job
	return nil
}

// Remove unregisters a job. Unknown IDs are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// Get returns the job registered under id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// List returns snapshots of all jobs, oldest first.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	infos := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		infos = append(infos, job.Info())
	}
	r.mu.RUnlock()

	slices.SortFunc(infos, func(a, b JobInfo) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return infos
}

// Stop stops the job registered under id. The session owning it still
// unregisters it.
func (r *Registry) Stop(id string) error {
	job, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.logger.Info("Stopping job", "job_id", id)
	job.Stop()
	return nil
}

// StopAll stops every registered job concurrently and waits for all of them.
func (r *Registry) StopAll() {
	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.RUnlock()

	if len(jobs) == 0 {
		return
	}
	r.logger.Info("Stopping all jobs", "count", len(jobs))

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			j.Stop()
		}(job)
	}
	wg.Wait()
}
