package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/guiyumin/mediasnap/internal/core/extractor"
	"github.com/guiyumin/mediasnap/internal/core/resolve"
)

// JobStatus represents the current state of a resolution job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

const (
	queueCapacity   = 100
	jobTTL          = time.Hour
	cleanupInterval = 10 * time.Minute
)

// Job represents a queued resolution
type Job struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Status    JobStatus       `json:"status"`
	Result    *resolve.Result `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Fallback  bool            `json:"fallback,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	cancel context.CancelFunc
	ctx    context.Context
}

func (j *Job) finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// ResolveFunc resolves one URL
type ResolveFunc func(ctx context.Context, url string) (*resolve.Result, error)

var (
	// ErrQueueFull is returned by AddJob when no more jobs can be queued
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueStopped is returned by AddJob after Stop
	ErrQueueStopped = errors.New("job queue is stopped")
)

// JobQueue runs resolution jobs on a fixed pool of workers
type JobQueue struct {
	jobs          map[string]*Job
	mu            sync.RWMutex
	queue         chan *Job
	maxConcurrent int
	resolveFn     ResolveFunc
	log           *logrus.Logger
	wg            sync.WaitGroup
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopped       bool
}

// NewJobQueue creates a job queue with the given worker count
func NewJobQueue(maxConcurrent int, resolveFn ResolveFunc, log *logrus.Logger) *JobQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &JobQueue{
		jobs:          make(map[string]*Job),
		queue:         make(chan *Job, queueCapacity),
		maxConcurrent: maxConcurrent,
		resolveFn:     resolveFn,
		log:           log,
		stopCleanup:   make(chan struct{}),
	}
}

// Start begins the worker pool and cleanup routine
func (jq *JobQueue) Start() {
	for i := 0; i < jq.maxConcurrent; i++ {
		jq.wg.Add(1)
		go jq.worker()
	}

	jq.cleanupTicker = time.NewTicker(cleanupInterval)
	go jq.cleanupLoop()
}

// Stop cancels pending work and waits for the workers to exit. Later calls
// are no-ops.
func (jq *JobQueue) Stop() {
	jq.mu.Lock()
	if jq.stopped {
		jq.mu.Unlock()
		return
	}
	jq.stopped = true
	for _, job := range jq.jobs {
		if !job.finished() {
			job.cancel()
		}
	}
	// AddJob sends under mu, so no send can race the close
	close(jq.queue)
	jq.mu.Unlock()

	close(jq.stopCleanup)
	if jq.cleanupTicker != nil {
		jq.cleanupTicker.Stop()
	}
	jq.wg.Wait()
}

func (jq *JobQueue) worker() {
	defer jq.wg.Done()

	for job := range jq.queue {
		jq.processJob(job)
	}
}

func (jq *JobQueue) processJob(job *Job) {
	defer job.cancel()
	if !jq.markRunning(job.ID) {
		return
	}

	result, err := jq.resolveFn(job.ctx, job.URL)

	jq.mu.Lock()
	defer jq.mu.Unlock()

	job.UpdatedAt = time.Now()
	switch {
	case job.Status == JobStatusCancelled:
	case err != nil && job.ctx.Err() == context.Canceled:
		job.Status = JobStatusCancelled
		job.Error = "cancelled by user"
	case err != nil:
		job.Status = JobStatusFailed
		job.Error = err.Error()
		job.ErrorCode = string(extractor.CodeOf(err))
		job.Fallback = extractor.HasFallback(err)
		jq.log.WithFields(logrus.Fields{"job": job.ID, "code": job.ErrorCode}).WithError(err).Info("job failed")
	default:
		job.Status = JobStatusCompleted
		job.Result = result
	}
}

// markRunning moves a queued job to running. Jobs cancelled while queued
// are skipped.
func (jq *JobQueue) markRunning(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || job.Status != JobStatusQueued {
		return false
	}
	job.Status = JobStatusRunning
	job.UpdatedAt = time.Now()
	return true
}

func (jq *JobQueue) cleanupLoop() {
	for {
		select {
		case <-jq.cleanupTicker.C:
			jq.cleanupOldJobs(time.Now().Add(-jobTTL))
		case <-jq.stopCleanup:
			return
		}
	}
}

// cleanupOldJobs drops finished jobs last updated before cutoff
func (jq *JobQueue) cleanupOldJobs(cutoff time.Time) int {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	count := 0
	for id, job := range jq.jobs {
		if job.finished() && job.UpdatedAt.Before(cutoff) {
			delete(jq.jobs, id)
			count++
		}
	}
	return count
}

// ClearHistory removes all completed, failed, and cancelled jobs
func (jq *JobQueue) ClearHistory() int {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	count := 0
	for id, job := range jq.jobs {
		if job.finished() {
			delete(jq.jobs, id)
			count++
		}
	}
	return count
}

// RemoveJob removes a single finished job by ID
func (jq *JobQueue) RemoveJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || !job.finished() {
		return false
	}

	delete(jq.jobs, id)
	return true
}

// AddJob creates and queues a new resolution job
func (jq *JobQueue) AddJob(url string) (*Job, error) {
	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
	}

	jq.mu.Lock()
	defer jq.mu.Unlock()

	if jq.stopped {
		cancel()
		return nil, ErrQueueStopped
	}

	select {
	case jq.queue <- job:
		jq.jobs[job.ID] = job
		snapshot := *job
		return &snapshot, nil
	default:
		cancel()
		return nil, fmt.Errorf("%w (%d pending)", ErrQueueFull, queueCapacity)
	}
}

// GetJob returns a copy of the job with the given ID
func (jq *JobQueue) GetJob(id string) *Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	if job, ok := jq.jobs[id]; ok {
		jobCopy := *job
		return &jobCopy
	}
	return nil
}

// GetAllJobs returns copies of all jobs, newest first
func (jq *JobQueue) GetAllJobs() []*Job {
	jq.mu.RLock()
	jobs := make([]*Job, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	jq.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// CancelJob cancels a queued or running job by ID
func (jq *JobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || job.finished() {
		return false
	}

	job.cancel()
	job.Status = JobStatusCancelled
	job.UpdatedAt = time.Now()
	return true
}
