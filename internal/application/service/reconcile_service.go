package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/docmatch-backend/internal/application/pipeline"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/config"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

// RunStatus represents the current state of a reconciliation job.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress
	// updates before it is considered hung.
	DefaultJobStaleThreshold = 10 * time.Minute

	// DefaultJobMaxDuration is the maximum time a job can run before being
	// forcefully marked as failed.
	DefaultJobMaxDuration = time.Hour
)

// allTenants is the lock key of runs without a tenant filter.
const allTenants = "*"

var (
	// ErrRunInProgress is returned when the tenant already has an active run.
	ErrRunInProgress = errors.New("reconciliation already running for tenant")
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidEvent is returned for unknown event types.
	ErrInvalidEvent = errors.New("invalid event type")
	// ErrNoStorage is returned by operations that need a database.
	ErrNoStorage = errors.New("no database configured")
)

// ReconcileRequest holds parameters for one reconciliation run.
type ReconcileRequest struct {
	TenantID  string
	Input     pipeline.Input
	EventType model.EventType
	DryRun    bool
	Debug     bool
	Limits    tolerance.Limits
	Override  *tolerance.Override
}

// RunProgress holds real-time progress information.
type RunProgress struct {
	CurrentPhase string
	Docs         int
	Txs          int
	Decisions    int
	LastUpdate   time.Time
}

// RunJob represents a running or completed reconciliation job.
type RunJob struct {
	ID          string
	TenantID    string
	Status      RunStatus
	Request     ReconcileRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    RunProgress
	Output      *pipeline.Output
	Error       error
	cancelFunc  context.CancelFunc
}

// ReconcileService runs the pipeline for callers, one run per tenant at a
// time, and keeps track of background jobs.
type ReconcileService struct {
	cfg      *config.Config
	storage  storage.Repository
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	// Job management
	jobs      map[string]*RunJob
	jobsMutex sync.RWMutex

	// Tenant-level locking, tenant key -> owning run id
	tenantLocks map[string]string
	locksMutex  sync.Mutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewReconcileService creates a new reconcile service. A nil store makes
// every run a dry run.
func NewReconcileService(cfg *config.Config, store storage.Repository, logger *slog.Logger) *ReconcileService {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	var repo model.MatchRepository
	if store != nil {
		repo = store
	}

	return &ReconcileService{
		cfg:         cfg,
		storage:     store,
		pipeline:    pipeline.NewPipeline(repo, cfg.Matching.ToTolerance(), cfg.Limits.ToLimits(), logger.With("system", "pipeline")),
		logger:      logger,
		jobs:        make(map[string]*RunJob),
		tenantLocks: make(map[string]string),
	}
}

// Reconcile runs the pipeline synchronously and records the run.
func (s *ReconcileService) Reconcile(ctx context.Context, req ReconcileRequest) (*pipeline.Output, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if !s.tryLockTenant(req.TenantID, runID) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, tenantKey(req.TenantID))
	}
	defer s.unlockTenant(req.TenantID, runID)

	startedAt := time.Now()
	out, err := s.pipeline.Run(ctx, req.Input, s.options(runID, req, nil))
	s.recordRun(runID, req, startedAt, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StartReconcile starts a reconciliation job in the background and
// returns its id, which is also the run id.
// The passed context is NOT used as the parent for the job; use
// CancelJob to stop it.
func (s *ReconcileService) StartReconcile(_ context.Context, req ReconcileRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	if !s.tryLockTenant(req.TenantID, jobID) {
		return "", fmt.Errorf("%w: %s", ErrRunInProgress, tenantKey(req.TenantID))
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &RunJob{
		ID:         jobID,
		TenantID:   req.TenantID,
		Status:     StatusPending,
		Request:    req,
		StartedAt:  now,
		cancelFunc: cancel,
		Progress:   RunProgress{CurrentPhase: "pending", LastUpdate: now},
	}

	s.jobsMutex.Lock()
	s.jobs[jobID] = job
	s.jobsMutex.Unlock()

	go s.runJob(jobCtx, job)

	s.logger.Info("reconcile job started",
		"job_id", jobID,
		"tenant", req.TenantID,
		"docs", len(req.Input.Docs),
		"txs", len(req.Input.Txs),
		"dry_run", req.DryRun,
	)

	return jobID, nil
}

// GetJob retrieves a job by ID. The returned value is a snapshot.
func (s *ReconcileService) GetJob(jobID string) (*RunJob, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// ListActiveJobs returns all running or pending jobs.
func (s *ReconcileService) ListActiveJobs() []*RunJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	var active []*RunJob
	for _, job := range s.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			snapshot := *job
			active = append(active, &snapshot)
		}
	}
	return active
}

// ListAllJobs returns all jobs.
func (s *ReconcileService) ListAllJobs() []*RunJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]*RunJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// CancelJob cancels a running job.
func (s *ReconcileService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("job cannot be cancelled: status=%s", job.Status)
	}

	job.cancelFunc()
	job.Status = StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("reconcile job cancelled", "job_id", jobID)
	return nil
}

// ImportHistory normalizes txs and stores them as transaction history for
// subscription detection.
func (s *ReconcileService) ImportHistory(ctx context.Context, txs []model.Tx) (int, error) {
	if s.storage == nil {
		return 0, ErrNoStorage
	}
	cur := s.pipeline.Config().DefaultCurrency
	normalized := make([]model.Tx, 0, len(txs))
	for _, tx := range txs {
		normalized = append(normalized, normalize.Tx(tx, cur))
	}

	saved, err := s.storage.SaveTransactions(ctx, normalized)
	if err != nil {
		return 0, fmt.Errorf("failed to import history: %w", err)
	}
	s.logger.Info("imported transaction history", "received", len(txs), "saved", saved)
	return saved, nil
}

// runJob executes the job in a background goroutine.
func (s *ReconcileService) runJob(ctx context.Context, job *RunJob) {
	defer s.unlockTenant(job.TenantID, job.ID)

	s.updateJobStatus(job.ID, StatusRunning, "initializing")

	opts := s.options(job.ID, job.Request, func(update pipeline.ProgressUpdate) {
		s.updateJobProgress(job.ID, update)
	})
	out, err := s.pipeline.Run(ctx, job.Request.Input, opts)
	s.recordRun(job.ID, job.Request, job.StartedAt, out, err)

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Already marked as cancelled in CancelJob
			return
		}
		s.failJob(job.ID, err)
		return
	}
	s.completeJob(job.ID, out)
}

func (s *ReconcileService) options(runID string, req ReconcileRequest, progress func(pipeline.ProgressUpdate)) pipeline.Options {
	event := req.EventType
	if event == "" {
		event = model.EventBatch
	}
	return pipeline.Options{
		RunID:            runID,
		TenantFilter:     req.TenantID,
		Limits:           req.Limits,
		ConfigOverride:   req.Override,
		EventType:        event,
		Debug:            req.Debug,
		DryRun:           req.DryRun,
		ProgressCallback: progress,
	}
}

// recordRun stores the run summary. Failures are logged, never returned.
func (s *ReconcileService) recordRun(runID string, req ReconcileRequest, startedAt time.Time, out *pipeline.Output, runErr error) {
	if s.storage == nil || req.DryRun {
		return
	}

	rec := &storage.RunRecord{
		RunID:       runID,
		TenantID:    req.TenantID,
		EventType:   string(s.options(runID, req, nil).EventType),
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		DryRun:      req.DryRun,
		Docs:        len(req.Input.Docs),
		Txs:         len(req.Input.Txs),
		Status:      string(StatusCompleted),
	}
	if out != nil {
		rec.Accepted = out.Accepted
		rec.Suggested = out.Suggested
		rec.PrepassHits = out.Prepass.FinalCount
	}
	if runErr != nil {
		rec.Status = string(StatusFailed)
		rec.Error = runErr.Error()
	}

	// The run context may already be cancelled; the record is still written.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.storage.SaveRun(ctx, rec); err != nil {
		s.logger.Warn("failed to record run", "run_id", runID, "error", err)
	}
}

// updateJobStatus updates a job's status and phase.
func (s *ReconcileService) updateJobStatus(jobID string, status RunStatus, phase string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.Status != StatusCancelled {
		job.Status = status
		job.Progress.CurrentPhase = phase
		job.Progress.LastUpdate = time.Now()
	}
}

// updateJobProgress updates job progress from the pipeline callback.
func (s *ReconcileService) updateJobProgress(jobID string, update pipeline.ProgressUpdate) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.Status == StatusRunning {
		job.Progress.CurrentPhase = update.Phase
		job.Progress.Docs = update.Docs
		job.Progress.Txs = update.Txs
		job.Progress.Decisions = update.Decisions
		job.Progress.LastUpdate = time.Now()
	}
}

// completeJob marks a job as completed with its output.
func (s *ReconcileService) completeJob(jobID string, out *pipeline.Output) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != StatusRunning {
		return
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Output = out
	job.Progress.CurrentPhase = "completed"
	job.Progress.Decisions = len(out.Decisions)
	job.Progress.LastUpdate = now
	s.logger.Info("reconcile job completed",
		"job_id", jobID,
		"decisions", len(out.Decisions),
		"accepted", out.Accepted,
		"suggested", out.Suggested,
	)
}

// failJob marks a job as failed with an error.
func (s *ReconcileService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != StatusRunning {
		return
	}
	now := time.Now()
	job.Status = StatusFailed
	job.CompletedAt = &now
	job.Error = err
	job.Progress.CurrentPhase = "failed"
	job.Progress.LastUpdate = now
	s.logger.Error("reconcile job failed", "job_id", jobID, "error", err)
}

func tenantKey(tenant string) string {
	if tenant == "" {
		return allTenants
	}
	return tenant
}

// tryLockTenant marks the tenant as busy for owner.
func (s *ReconcileService) tryLockTenant(tenant, owner string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	key := tenantKey(tenant)
	if _, busy := s.tenantLocks[key]; busy {
		return false
	}
	s.tenantLocks[key] = owner
	return true
}

// unlockTenant releases the tenant if owner still holds it.
func (s *ReconcileService) unlockTenant(tenant, owner string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	key := tenantKey(tenant)
	if s.tenantLocks[key] == owner {
		delete(s.tenantLocks, key)
	}
}

func validateRequest(req ReconcileRequest) error {
	if req.EventType != "" && !req.EventType.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, req.EventType)
	}
	return nil
}

// CleanupOldJobs removes finished jobs older than the specified duration.
func (s *ReconcileService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old reconcile jobs", "removed", removed)
	}

	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear to be stuck and marks them as failed.
// A job is considered stale if:
// 1. It has been running longer than maxDuration, OR
// 2. Its Progress.LastUpdate is older than staleThreshold
func (s *ReconcileService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		reason := ""
		if now.Sub(job.StartedAt) > maxDuration {
			reason = fmt.Sprintf("exceeded max duration of %v (started %v ago)", maxDuration, now.Sub(job.StartedAt).Round(time.Second))
		} else if now.Sub(job.Progress.LastUpdate) > staleThreshold {
			reason = fmt.Sprintf("no progress update for %v (threshold: %v)", now.Sub(job.Progress.LastUpdate).Round(time.Second), staleThreshold)
		}
		if reason == "" {
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		lastUpdate := job.Progress.LastUpdate
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now

		s.unlockTenant(job.TenantID, id)

		s.logger.Warn("marked stale job as failed",
			"job_id", id,
			"tenant", job.TenantID,
			"reason", reason,
			"started_at", job.StartedAt,
			"last_update", lastUpdate,
		)
		marked++
	}

	return marked
}

// IsJobStale checks if a specific job is considered stale.
func (s *ReconcileService) IsJobStale(jobID string, staleThreshold, maxDuration time.Duration) bool {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return false
	}

	if job.Status != StatusRunning && job.Status != StatusPending {
		return false
	}

	now := time.Now()
	return now.Sub(job.StartedAt) > maxDuration || now.Sub(job.Progress.LastUpdate) > staleThreshold
}

// StartBackgroundCleanup starts a goroutine that periodically marks stale
// jobs as failed and drops finished jobs older than a day.
// Call StopBackgroundCleanup to stop it.
func (s *ReconcileService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started",
			"check_interval", checkInterval,
			"stale_threshold", DefaultJobStaleThreshold,
			"max_duration", DefaultJobMaxDuration,
		)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if n := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); n > 0 {
					s.logger.Info("marked stale jobs as failed", "count", n)
				}
				s.CleanupOldJobs(24 * time.Hour)
			}
		}
	}()
}

// StopBackgroundCleanup stops the background cleanup goroutine and waits
// for it to exit.
func (s *ReconcileService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}

	close(s.cleanupStop)
	<-s.cleanupDone
	s.cleanupStop = nil
}
