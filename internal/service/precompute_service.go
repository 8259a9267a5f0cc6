package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/dto"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
	"github.com/noah-isme/sma-grading-api/pkg/jobs"
)

const (
	precomputeJobType  = "ranking_precompute"
	precomputeRetained = time.Hour
)

// PrecomputeConfig tunes the precompute worker pool.
type PrecomputeConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
	BufferSize int
}

// PrecomputeService warms the ranking cache in the background.
type PrecomputeService struct {
	rankings  rankingSource
	queue     *jobs.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*dto.PrecomputeJob
}

// NewPrecomputeService builds the service and its queue. Call Start before Enqueue.
func NewPrecomputeService(rankings rankingSource, cfg PrecomputeConfig, metrics *MetricsService, logger *zap.Logger) *PrecomputeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PrecomputeService{
		rankings:  rankings,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		jobs:      make(map[string]*dto.PrecomputeJob),
	}
	s.queue = jobs.NewQueue("ranking-precompute", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		OnDone:     s.finish,
		Logger:     logger,
	})
	return s
}

// Start launches the workers.
func (s *PrecomputeService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for running jobs to return.
func (s *PrecomputeService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules ranking computation for every requested cohort (the
// whole exam when none is given).
func (s *PrecomputeService) Enqueue(ctx context.Context, req dto.PrecomputeRequest) (*dto.PrecomputeJob, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid precompute request")
	}
	if len(req.Cohorts) == 0 {
		req.Cohorts = []dto.CohortScope{{}}
	}

	status := &dto.PrecomputeJob{
		JobID:      uuid.NewString(),
		ExamID:     req.ExamID,
		Status:     dto.PrecomputeQueued,
		Cohorts:    len(req.Cohorts),
		EnqueuedAt: s.now(),
	}
	s.mu.Lock()
	s.pruneLocked()
	s.jobs[status.JobID] = status
	snapshot := *status
	s.mu.Unlock()

	err := s.queue.TryEnqueue(jobs.Job{ID: status.JobID, Type: precomputeJobType, Payload: req, Enqueued: status.EnqueuedAt})
	if err != nil {
		s.mu.Lock()
		delete(s.jobs, status.JobID)
		s.mu.Unlock()
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "precompute queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "precompute queue unavailable")
	}

	s.metrics.RecordJob(dto.PrecomputeQueued)
	s.logger.Info("ranking precompute queued", zap.String("job_id", status.JobID), zap.String("exam_id", req.ExamID), zap.Int("cohorts", status.Cohorts))
	return &snapshot, nil
}

// Status returns a copy of a job's current state.
func (s *PrecomputeService) Status(jobID string) (*dto.PrecomputeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "precompute job not found")
	}
	snapshot := *job
	return &snapshot, nil
}

func (s *PrecomputeService) handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.PrecomputeRequest)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	s.setStatus(job.ID, dto.PrecomputeRunning, nil)

	for _, scope := range req.Cohorts {
		_, err := s.rankings.CohortRanking(ctx, dto.CohortRankingRequest{
			ExamID:   req.ExamID,
			ClassID:  scope.ClassID,
			StreamID: scope.StreamID,
			RankBy:   req.RankBy,
			Refresh:  true,
		})
		if err != nil {
			return fmt.Errorf("rank exam %s class %q stream %q: %w", req.ExamID, scope.ClassID, scope.StreamID, err)
		}
	}
	return nil
}

func (s *PrecomputeService) finish(job jobs.Job, err error) {
	status := dto.PrecomputeCompleted
	if err != nil {
		status = dto.PrecomputeFailed
	}
	s.setStatus(job.ID, status, err)
	s.metrics.RecordJob(status)
}

func (s *PrecomputeService) setStatus(jobID, status string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	if err != nil {
		job.Error = err.Error()
	}
	if status == dto.PrecomputeCompleted || status == dto.PrecomputeFailed {
		finished := s.now()
		job.FinishedAt = &finished
	}
}

func (s *PrecomputeService) pruneLocked() {
	cutoff := s.now().Add(-precomputeRetained)
	for id, job := range s.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
