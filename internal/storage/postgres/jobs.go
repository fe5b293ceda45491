package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/models"
)

// PendingJobs returns up to limit jobs waiting for dispatch, oldest first
func (s *Store) PendingJobs(ctx context.Context, limit int) ([]models.Job, error) {
	var jobs []models.Job

	_, err := s.sess.
		Select("*").
		From("jobs").
		Where("status = ?", models.JobStatusPending).
		OrderAsc("created_at").
		Limit(uint64(limit)).
		LoadContext(ctx, &jobs)

	if err != nil {
		s.logger.Error("failed to get pending jobs", zap.Error(err))
		return nil, fmt.Errorf("get pending jobs: %w", err)
	}

	return jobs, nil
}

func (s *Store) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	var job models.Job

	err := s.sess.
		Select("*").
		From("jobs").
		Where("id = ?", id).
		LoadOneContext(ctx, &job)

	if err == dbr.ErrNotFound {
		return nil, nil
	}

	if err != nil {
		s.logger.Error("failed to get job",
			zap.Int64("job_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get job: %w", err)
	}

	return &job, nil
}

func (s *Store) UpdateJobClassification(ctx context.Context, job *models.Job) error {
	_, err := s.sess.
		Update("jobs").
		Set("job_type", job.JobType).
		Set("urgency", job.Urgency).
		Set("complexity", job.Complexity).
		Set("estimated_hours", job.EstimatedHours).
		Set("estimated_parts_cost", job.EstimatedPartsCost).
		Set("gas_safe_required", job.GasSafeRequired).
		Set("confidence", job.Confidence).
		Set("updated_at", time.Now()).
		Where("id = ?", job.ID).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to update job classification",
			zap.Int64("job_id", job.ID),
			zap.Error(err),
		)
		return fmt.Errorf("update job classification: %w", err)
	}

	return nil
}

func (s *Store) SetJobStatus(ctx context.Context, jobID int64, status models.JobStatus) error {
	res, err := s.sess.
		Update("jobs").
		Set("status", status).
		Set("updated_at", time.Now()).
		Where("id = ?", jobID).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to set job status",
			zap.Int64("job_id", jobID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return fmt.Errorf("set job status: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}

	s.logger.Debug("job status updated",
		zap.Int64("job_id", jobID),
		zap.String("status", string(status)),
	)

	return nil
}
