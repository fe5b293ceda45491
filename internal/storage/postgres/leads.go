package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/models"
)

var leadColumns = []string{
	"id", "job_id", "plumber_id", "ranking", "score", "distance_km", "travel_minutes",
	"finder_fee", "customer_total", "plumber_earnings", "price_low", "price_high",
	"reasoning", "breakdown", "status", "created_at",
}

// InsertLeads stores a job's ranked leads in one statement
func (s *Store) InsertLeads(ctx context.Context, leads []models.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	stmt := s.sess.InsertInto("leads").Columns(leadColumns...)
	for i := range leads {
		stmt.Record(&leads[i])
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		s.logger.Error("failed to insert leads",
			zap.Int64("job_id", leads[0].JobID),
			zap.Int("count", len(leads)),
			zap.Error(err),
		)
		return fmt.Errorf("insert leads: %w", err)
	}

	return nil
}

func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead

	err := s.sess.
		Select("*").
		From("leads").
		Where("id = ?", id).
		LoadOneContext(ctx, &lead)

	if err == dbr.ErrNotFound {
		return nil, nil
	}

	if err != nil {
		s.logger.Error("failed to get lead",
			zap.String("lead_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get lead: %w", err)
	}

	return &lead, nil
}

// NextQueuedLead is the best ranked lead of the job still waiting its turn
func (s *Store) NextQueuedLead(ctx context.Context, jobID int64) (*models.Lead, error) {
	var lead models.Lead

	err := s.sess.
		Select("*").
		From("leads").
		Where("job_id = ? AND status = ?", jobID, models.LeadStatusQueued).
		OrderAsc("ranking").
		Limit(1).
		LoadOneContext(ctx, &lead)

	if err == dbr.ErrNotFound {
		return nil, nil
	}

	if err != nil {
		s.logger.Error("failed to get next queued lead",
			zap.Int64("job_id", jobID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get next queued lead: %w", err)
	}

	return &lead, nil
}

func (s *Store) OfferLead(ctx context.Context, leadID string, offeredAt, expiresAt time.Time) error {
	res, err := s.sess.
		Update("leads").
		Set("status", models.LeadStatusOffered).
		Set("offered_at", offeredAt).
		Set("expires_at", expiresAt).
		Where("id = ? AND status = ?", leadID, models.LeadStatusQueued).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to offer lead",
			zap.String("lead_id", leadID),
			zap.Error(err),
		)
		return fmt.Errorf("offer lead: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("offer lead %s: %w", leadID, models.ErrNotFound)
	}

	return nil
}

// CloseLead ends a lead that is queued or on offer. Anything already
// answered gives models.ErrLeadNotOffered.
func (s *Store) CloseLead(ctx context.Context, leadID string, status models.LeadStatus, at time.Time) error {
	res, err := s.sess.
		Update("leads").
		Set("status", status).
		Set("responded_at", at).
		Where("id = ? AND status IN ?", leadID, openStatuses()).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to close lead",
			zap.String("lead_id", leadID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return fmt.Errorf("close lead: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrLeadNotOffered
	}

	return nil
}

func (s *Store) ExpiredOffers(ctx context.Context, now time.Time) ([]models.Lead, error) {
	var leads []models.Lead

	_, err := s.sess.
		Select("*").
		From("leads").
		Where("status = ? AND expires_at <= ?", models.LeadStatusOffered, now).
		OrderAsc("expires_at").
		LoadContext(ctx, &leads)

	if err != nil {
		s.logger.Error("failed to get expired offers", zap.Error(err))
		return nil, fmt.Errorf("get expired offers: %w", err)
	}

	return leads, nil
}

// OfferedLeads returns the plumber's open offers with their jobs
func (s *Store) OfferedLeads(ctx context.Context, plumberID int64) ([]models.LeadOffer, error) {
	var leads []models.Lead

	_, err := s.sess.
		Select("*").
		From("leads").
		Where("plumber_id = ? AND status = ?", plumberID, models.LeadStatusOffered).
		OrderAsc("expires_at").
		LoadContext(ctx, &leads)

	if err != nil {
		s.logger.Error("failed to get offered leads",
			zap.Int64("plumber_id", plumberID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get offered leads: %w", err)
	}

	offers := make([]models.LeadOffer, 0, len(leads))
	for _, lead := range leads {
		job, err := s.GetJob(ctx, lead.JobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			continue
		}
		offers = append(offers, models.LeadOffer{Lead: lead, Job: *job})
	}

	return offers, nil
}

func openStatuses() []string {
	return []string{string(models.LeadStatusQueued), string(models.LeadStatusOffered)}
}
