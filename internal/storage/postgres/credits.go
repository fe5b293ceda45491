package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/models"
)

// AcceptLead charges the lead's finder fee and hands the job to the plumber.
// The lead and plumber rows are locked for the whole transaction, so a
// failed check leaves the balance, the ledger and every lead untouched.
func (s *Store) AcceptLead(ctx context.Context, leadID string, plumberID int64, at time.Time) (*models.Acceptance, error) {
	var acc models.Acceptance

	err := s.inTx(ctx, func(tx *dbr.Tx) error {
		var lead models.Lead
		err := tx.SelectBySql("SELECT * FROM leads WHERE id = ? FOR UPDATE", leadID).
			LoadOneContext(ctx, &lead)
		if err == dbr.ErrNotFound {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock lead: %w", err)
		}

		switch {
		case lead.PlumberID != plumberID:
			return models.ErrWrongPlumber
		case lead.Status != models.LeadStatusOffered:
			return models.ErrLeadNotOffered
		case lead.Expired(at):
			return models.ErrLeadExpired
		}

		var p models.Plumber
		err = tx.SelectBySql("SELECT * FROM plumbers WHERE id = ? FOR UPDATE", plumberID).
			LoadOneContext(ctx, &p)
		if err == dbr.ErrNotFound {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock plumber: %w", err)
		}

		if p.CreditBalance < lead.FinderFee {
			return models.ErrInsufficientCredits
		}
		balance := math.Round((p.CreditBalance-lead.FinderFee)*100) / 100

		_, err = tx.Update("plumbers").
			Set("credit_balance", balance).
			Set("current_jobs_count", dbr.Expr("current_jobs_count + 1")).
			Where("id = ?", p.ID).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("charge plumber: %w", err)
		}

		_, err = tx.InsertInto("credit_transactions").
			Columns("plumber_id", "lead_id", "kind", "amount", "balance_after", "created_at").
			Values(p.ID, lead.ID, models.TransactionLeadFee, -lead.FinderFee, balance, at).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		_, err = tx.Update("leads").
			Set("status", models.LeadStatusAccepted).
			Set("responded_at", at).
			Where("id = ?", lead.ID).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("mark lead accepted: %w", err)
		}

		_, err = tx.Update("leads").
			Set("status", models.LeadStatusSuperseded).
			Set("responded_at", at).
			Where("job_id = ? AND id <> ? AND status IN ?", lead.JobID, lead.ID, openStatuses()).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("supersede sibling leads: %w", err)
		}

		_, err = tx.Update("jobs").
			Set("status", models.JobStatusAssigned).
			Set("updated_at", at).
			Where("id = ?", lead.JobID).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("assign job: %w", err)
		}

		var job models.Job
		err = tx.Select("*").From("jobs").Where("id = ?", lead.JobID).LoadOneContext(ctx, &job)
		if err != nil {
			return fmt.Errorf("reload job: %w", err)
		}

		lead.Status = models.LeadStatusAccepted
		lead.RespondedAt = &at
		p.CreditBalance = balance
		p.CurrentJobsCount++

		acc = models.Acceptance{
			Lead:       lead,
			Job:        job,
			Plumber:    p,
			Charged:    lead.FinderFee,
			NewBalance: balance,
		}
		return nil
	})

	if err != nil {
		s.logger.Warn("lead acceptance failed",
			zap.String("lead_id", leadID),
			zap.Int64("plumber_id", plumberID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("lead fee charged",
		zap.String("lead_id", leadID),
		zap.Int64("plumber_id", plumberID),
		zap.Float64("fee", acc.Charged),
		zap.Float64("balance", acc.NewBalance),
	)

	return &acc, nil
}

// RecentTransactions is the newest part of the plumber's credit ledger
func (s *Store) RecentTransactions(ctx context.Context, plumberID int64, limit int) ([]models.CreditTransaction, error) {
	var txs []models.CreditTransaction

	_, err := s.sess.
		Select("*").
		From("credit_transactions").
		Where("plumber_id = ?", plumberID).
		OrderDesc("created_at").
		Limit(uint64(limit)).
		LoadContext(ctx, &txs)

	if err != nil {
		s.logger.Error("failed to get credit transactions",
			zap.Int64("plumber_id", plumberID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get credit transactions: %w", err)
	}

	return txs, nil
}
