package dispatch

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/models"
	"github.com/wilesp/plumbflow-platform/internal/pricing"
)

// AcceptLead settles an offered lead for the plumber behind telegramID. The
// finder's fee comes off their credit balance and the job is theirs.
func (s *Service) AcceptLead(ctx context.Context, leadID string, telegramID int64) (*models.Acceptance, error) {
	p, lead, err := s.ownedOffer(ctx, leadID, telegramID)
	if err != nil {
		return nil, err
	}

	if p.CreditBalance < lead.FinderFee {
		return nil, models.ErrInsufficientCredits
	}

	acc, err := s.store.AcceptLead(ctx, lead.ID, p.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("accept lead %s: %w", lead.ID, err)
	}

	s.logger.Info("lead accepted",
		zap.String("lead_id", lead.ID),
		zap.Int64("job_id", lead.JobID),
		zap.Int64("plumber_id", p.ID),
		zap.Float64("charged", acc.Charged),
		zap.Float64("balance", acc.NewBalance),
	)
	s.dropQuote(ctx, lead.ID)

	if err := s.notifier.NotifyAcceptance(ctx, acc); err != nil {
		s.logger.Error("failed to send acceptance confirmation",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}

	if acc.NewBalance <= s.config.LowCreditThreshold {
		if err := s.notifier.NotifyLowCredit(ctx, &acc.Plumber, acc.NewBalance); err != nil {
			s.logger.Error("failed to send low credit warning",
				zap.Int64("plumber_id", p.ID),
				zap.Error(err),
			)
		}
	}

	return acc, nil
}

// DeclineLead closes the plumber's offer and moves it to the next ranked
// plumber. It returns the lead offered next, nil when none was left.
func (s *Service) DeclineLead(ctx context.Context, leadID string, telegramID int64) (*models.Lead, error) {
	p, lead, err := s.ownedOffer(ctx, leadID, telegramID)
	if err != nil {
		return nil, err
	}

	if err := s.store.CloseLead(ctx, lead.ID, models.LeadStatusDeclined, s.now()); err != nil {
		return nil, fmt.Errorf("decline lead %s: %w", lead.ID, err)
	}

	s.logger.Info("lead declined",
		zap.String("lead_id", lead.ID),
		zap.Int64("job_id", lead.JobID),
		zap.Int64("plumber_id", p.ID),
	)
	s.dropQuote(ctx, lead.ID)

	return s.advance(ctx, lead.JobID)
}

// ExpireOffers closes offers past their deadline and passes each job on. It
// returns how many offers were expired.
func (s *Service) ExpireOffers(ctx context.Context) (int, error) {
	ok, err := s.locker.TryLock(ctx, ExpiryLock, s.config.ExpiryInterval)
	if err != nil {
		return 0, fmt.Errorf("acquire expiry lock: %w", err)
	}
	if !ok {
		return 0, nil
	}
	defer s.unlock(ExpiryLock)

	now := s.now()
	leads, err := s.store.ExpiredOffers(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load expired offers: %w", err)
	}

	expired := 0
	for i := range leads {
		lead := &leads[i]

		err := s.store.CloseLead(ctx, lead.ID, models.LeadStatusExpired, now)
		if errors.Is(err, models.ErrLeadNotOffered) {
			// answered in the meantime
			continue
		}
		if err != nil {
			s.logger.Error("failed to expire lead", zap.String("lead_id", lead.ID), zap.Error(err))
			continue
		}
		expired++
		lead.Status = models.LeadStatusExpired
		s.dropQuote(ctx, lead.ID)

		s.notifyExpired(ctx, lead)

		if _, err := s.advance(ctx, lead.JobID); err != nil {
			s.logger.Error("failed to pass job on after expiry",
				zap.Int64("job_id", lead.JobID),
				zap.Error(err),
			)
		}
	}

	if expired > 0 {
		s.logger.Info("expired lead offers", zap.Int("count", expired))
	}

	return expired, nil
}

// Quote returns the pricing breakdown for a lead, from the cache when it is
// still there
func (s *Service) Quote(ctx context.Context, lead *models.Lead) (*pricing.Breakdown, error) {
	quote, err := s.quotes.GetQuote(ctx, lead.ID)
	if err == nil {
		return quote, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("failed to read cached quote", zap.String("lead_id", lead.ID), zap.Error(err))
	}

	if len(lead.Breakdown) == 0 {
		return nil, models.ErrNotFound
	}

	var b pricing.Breakdown
	if err := json.Unmarshal(lead.Breakdown, &b); err != nil {
		return nil, fmt.Errorf("decode breakdown for lead %s: %w", lead.ID, err)
	}
	return &b, nil
}

// advance offers the job's next queued lead, skipping plumbers that are no
// longer active. With nothing left the job is unmatched.
func (s *Service) advance(ctx context.Context, jobID int64) (*models.Lead, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", jobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", jobID, models.ErrNotFound)
	}

	for {
		next, err := s.store.NextQueuedLead(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("next lead for job %d: %w", jobID, err)
		}

		if next == nil {
			if err := s.store.SetJobStatus(ctx, jobID, models.JobStatusUnmatched); err != nil {
				return nil, fmt.Errorf("set job %d unmatched: %w", jobID, err)
			}
			s.logger.Info("no plumbers left for job", zap.Int64("job_id", jobID))
			return nil, nil
		}

		p, err := s.store.GetPlumber(ctx, next.PlumberID)
		if err != nil {
			return nil, fmt.Errorf("get plumber %d: %w", next.PlumberID, err)
		}

		if p == nil || p.Status != models.PlumberStatusActive {
			if err := s.store.CloseLead(ctx, next.ID, models.LeadStatusSuperseded, s.now()); err != nil {
				return nil, fmt.Errorf("drop lead %s: %w", next.ID, err)
			}
			continue
		}

		quote, err := s.Quote(ctx, next)
		if err != nil {
			s.logger.Warn("offering lead without quote", zap.String("lead_id", next.ID), zap.Error(err))
		}

		if err := s.offer(ctx, job, next, p, quote); err != nil {
			return nil, err
		}
		return next, nil
	}
}

func (s *Service) ownedOffer(ctx context.Context, leadID string, telegramID int64) (*models.Plumber, *models.Lead, error) {
	p, err := s.store.GetPlumberByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, nil, fmt.Errorf("get plumber: %w", err)
	}
	if p == nil {
		return nil, nil, fmt.Errorf("plumber with telegram id %d: %w", telegramID, models.ErrNotFound)
	}

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, nil, fmt.Errorf("get lead: %w", err)
	}
	if lead == nil {
		return nil, nil, fmt.Errorf("lead %s: %w", leadID, models.ErrNotFound)
	}

	if lead.PlumberID != p.ID {
		return nil, nil, models.ErrWrongPlumber
	}
	if !lead.IsOpen() {
		return nil, nil, models.ErrLeadNotOffered
	}
	if lead.Expired(s.now()) {
		return nil, nil, models.ErrLeadExpired
	}

	return p, lead, nil
}

// dropQuote evicts the cached quote of a lead that is no longer on offer
func (s *Service) dropQuote(ctx context.Context, leadID string) {
	if err := s.quotes.DeleteQuote(ctx, leadID); err != nil {
		s.logger.Warn("failed to evict cached quote", zap.String("lead_id", leadID), zap.Error(err))
	}
}

func (s *Service) notifyExpired(ctx context.Context, lead *models.Lead) {
	job, err := s.store.GetJob(ctx, lead.JobID)
	if err != nil || job == nil {
		return
	}
	p, err := s.store.GetPlumber(ctx, lead.PlumberID)
	if err != nil || p == nil {
		return
	}

	if err := s.notifier.NotifyOfferExpired(ctx, &models.LeadOffer{Lead: *lead, Job: *job, Plumber: *p}); err != nil {
		s.logger.Warn("failed to send expiry notice",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}
}
