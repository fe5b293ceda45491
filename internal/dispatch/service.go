// Package dispatch runs the lead pipeline: classify a job, rank plumbers,
// price each match, offer the lead to one plumber at a time and settle the
// finder's fee when a plumber accepts.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/classifier"
	"github.com/wilesp/plumbflow-platform/internal/config"
	"github.com/wilesp/plumbflow-platform/internal/matching"
	"github.com/wilesp/plumbflow-platform/internal/models"
	"github.com/wilesp/plumbflow-platform/internal/pricing"
)

const (
	DispatchLock = "dispatch"
	ExpiryLock   = "expiry"
)

// Result is what happened to one job
type Result struct {
	JobID   int64
	Status  models.JobStatus
	Leads   int
	Offered *models.Lead
}

type CycleStats struct {
	Skipped       bool
	Jobs          int
	Matched       int
	Unmatched     int
	LowConfidence int
	Invalid       int
	Failed        int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	store      Store
	notifier   Notifier
	quotes     QuoteCache
	locker     Locker
	classifier classifier.JobClassifier
	matcher    *matching.Matcher
	calculator *pricing.Calculator
	config     *config.Config
	logger     *zap.Logger
	now        func() time.Time
}

func New(
	store Store,
	notifier Notifier,
	quotes QuoteCache,
	locker Locker,
	jobClassifier classifier.JobClassifier,
	matcher *matching.Matcher,
	calculator *pricing.Calculator,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:      store,
		notifier:   notifier,
		quotes:     quotes,
		locker:     locker,
		classifier: jobClassifier,
		matcher:    matcher,
		calculator: calculator,
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle dispatches a batch of pending jobs. Only one cycle runs at a time
// across all processes sharing the lock.
func (s *Service) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	ok, err := s.locker.TryLock(ctx, DispatchLock, s.config.DispatchInterval)
	if err != nil {
		return stats, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		s.logger.Debug("dispatch cycle already running elsewhere")
		stats.Skipped = true
		return stats, nil
	}
	defer s.unlock(DispatchLock)

	jobs, err := s.store.PendingJobs(ctx, s.config.MaxJobsPerCycle)
	if err != nil {
		return stats, fmt.Errorf("load pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		s.logger.Debug("no pending jobs")
		return stats, nil
	}

	s.logger.Info("dispatching pending jobs", zap.Int("count", len(jobs)))

	for i := range jobs {
		stats.Jobs++

		res, err := s.DispatchJob(ctx, &jobs[i])
		if err != nil {
			stats.Failed++
			s.logger.Error("failed to dispatch job",
				zap.Int64("job_id", jobs[i].ID),
				zap.Error(err),
			)
			continue
		}

		switch res.Status {
		case models.JobStatusMatched:
			stats.Matched++
		case models.JobStatusUnmatched:
			stats.Unmatched++
		case models.JobStatusSkipped:
			stats.LowConfidence++
		case models.JobStatusInvalid:
			stats.Invalid++
		}
	}

	s.logger.Info("dispatch cycle finished",
		zap.Int("jobs", stats.Jobs),
		zap.Int("matched", stats.Matched),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("low_confidence", stats.LowConfidence),
		zap.Int("invalid", stats.Invalid),
		zap.Int("failed", stats.Failed),
	)

	return stats, nil
}

// DispatchJob classifies the job when needed, ranks and prices plumbers for
// it, stores the leads and offers the best one. A job that fails validation
// is marked invalid rather than returned as an error, so it leaves the
// pending queue.
func (s *Service) DispatchJob(ctx context.Context, job *models.Job) (*Result, error) {
	if !job.IsClassified() {
		if err := s.classify(ctx, job); err != nil {
			return nil, err
		}
	}

	if err := job.Validate(); err != nil {
		return s.reject(ctx, job, err)
	}

	if job.Confidence < s.config.MinClassConfidence {
		s.logger.Info("job classification below confidence floor",
			zap.Int64("job_id", job.ID),
			zap.Float64("confidence", job.Confidence),
		)
		return s.finish(ctx, job, models.JobStatusSkipped, 0, nil)
	}

	plumbers, err := s.store.ActivePlumbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load plumbers: %w", err)
	}

	candidates := make([]models.Plumber, 0, len(plumbers))
	byID := make(map[int64]*models.Plumber, len(plumbers))
	for i := range plumbers {
		p := &plumbers[i]
		if err := p.Validate(); err != nil {
			s.logger.Warn("skipping malformed plumber record",
				zap.Int64("plumber_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, *p)
		byID[p.ID] = p
	}

	matches, err := s.matcher.FindMatches(job, candidates, s.config.MatchesPerJob)
	if err != nil {
		var verr *models.ValidationError
		var candErr *matching.CandidateError
		if errors.As(err, &verr) && !errors.As(err, &candErr) {
			return s.reject(ctx, job, err)
		}
		return nil, fmt.Errorf("find matches: %w", err)
	}

	leads := make([]models.Lead, 0, len(matches))
	quotes := make(map[string]*pricing.Breakdown, len(matches))
	for i := range matches {
		m := &matches[i]

		lead, quote, err := s.price(job, m, byID[m.PlumberID])
		if err != nil {
			var certErr *pricing.CertificationRequiredError
			if errors.As(err, &certErr) {
				s.logger.Warn("match needs gas safe certification",
					zap.Int64("job_id", job.ID),
					zap.Int64("plumber_id", m.PlumberID),
				)
			} else {
				s.logger.Error("failed to price match",
					zap.Int64("job_id", job.ID),
					zap.Int64("plumber_id", m.PlumberID),
					zap.Error(err),
				)
			}
			continue
		}

		leads = append(leads, *lead)
		quotes[lead.ID] = quote
	}

	if len(leads) == 0 {
		s.logger.Info("no plumber matched job",
			zap.Int64("job_id", job.ID),
			zap.String("job_type", job.JobType),
			zap.String("postcode", job.Postcode),
		)
		return s.finish(ctx, job, models.JobStatusUnmatched, 0, nil)
	}

	if err := s.store.InsertLeads(ctx, leads); err != nil {
		return nil, fmt.Errorf("save leads: %w", err)
	}

	first := &leads[0]
	if err := s.offer(ctx, job, first, byID[first.PlumberID], quotes[first.ID]); err != nil {
		return nil, err
	}

	return s.finish(ctx, job, models.JobStatusMatched, len(leads), first)
}

func (s *Service) classify(ctx context.Context, job *models.Job) error {
	text := strings.TrimSpace(job.Title + " " + job.Description)

	c, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return fmt.Errorf("classify job %d: %w", job.ID, err)
	}
	c.Apply(job)

	if err := s.store.UpdateJobClassification(ctx, job); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}

	s.logger.Debug("job classified",
		zap.Int64("job_id", job.ID),
		zap.String("job_type", job.JobType),
		zap.String("urgency", string(job.Urgency)),
		zap.Float64("confidence", job.Confidence),
	)

	return nil
}

func (s *Service) price(job *models.Job, m *matching.Match, p *models.Plumber) (*models.Lead, *pricing.Breakdown, error) {
	route := m.Route()

	quote, err := s.calculator.Calculate(job.Analysis(), p.RateProfile(), job.Postcode, &route)
	if err != nil {
		return nil, nil, err
	}

	reasoning, err := json.Marshal(m.Reasoning)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal reasoning: %w", err)
	}

	breakdown, err := json.Marshal(quote)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal breakdown: %w", err)
	}

	return &models.Lead{
		ID:              uuid.NewString(),
		JobID:           job.ID,
		PlumberID:       m.PlumberID,
		Ranking:         m.Ranking,
		Score:           m.Score,
		DistanceKM:      m.DistanceKM,
		TravelMinutes:   m.TravelMinutes,
		FinderFee:       quote.FinderFee,
		CustomerTotal:   quote.CustomerTotal,
		PlumberEarnings: quote.PlumberEarnings,
		PriceLow:        quote.PriceLow,
		PriceHigh:       quote.PriceHigh,
		Reasoning:       reasoning,
		Breakdown:       breakdown,
		Status:          models.LeadStatusQueued,
		CreatedAt:       s.now(),
	}, quote, nil
}

// offer puts the lead in front of its plumber. Cache and notification
// failures are logged; the offer stands either way.
func (s *Service) offer(ctx context.Context, job *models.Job, lead *models.Lead, p *models.Plumber, quote *pricing.Breakdown) error {
	now := s.now()
	expires := now.Add(s.config.OfferTTL)

	if err := s.store.OfferLead(ctx, lead.ID, now, expires); err != nil {
		return fmt.Errorf("offer lead %s: %w", lead.ID, err)
	}
	lead.Status = models.LeadStatusOffered
	lead.OfferedAt = &now
	lead.ExpiresAt = &expires

	if quote != nil {
		if err := s.quotes.SetQuote(ctx, lead.ID, quote, s.config.OfferTTL); err != nil {
			s.logger.Warn("failed to cache quote",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
		}
	}

	if err := s.notifier.NotifyLeadOffer(ctx, &models.LeadOffer{Lead: *lead, Job: *job, Plumber: *p}); err != nil {
		s.logger.Error("failed to notify plumber of lead",
			zap.String("lead_id", lead.ID),
			zap.Int64("plumber_id", p.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("lead offered",
		zap.String("lead_id", lead.ID),
		zap.Int64("job_id", job.ID),
		zap.Int64("plumber_id", p.ID),
		zap.Int("ranking", lead.Ranking),
		zap.Float64("finder_fee", lead.FinderFee),
		zap.Time("expires_at", expires),
	)

	return nil
}

func (s *Service) reject(ctx context.Context, job *models.Job, err error) (*Result, error) {
	s.logger.Warn("job failed validation",
		zap.Int64("job_id", job.ID),
		zap.Error(err),
	)
	return s.finish(ctx, job, models.JobStatusInvalid, 0, nil)
}

func (s *Service) finish(ctx context.Context, job *models.Job, status models.JobStatus, leads int, offered *models.Lead) (*Result, error) {
	if err := s.store.SetJobStatus(ctx, job.ID, status); err != nil {
		return nil, fmt.Errorf("set job %d status %s: %w", job.ID, status, err)
	}
	job.Status = status

	return &Result{JobID: job.ID, Status: status, Leads: leads, Offered: offered}, nil
}

func (s *Service) unlock(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.locker.Unlock(ctx, name); err != nil {
		s.logger.Warn("failed to release lock", zap.String("lock", name), zap.Error(err))
	}
}
