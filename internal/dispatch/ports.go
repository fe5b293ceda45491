package dispatch

import (
	"context"
	"time"

	"github.com/wilesp/plumbflow-platform/internal/models"
	"github.com/wilesp/plumbflow-platform/internal/pricing"
)

// Store is the persistence the service needs. Lookups return nil, nil when
// the row does not exist.
type Store interface {
	PendingJobs(ctx context.Context, limit int) ([]models.Job, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	UpdateJobClassification(ctx context.Context, job *models.Job) error
	SetJobStatus(ctx context.Context, jobID int64, status models.JobStatus) error

	ActivePlumbers(ctx context.Context) ([]models.Plumber, error)
	GetPlumber(ctx context.Context, id int64) (*models.Plumber, error)
	GetPlumberByTelegramID(ctx context.Context, telegramID int64) (*models.Plumber, error)

	InsertLeads(ctx context.Context, leads []models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	NextQueuedLead(ctx context.Context, jobID int64) (*models.Lead, error)
	OfferLead(ctx context.Context, leadID string, offeredAt, expiresAt time.Time) error
	// CloseLead moves an offered lead to status; models.ErrLeadNotOffered
	// when it is no longer on offer
	CloseLead(ctx context.Context, leadID string, status models.LeadStatus, at time.Time) error
	ExpiredOffers(ctx context.Context, now time.Time) ([]models.Lead, error)

	// AcceptLead charges the lead's finder fee and assigns the job in one
	// transaction
	AcceptLead(ctx context.Context, leadID string, plumberID int64, at time.Time) (*models.Acceptance, error)
}

type Notifier interface {
	NotifyLeadOffer(ctx context.Context, offer *models.LeadOffer) error
	NotifyAcceptance(ctx context.Context, acc *models.Acceptance) error
	NotifyLowCredit(ctx context.Context, plumber *models.Plumber, balance float64) error
	NotifyOfferExpired(ctx context.Context, offer *models.LeadOffer) error
}

type QuoteCache interface {
	SetQuote(ctx context.Context, leadID string, quote *pricing.Breakdown, ttl time.Duration) error
	GetQuote(ctx context.Context, leadID string) (*pricing.Breakdown, error)
	DeleteQuote(ctx context.Context, leadID string) error
}

// Locker guards work that must not overlap across processes
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}
