package models

import (
	"time"
)

type LeadStatus string

const (
	LeadStatusQueued     LeadStatus = "queued"
	LeadStatusOffered    LeadStatus = "offered"
	LeadStatusAccepted   LeadStatus = "accepted"
	LeadStatusDeclined   LeadStatus = "declined"
	LeadStatusExpired    LeadStatus = "expired"
	LeadStatusSuperseded LeadStatus = "superseded"
)

// Lead is one ranked, priced offer of a job to a plumber. Only one lead per
// job is offered at a time; the rest wait in rank order.
type Lead struct {
	ID              string     `db:"id" json:"id"`
	JobID           int64      `db:"job_id" json:"job_id"`
	PlumberID       int64      `db:"plumber_id" json:"plumber_id"`
	Ranking         int        `db:"ranking" json:"ranking"`
	Score           float64    `db:"score" json:"score"`
	DistanceKM      float64    `db:"distance_km" json:"distance_km"`
	TravelMinutes   int        `db:"travel_minutes" json:"travel_minutes"`
	FinderFee       float64    `db:"finder_fee" json:"finder_fee"`
	CustomerTotal   float64    `db:"customer_total" json:"customer_total"`
	PlumberEarnings float64    `db:"plumber_earnings" json:"plumber_earnings"`
	PriceLow        float64    `db:"price_low" json:"price_low"`
	PriceHigh       float64    `db:"price_high" json:"price_high"`
	Reasoning       RawJSON    `db:"reasoning" json:"reasoning,omitempty"`
	Breakdown       RawJSON    `db:"breakdown" json:"breakdown,omitempty"`
	Status          LeadStatus `db:"status" json:"status"`
	OfferedAt       *time.Time `db:"offered_at" json:"offered_at,omitempty"`
	ExpiresAt       *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	RespondedAt     *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

func (l *Lead) IsOpen() bool {
	return l.Status == LeadStatusOffered
}

func (l *Lead) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// LeadOffer is a lead joined with the job and plumber it concerns, which is
// what notifications and the bot render
type LeadOffer struct {
	Lead    Lead
	Job     Job
	Plumber Plumber
}

type TransactionKind string

const (
	TransactionLeadFee TransactionKind = "lead_fee"
	TransactionTopUp   TransactionKind = "top_up"
	TransactionRefund  TransactionKind = "refund"
)

// CreditTransaction is one row of a plumber's credit ledger. Amount is
// negative for charges.
type CreditTransaction struct {
	ID           int64           `db:"id" json:"id"`
	PlumberID    int64           `db:"plumber_id" json:"plumber_id"`
	LeadID       *string         `db:"lead_id" json:"lead_id,omitempty"`
	Kind         TransactionKind `db:"kind" json:"kind"`
	Amount       float64         `db:"amount" json:"amount"`
	BalanceAfter float64         `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Acceptance is the outcome of a successful lead acceptance
type Acceptance struct {
	Lead       Lead
	Job        Job
	Plumber    Plumber
	Charged    float64
	NewBalance float64
}
