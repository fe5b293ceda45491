package models

import (
	"database/sql/driver"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"
)

type PlumberStatus string

const (
	PlumberStatusActive    PlumberStatus = "active"
	PlumberStatusPaused    PlumberStatus = "paused"
	PlumberStatusSuspended PlumberStatus = "suspended"
)

type Priority string

const (
	PriorityPrimary   Priority = "primary"
	PrioritySecondary Priority = "secondary"
	PriorityExtended  Priority = "extended"
)

type ServiceArea struct {
	Prefix      string   `json:"prefix"`
	Priority    Priority `json:"priority"`
	MinJobValue float64  `json:"min_job_value"`
}

type ServiceAreas []ServiceArea

func (s ServiceAreas) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return jsonbValue(s)
}

func (s *ServiceAreas) Scan(value interface{}) error {
	return scanJSONB(value, s)
}

// PerformanceMetrics are computed elsewhere and read-only here
type PerformanceMetrics struct {
	ContactRate        float64 `json:"contact_rate"`
	ConversionRate     float64 `json:"conversion_rate"`
	AverageRating      float64 `json:"average_rating"`
	RatingCount        int     `json:"rating_count"`
	TotalJobsCompleted int     `json:"total_jobs_completed"`
}

func (m PerformanceMetrics) Value() (driver.Value, error) {
	return jsonbValue(m)
}

func (m *PerformanceMetrics) Scan(value interface{}) error {
	return scanJSONB(value, m)
}

type Plumber struct {
	ID               int64              `db:"id" json:"id"`
	Name             string             `db:"name" json:"name"`
	TelegramID       *int64             `db:"telegram_id" json:"telegram_id,omitempty"`
	Phone            *string            `db:"phone" json:"-"`
	Email            *string            `db:"email" json:"-"`
	BasePostcode     string             `db:"base_postcode" json:"base_postcode"`
	HourlyRate       float64            `db:"hourly_rate" json:"hourly_rate"`
	EmergencyRate    float64            `db:"emergency_rate" json:"emergency_rate"`
	MinimumCallout   float64            `db:"minimum_callout" json:"minimum_callout"`
	TravelRate       float64            `db:"travel_rate" json:"travel_rate"`
	GasSafeCertified bool               `db:"gas_safe_certified" json:"gas_safe_certified"`
	Skills           pq.StringArray     `db:"skills" json:"skills"`
	ServiceAreas     ServiceAreas       `db:"service_areas" json:"service_areas"`
	Status           PlumberStatus      `db:"status" json:"status"`
	CreditBalance    float64            `db:"credit_balance" json:"credit_balance"`
	CurrentJobsCount int                `db:"current_jobs_count" json:"current_jobs_count"`
	AvailableToday   bool               `db:"available_today" json:"available_today"`
	Performance      PerformanceMetrics `db:"performance" json:"performance"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
}

func (p *Plumber) HasSkill(jobType string) bool {
	for _, s := range p.Skills {
		if s == jobType {
			return true
		}
	}
	return false
}

// Validate checks the fields the matcher scores on
func (p *Plumber) Validate() error {
	v := validator{entity: "plumber"}

	v.check(p.ID != 0, "id", p.ID, "is required")
	v.check(strings.TrimSpace(p.BasePostcode) != "", "base_postcode", p.BasePostcode, "is required")
	v.check(p.Status != "", "status", p.Status, "is required")
	v.check(!math.IsNaN(p.CreditBalance) && !math.IsInf(p.CreditBalance, 0), "credit_balance", p.CreditBalance, "must be a finite number")
	v.check(p.CurrentJobsCount >= 0, "current_jobs_count", p.CurrentJobsCount, "must not be negative")

	for _, s := range p.Skills {
		v.check(strings.TrimSpace(s) != "", "skills", s, "must not contain empty entries")
	}

	for _, a := range p.ServiceAreas {
		v.check(strings.TrimSpace(a.Prefix) != "", "service_areas.prefix", a.Prefix, "is required")
		switch a.Priority {
		case PriorityPrimary, PrioritySecondary, PriorityExtended:
		default:
			v.check(false, "service_areas.priority", a.Priority, "must be one of primary, secondary, extended")
		}
		v.check(a.MinJobValue >= 0, "service_areas.min_job_value", a.MinJobValue, "must not be negative")
	}

	m := p.Performance
	v.check(m.ContactRate >= 0 && m.ContactRate <= 1, "performance.contact_rate", m.ContactRate, "must be within [0,1]")
	v.check(m.ConversionRate >= 0 && m.ConversionRate <= 1, "performance.conversion_rate", m.ConversionRate, "must be within [0,1]")
	v.check(m.AverageRating >= 0 && m.AverageRating <= 5, "performance.average_rating", m.AverageRating, "must be within [0,5]")

	return v.result()
}

// RateProfile is the slice of a plumber that pricing needs
type RateProfile struct {
	PlumberID        int64
	BasePostcode     string
	HourlyRate       float64
	EmergencyRate    float64
	MinimumCallout   float64
	TravelRate       float64
	GasSafeCertified bool
	Specialties      []string
}

func (p *Plumber) RateProfile() RateProfile {
	return RateProfile{
		PlumberID:        p.ID,
		BasePostcode:     p.BasePostcode,
		HourlyRate:       p.HourlyRate,
		EmergencyRate:    p.EmergencyRate,
		MinimumCallout:   p.MinimumCallout,
		TravelRate:       p.TravelRate,
		GasSafeCertified: p.GasSafeCertified,
		Specialties:      p.Skills,
	}
}

func (r *RateProfile) Validate() error {
	v := validator{entity: "rate profile"}

	v.check(strings.TrimSpace(r.BasePostcode) != "", "base_postcode", r.BasePostcode, "is required")
	v.check(r.HourlyRate > 0, "hourly_rate", r.HourlyRate, "must be positive")
	v.check(r.EmergencyRate > 0, "emergency_rate", r.EmergencyRate, "must be positive")
	v.check(r.MinimumCallout >= 0, "minimum_callout", r.MinimumCallout, "must not be negative")
	v.check(r.TravelRate >= 0, "travel_rate", r.TravelRate, "must not be negative")

	return v.result()
}

func (r *RateProfile) HasSpecialty(jobType string) bool {
	for _, s := range r.Specialties {
		if s == jobType {
			return true
		}
	}
	return false
}
