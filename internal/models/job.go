package models

import (
	"fmt"
	"strings"
	"time"
)

type Urgency string

const (
	UrgencyEmergency Urgency = "emergency"
	UrgencyToday     Urgency = "today"
	UrgencyThisWeek  Urgency = "this_week"
	UrgencyFlexible  Urgency = "flexible"
)

type Complexity string

const (
	ComplexityEasy   Complexity = "easy"
	ComplexityMedium Complexity = "medium"
	ComplexityHard   Complexity = "hard"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusMatched   JobStatus = "matched"
	JobStatusAssigned  JobStatus = "assigned"
	JobStatusUnmatched JobStatus = "unmatched"
	JobStatusSkipped   JobStatus = "skipped"
	// failed validation; kept out of the pending queue until corrected
	JobStatusInvalid   JobStatus = "invalid"
)

func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(s)
	switch u {
	case UrgencyEmergency, UrgencyToday, UrgencyThisWeek, UrgencyFlexible:
		return u, nil
	}
	return "", fmt.Errorf("unknown urgency %q", s)
}

func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(s)
	switch c {
	case ComplexityEasy, ComplexityMedium, ComplexityHard:
		return c, nil
	}
	return "", fmt.Errorf("unknown complexity %q", s)
}

// Job is one unit of requested work, scraped or submitted directly.
// JobType is empty until the job has been classified.
type Job struct {
	ID                 int64      `db:"id" json:"id"`
	Title              string     `db:"title" json:"title"`
	Description        string     `db:"description" json:"description"`
	JobType            string     `db:"job_type" json:"job_type"`
	Postcode           string     `db:"postcode" json:"postcode"`
	Urgency            Urgency    `db:"urgency" json:"urgency"`
	Complexity         Complexity `db:"complexity" json:"complexity"`
	EstimatedValue     float64    `db:"estimated_value" json:"estimated_value"`
	EstimatedHours     float64    `db:"estimated_hours" json:"estimated_hours"`
	EstimatedPartsCost float64    `db:"estimated_parts_cost" json:"estimated_parts_cost"`
	GasSafeRequired    bool       `db:"gas_safe_required" json:"gas_safe_required"`
	Confidence         float64    `db:"confidence" json:"confidence"`
	Details            Details    `db:"details" json:"details,omitempty"`
	HasPhoto           bool       `db:"has_photo" json:"has_photo"`
	Source             string     `db:"source" json:"source"`
	CustomerPhone      *string    `db:"customer_phone" json:"-"`
	CustomerEmail      *string    `db:"customer_email" json:"-"`
	Status             JobStatus  `db:"status" json:"status"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (j *Job) IsClassified() bool {
	return j.JobType != ""
}

// Validate checks the fields matching and pricing rely on
func (j *Job) Validate() error {
	v := validator{entity: "job"}

	v.check(strings.TrimSpace(j.JobType) != "", "job_type", j.JobType, "is required")
	v.check(strings.TrimSpace(j.Postcode) != "", "postcode", j.Postcode, "is required")

	_, err := ParseUrgency(string(j.Urgency))
	v.check(err == nil, "urgency", j.Urgency, "must be one of emergency, today, this_week, flexible")

	_, err = ParseComplexity(string(j.Complexity))
	v.check(err == nil, "complexity", j.Complexity, "must be one of easy, medium, hard")

	v.check(j.EstimatedValue >= 0, "estimated_value", j.EstimatedValue, "must not be negative")
	v.check(j.EstimatedHours >= 0, "estimated_hours", j.EstimatedHours, "must not be negative")
	v.check(j.EstimatedPartsCost >= 0, "estimated_parts_cost", j.EstimatedPartsCost, "must not be negative")

	return v.result()
}

// Analysis projects the job onto the pricing input
func (j *Job) Analysis() JobAnalysis {
	return JobAnalysis{
		JobType:            j.JobType,
		Urgency:            j.Urgency,
		Complexity:         j.Complexity,
		EstimatedHours:     j.EstimatedHours,
		EstimatedPartsCost: j.EstimatedPartsCost,
		GasSafeRequired:    j.GasSafeRequired,
		Confidence:         j.Confidence,
		Description:        j.Description,
		Details:            j.Details,
		HasPhoto:           j.HasPhoto,
	}
}

// PriceBand is a customer-facing low/typical/high estimate
type PriceBand struct {
	Low     float64 `json:"low"`
	Typical float64 `json:"typical"`
	High    float64 `json:"high"`
}

// SpreadPct is (high-low)/typical as a percentage
func (b PriceBand) SpreadPct() float64 {
	if b.Typical == 0 {
		return 0
	}
	return (b.High - b.Low) / b.Typical * 100
}

// JobAnalysis is the classified view of a job that pricing consumes.
// Estimate, when set, is an externally produced band (e.g. a model's guess)
// that replaces the template-derived band before range tightening.
type JobAnalysis struct {
	JobType            string
	Urgency            Urgency
	Complexity         Complexity
	EstimatedHours     float64
	EstimatedPartsCost float64
	GasSafeRequired    bool
	Confidence         float64
	Description        string
	Details            Details
	HasPhoto           bool
	Estimate           *PriceBand
}

func (a *JobAnalysis) Validate() error {
	v := validator{entity: "job analysis"}

	v.check(strings.TrimSpace(a.JobType) != "", "job_type", a.JobType, "is required")

	_, err := ParseUrgency(string(a.Urgency))
	v.check(err == nil, "urgency", a.Urgency, "must be one of emergency, today, this_week, flexible")

	_, err = ParseComplexity(string(a.Complexity))
	v.check(err == nil, "complexity", a.Complexity, "must be one of easy, medium, hard")

	v.check(a.EstimatedHours >= 0, "estimated_hours", a.EstimatedHours, "must not be negative")
	v.check(a.EstimatedPartsCost >= 0, "estimated_parts_cost", a.EstimatedPartsCost, "must not be negative")

	if a.Estimate != nil {
		e := a.Estimate
		v.check(e.Typical > 0, "estimate.typical", e.Typical, "must be positive")
		v.check(e.Low >= 0 && e.Low <= e.Typical, "estimate.low", e.Low, "must be between 0 and typical")
		v.check(e.High >= e.Typical, "estimate.high", e.High, "must not be below typical")
	}

	return v.result()
}
