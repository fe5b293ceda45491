// Package pricing quotes a job for a given plumber: labor, travel and
// materials, a contingency margin, the platform fee and a customer band.
package pricing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wilesp/plumbflow-platform/internal/geo"
	"github.com/wilesp/plumbflow-platform/internal/models"
)

const (
	MarginRate     = 0.12
	FuelCostPerKM  = 0.45
	SameDayBoost   = 1.2
	OffHoursBoost  = 1.25
	SpecialtyBonus = 10.0
)

// CertificationRequiredError is returned when a gas job is quoted for a
// plumber without the certificate. Matching should have filtered the pair.
type CertificationRequiredError struct {
	JobType   string
	PlumberID int64
}

func (e *CertificationRequiredError) Error() string {
	return fmt.Sprintf("plumber %d must be gas safe certified for %s", e.PlumberID, e.JobType)
}

type Labor struct {
	Hours                 float64 `json:"hours"`
	RatePerHour           float64 `json:"rate_per_hour"`
	Cost                  float64 `json:"cost"`
	MinimumCalloutApplied bool    `json:"minimum_callout_applied"`
}

// Travel figures are for the round trip
type Travel struct {
	DistanceKM float64 `json:"distance_km"`
	TimeHours  float64 `json:"time_hours"`
	TimeCost   float64 `json:"time_cost"`
	FuelCost   float64 `json:"fuel_cost"`
	Total      float64 `json:"total_cost"`
}

type Materials struct {
	Cost      float64 `json:"cost"`
	Estimated bool    `json:"estimated"`
}

type Breakdown struct {
	JobType         string            `json:"job_type"`
	KnownTemplate   bool              `json:"known_template"`
	Urgency         models.Urgency    `json:"urgency"`
	Complexity      models.Complexity `json:"complexity"`
	Labor           Labor             `json:"labor"`
	Travel          Travel            `json:"travel"`
	Materials       Materials         `json:"materials"`
	Subtotal        float64           `json:"subtotal"`
	Margin          float64           `json:"margin"`
	MarginPct       float64           `json:"margin_pct"`
	FinderFee       float64           `json:"finder_fee"`
	CustomerTotal   float64           `json:"customer_total"`
	PlumberEarnings float64           `json:"plumber_earnings"`
	PriceLow        float64           `json:"price_low"`
	PriceTypical    float64           `json:"price_typical"`
	PriceHigh       float64           `json:"price_high"`
	RangeTightened  bool              `json:"range_tightened"`
	OriginalSpread  float64           `json:"original_spread_pct"`
	SpreadPct       float64           `json:"spread_pct"`
	Confidence      Confidence        `json:"confidence"`
	ConfidencePts   int               `json:"confidence_points"`
	CalculatedAt    time.Time         `json:"calculated_at"`
}

func (b *Breakdown) Band() models.PriceBand {
	return models.PriceBand{Low: b.PriceLow, Typical: b.PriceTypical, High: b.PriceHigh}
}

type Option func(*Calculator)

// WithClock overrides time.Now, which decides evening and weekend rates
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

type Calculator struct {
	distance geo.DistanceProvider
	now      func() time.Time
}

func New(distance geo.DistanceProvider, opts ...Option) *Calculator {
	if distance == nil {
		distance = geo.PrefixEstimator{}
	}

	c := &Calculator{
		distance: distance,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate prices the job for one plumber. A nil route is estimated from
// the plumber's base postcode.
func (c *Calculator) Calculate(
	analysis models.JobAnalysis,
	profile models.RateProfile,
	jobPostcode string,
	route *geo.Route,
) (*Breakdown, error) {
	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	tmpl, known := LookupTemplate(analysis.JobType, analysis.EstimatedHours)

	// the job's own flag counts for types without a gas card
	if (analysis.GasSafeRequired || tmpl.GasSafeRequired) && !profile.GasSafeCertified {
		return nil, &CertificationRequiredError{JobType: analysis.JobType, PlumberID: profile.PlumberID}
	}

	r, err := c.route(profile.BasePostcode, jobPostcode, route)
	if err != nil {
		return nil, err
	}

	at := c.now()
	rate := EffectiveRate(profile, analysis.Urgency, analysis.JobType, at)

	hours := tmpl.BaseHours * tmpl.multiplier(analysis.Complexity)
	if analysis.EstimatedHours > hours {
		hours = analysis.EstimatedHours
	}

	laborCost := hours * rate
	calloutApplied := false
	if laborCost < profile.MinimumCallout {
		laborCost = profile.MinimumCallout
		hours = laborCost / rate
		calloutApplied = true
	}

	travelHours := r.Hours()
	timeCost := travelHours * rate * 2
	fuelCost := r.KM * FuelCostPerKM * 2
	travelCost := timeCost + fuelCost

	materials := analysis.EstimatedPartsCost
	estimatedParts := false
	if materials <= 0 {
		materials = tmpl.partsMidpoint()
		estimatedParts = true
	}

	subtotal := laborCost + travelCost + materials
	margin := subtotal * MarginRate
	fee := FinderFee(subtotal)
	total := subtotal + margin + fee
	earnings := subtotal + margin

	band := models.PriceBand{
		Low:     round2(total * bandLow),
		Typical: round2(total),
		High:    round2(total * bandHigh),
	}
	if analysis.Estimate != nil {
		band = *analysis.Estimate
	}
	checked := TightenRange(band)

	confidence, points := ScoreConfidence(&analysis, known, checked.SpreadPct)

	return &Breakdown{
		JobType:       analysis.JobType,
		KnownTemplate: known,
		Urgency:       analysis.Urgency,
		Complexity:    analysis.Complexity,
		Labor: Labor{
			Hours:                 round2(hours),
			RatePerHour:           round2(rate),
			Cost:                  round2(laborCost),
			MinimumCalloutApplied: calloutApplied,
		},
		Travel: Travel{
			DistanceKM: round2(r.KM * 2),
			TimeHours:  round2(travelHours * 2),
			TimeCost:   round2(timeCost),
			FuelCost:   round2(fuelCost),
			Total:      round2(travelCost),
		},
		Materials: Materials{
			Cost:      round2(materials),
			Estimated: estimatedParts,
		},
		Subtotal:        round2(subtotal),
		Margin:          round2(margin),
		MarginPct:       MarginRate * 100,
		FinderFee:       round2(fee),
		CustomerTotal:   round2(total),
		PlumberEarnings: round2(earnings),
		PriceLow:        round2(checked.Band.Low),
		PriceTypical:    round2(checked.Band.Typical),
		PriceHigh:       round2(checked.Band.High),
		RangeTightened:  checked.Tightened,
		OriginalSpread:  round2(checked.OriginalSpreadPct),
		SpreadPct:       round2(checked.SpreadPct),
		Confidence:      confidence,
		ConfidencePts:   points,
		CalculatedAt:    at,
	}, nil
}

func (c *Calculator) route(from, to string, given *geo.Route) (geo.Route, error) {
	if given != nil {
		if given.KM < 0 || given.Minutes < 0 {
			return geo.Route{}, &models.ValidationError{
				Entity: "route", Field: "km", Value: given.KM, Message: "must not be negative",
			}
		}
		return *given, nil
	}

	if strings.TrimSpace(to) == "" {
		return geo.Route{}, &models.ValidationError{
			Entity: "job", Field: "postcode", Value: to, Message: "is required",
		}
	}

	r, err := c.distance.Distance(to, from)
	if err != nil {
		return geo.Route{}, fmt.Errorf("estimate distance: %w", err)
	}
	return r, nil
}

// EffectiveRate is the hourly rate after urgency, time-of-day and specialty
// adjustments
func EffectiveRate(p models.RateProfile, urgency models.Urgency, jobType string, at time.Time) float64 {
	rate := p.HourlyRate
	switch urgency {
	case models.UrgencyEmergency:
		rate = p.EmergencyRate
	case models.UrgencyToday:
		rate *= SameDayBoost
	}

	if offHours(at) {
		rate *= OffHoursBoost
	}

	if p.HasSpecialty(jobType) {
		rate += SpecialtyBonus
	}

	return rate
}

// offHours is before 08:00, from 18:00, or any time at the weekend
func offHours(t time.Time) bool {
	h := t.Hour()
	if h >= 18 || h < 8 {
		return true
	}
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
