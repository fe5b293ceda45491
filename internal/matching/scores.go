package matching

import (
	"strings"

	"github.com/wilesp/plumbflow-platform/internal/geo"
	"github.com/wilesp/plumbflow-platform/internal/models"
)

const (
	WeightDistance     = 0.40
	WeightAvailability = 0.25
	WeightSpecialty    = 0.20
	WeightPerformance  = 0.10
	WeightRating       = 0.05

	// MinCreditBalance is the balance below which a plumber cannot take leads
	MinCreditBalance = 25.0
	// FullyBookedJobs is the workload at which availability bottoms out
	FullyBookedJobs = 10
)

type Details map[string]interface{}

// coverage finds the first service area whose prefix covers the job's area
func coverage(jobPostcode string, areas models.ServiceAreas) (models.ServiceArea, bool) {
	jobArea := geo.Area(jobPostcode)
	for _, a := range areas {
		if strings.HasPrefix(jobArea, strings.ToUpper(strings.TrimSpace(a.Prefix))) {
			return a, true
		}
	}
	return models.ServiceArea{}, false
}

func scoreDistance(job *models.Job, p *models.Plumber, route geo.Route) (float64, Details) {
	area, ok := coverage(job.Postcode, p.ServiceAreas)
	if !ok {
		return 5, Details{
			"distance_km": route.KM,
			"covers_area": false,
			"reason":      "outside service area",
		}
	}

	if job.EstimatedValue < area.MinJobValue {
		return 20, Details{
			"distance_km":   route.KM,
			"covers_area":   true,
			"priority":      area.Priority,
			"min_job_value": area.MinJobValue,
			"reason":        "job value below area minimum",
		}
	}

	var score float64
	switch area.Priority {
	case models.PriorityPrimary:
		score = band(route.KM, 100, 85, 70)
	case models.PrioritySecondary:
		score = band(route.KM, 80, 70, 50)
	default:
		if route.KM <= 10 {
			score = 60
		} else {
			score = 40
		}
	}

	return score, Details{
		"distance_km":    route.KM,
		"travel_minutes": route.Minutes,
		"priority":       area.Priority,
		"covers_area":    true,
	}
}

// band picks a score for the <=5km, <=10km and further distance bands
func band(km, near, mid, far float64) float64 {
	switch {
	case km <= 5:
		return near
	case km <= 10:
		return mid
	default:
		return far
	}
}

func scoreAvailability(job *models.Job, p *models.Plumber) (float64, Details) {
	if p.Status != models.PlumberStatusActive {
		return 0, Details{"reason": "plumber not active", "status": p.Status}
	}
	if p.CreditBalance < MinCreditBalance {
		return 0, Details{"reason": "insufficient credits", "balance": p.CreditBalance}
	}
	if p.CurrentJobsCount >= FullyBookedJobs {
		return 10, Details{"reason": "fully booked", "current_jobs": p.CurrentJobsCount}
	}

	jobs := p.CurrentJobsCount
	var score float64

	switch job.Urgency {
	case models.UrgencyEmergency:
		switch {
		case p.AvailableToday && jobs < 5:
			score = 100
		case p.AvailableToday:
			score = 70
		default:
			score = 30
		}
	case models.UrgencyToday:
		switch {
		case p.AvailableToday && jobs < 3:
			score = 100
		case p.AvailableToday:
			score = 80
		default:
			score = 40
		}
	case models.UrgencyThisWeek:
		score = load(jobs, 100, 70, 40)
	default:
		score = load(jobs, 100, 80, 50)
	}

	return score, Details{
		"available_today": p.AvailableToday,
		"current_jobs":    jobs,
		"urgency":         job.Urgency,
	}
}

func load(jobs int, light, busy, heavy float64) float64 {
	switch {
	case jobs < 5:
		return light
	case jobs < 8:
		return busy
	default:
		return heavy
	}
}

func scoreSpecialty(job *models.Job, p *models.Plumber) (float64, Details) {
	if job.GasSafeRequired && !p.GasSafeCertified {
		return 0, Details{"reason": "gas safe certification required but not held"}
	}

	var (
		score float64
		level string
	)

	switch {
	case p.HasSkill(job.JobType):
		score, level = 100, "expert"
	case partialSkill(job.JobType, p.Skills):
		score, level = 70, "competent"
	default:
		score, level = 40, "general"
	}

	if job.GasSafeRequired && p.GasSafeCertified {
		score += 10
	}

	return score, Details{
		"has_skill":   level == "expert",
		"match_level": level,
		"gas_safe":    p.GasSafeCertified,
	}
}

// partialSkill reports whether any skill tag is contained in the job type,
// e.g. "tap" for "leaking_tap"
func partialSkill(jobType string, skills []string) bool {
	for _, s := range skills {
		if strings.Contains(jobType, s) {
			return true
		}
	}
	return false
}

func scorePerformance(p *models.Plumber) (float64, Details) {
	m := p.Performance
	score := 50.0

	switch {
	case m.ContactRate > 0.9:
		score += 25
	case m.ContactRate > 0.7:
		score += 15
	case m.ContactRate < 0.5:
		score -= 20
	}

	switch {
	case m.ConversionRate > 0.5:
		score += 15
	case m.ConversionRate > 0.3:
		score += 5
	case m.ConversionRate < 0.2:
		score -= 10
	}

	return score, Details{
		"contact_rate":    m.ContactRate,
		"conversion_rate": m.ConversionRate,
		"total_jobs":      m.TotalJobsCompleted,
	}
}

func scoreRating(p *models.Plumber) (float64, Details) {
	r := p.Performance.AverageRating

	var score float64
	switch {
	case r >= 4.8:
		score = 100
	case r >= 4.5:
		score = 90
	case r >= 4.0:
		score = 75
	case r >= 3.5:
		score = 50
	default:
		score = 25
	}

	return score, Details{
		"rating":       r,
		"rating_count": p.Performance.RatingCount,
	}
}
