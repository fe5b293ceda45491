// Package matching ranks candidate plumbers for a job by a weighted blend of
// coverage, availability, specialty, performance and rating.
package matching

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wilesp/plumbflow-platform/internal/geo"
	"github.com/wilesp/plumbflow-platform/internal/models"
)

// MinMatchScore is the score below which a candidate is dropped
const MinMatchScore = 30.0

// CandidateError names the plumber whose record stopped a matching run
type CandidateError struct {
	PlumberID int64
	Err       error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %d: %v", e.PlumberID, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

type Component struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
	Details  Details `json:"details"`
}

type Reasoning struct {
	TotalScore float64     `json:"total_score"`
	Components []Component `json:"components"`
}

type Match struct {
	JobID         int64     `json:"job_id"`
	PlumberID     int64     `json:"plumber_id"`
	Score         float64   `json:"match_score"`
	DistanceKM    float64   `json:"distance_km"`
	TravelMinutes int       `json:"travel_time_minutes"`
	Ranking       int       `json:"ranking"`
	Reasoning     Reasoning `json:"reasoning"`
}

// Route is the travel estimate the match was scored with
func (m *Match) Route() geo.Route {
	return geo.Route{KM: m.DistanceKM, Minutes: m.TravelMinutes}
}

// Matcher holds no state besides its distance provider; one instance can
// serve concurrent callers.
type Matcher struct {
	distance geo.DistanceProvider
}

func New(distance geo.DistanceProvider) *Matcher {
	if distance == nil {
		distance = geo.PrefixEstimator{}
	}
	return &Matcher{distance: distance}
}

// FindMatches scores every candidate, drops those under MinMatchScore and
// returns at most topN ranked matches. Ties keep input order.
// A malformed job or candidate aborts the run.
func (m *Matcher) FindMatches(job *models.Job, candidates []models.Plumber, topN int) ([]Match, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			return nil, &CandidateError{PlumberID: candidates[i].ID, Err: err}
		}
	}

	if topN <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(candidates))
	for i := range candidates {
		match, err := m.score(job, &candidates[i])
		if err != nil {
			return nil, &CandidateError{PlumberID: candidates[i].ID, Err: err}
		}
		if match.Score < MinMatchScore {
			continue
		}
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topN {
		matches = matches[:topN]
	}

	for i := range matches {
		matches[i].Ranking = i + 1
	}

	return matches, nil
}

// ScoreCandidate scores one pair without filtering or ranking
func (m *Matcher) ScoreCandidate(job *models.Job, p *models.Plumber) (Match, error) {
	if err := job.Validate(); err != nil {
		return Match{}, err
	}
	if err := p.Validate(); err != nil {
		return Match{}, &CandidateError{PlumberID: p.ID, Err: err}
	}

	match, err := m.score(job, p)
	if err != nil {
		return Match{}, &CandidateError{PlumberID: p.ID, Err: err}
	}
	return match, nil
}

var errNoRoute = errors.New("distance provider returned no route")

func (m *Matcher) score(job *models.Job, p *models.Plumber) (Match, error) {
	route, err := m.distance.Distance(job.Postcode, p.BasePostcode)
	if err != nil {
		return Match{}, fmt.Errorf("estimate distance: %w", err)
	}
	if route.KM < 0 || route.Minutes < 0 {
		return Match{}, errNoRoute
	}

	distance, distanceDetails := scoreDistance(job, p, route)
	availability, availabilityDetails := scoreAvailability(job, p)
	specialty, specialtyDetails := scoreSpecialty(job, p)
	performance, performanceDetails := scorePerformance(p)
	rating, ratingDetails := scoreRating(p)

	components := []Component{
		component("distance", distance, WeightDistance, distanceDetails),
		component("availability", availability, WeightAvailability, availabilityDetails),
		component("specialty", specialty, WeightSpecialty, specialtyDetails),
		component("performance", performance, WeightPerformance, performanceDetails),
		component("rating", rating, WeightRating, ratingDetails),
	}

	var total float64
	for _, c := range components {
		total += c.Score * c.Weight
	}
	total = round2(total)

	return Match{
		JobID:         job.ID,
		PlumberID:     p.ID,
		Score:         total,
		DistanceKM:    route.KM,
		TravelMinutes: route.Minutes,
		Reasoning: Reasoning{
			TotalScore: total,
			Components: components,
		},
	}, nil
}

func component(name string, score, weight float64, details Details) Component {
	score = clamp(score)
	return Component{
		Name:     name,
		Score:    score,
		Weight:   weight,
		Weighted: round2(score * weight),
		Details:  details,
	}
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
