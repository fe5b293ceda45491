// Package classifier turns a customer's free-text request into a job type,
// urgency, complexity and rough effort estimate.
package classifier

import (
	"context"
	"strings"
	"unicode"

	"github.com/wilesp/plumbflow-platform/internal/models"
)

// KeywordConfidence is what the keyword rules claim for every verdict
const KeywordConfidence = 0.85

type Classification struct {
	JobType            string            `json:"job_type"`
	Urgency            models.Urgency    `json:"urgency"`
	Complexity         models.Complexity `json:"complexity"`
	EstimatedHours     float64           `json:"estimated_hours"`
	EstimatedPartsCost float64           `json:"estimated_parts_cost"`
	GasSafeRequired    bool              `json:"gas_safe_required"`
	Confidence         float64           `json:"confidence"`
	Keywords           []string          `json:"keywords"`
}

// Apply copies the verdict onto job. The job's own urgency is kept when the
// customer picked one explicitly.
func (c Classification) Apply(job *models.Job) {
	job.JobType = c.JobType
	job.Complexity = c.Complexity
	job.EstimatedHours = c.EstimatedHours
	job.EstimatedPartsCost = c.EstimatedPartsCost
	job.GasSafeRequired = c.GasSafeRequired
	job.Confidence = c.Confidence
	if job.Urgency == "" {
		job.Urgency = c.Urgency
	}
}

type JobClassifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

type family struct {
	jobType  string
	keywords []string
	hours    float64
	parts    float64
}

// checked in order, first hit wins
var families = []family{
	{jobType: "leaking_tap", keywords: []string{"tap", "faucet", "drip"}, hours: 0.5, parts: 8},
	{jobType: "toilet_flush", keywords: []string{"toilet", "flush", "cistern"}, hours: 0.75, parts: 20},
	{jobType: "burst_pipe", keywords: []string{"burst", "pipe", "leak"}, hours: 1.5, parts: 40},
	{jobType: "boiler_repair", keywords: []string{"boiler", "heating", "gas"}, hours: 2.5, parts: 150},
}

var fallback = family{jobType: "general_plumbing", hours: 1.0, parts: 30}

var (
	emergencyWords = []string{"emergency", "urgent", "asap", "now"}
	todayWords     = []string{"today", "immediate"}
	thisWeekWords  = []string{"this week", "soon"}

	easyWords = []string{"simple", "basic", "just"}
	hardWords = []string{"difficult", "complex", "major"}
)

// KeywordClassifier is the rule based classifier. Single keywords match the
// start of a word ("leak" matches "leaking"), phrases match anywhere.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (k *KeywordClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	t := newText(text)

	fam := fallback
	for _, f := range families {
		if t.any(f.keywords) {
			fam = f
			break
		}
	}

	urgency := models.UrgencyFlexible
	switch {
	case t.any(emergencyWords):
		urgency = models.UrgencyEmergency
	case t.any(todayWords):
		urgency = models.UrgencyToday
	case t.any(thisWeekWords):
		urgency = models.UrgencyThisWeek
	}

	complexity := models.ComplexityMedium
	switch {
	case t.any(easyWords):
		complexity = models.ComplexityEasy
	case t.any(hardWords):
		complexity = models.ComplexityHard
	}

	return Classification{
		JobType:            fam.jobType,
		Urgency:            urgency,
		Complexity:         complexity,
		EstimatedHours:     fam.hours,
		EstimatedPartsCost: fam.parts,
		GasSafeRequired:    strings.Contains(fam.jobType, "boiler"),
		Confidence:         KeywordConfidence,
		Keywords:           []string{fam.jobType, string(urgency)},
	}, nil
}

type text struct {
	joined string
	words  []string
}

func newText(s string) text {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return text{joined: strings.Join(words, " "), words: words}
}

func (t text) any(keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(t.joined, kw) {
				return true
			}
			continue
		}
		for _, w := range t.words {
			if strings.HasPrefix(w, kw) {
				return true
			}
		}
	}
	return false
}
