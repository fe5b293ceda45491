package pricing

import (
	"github.com/wilesp/plumbflow-platform/internal/models"
)

// Template is the pricing card for one job type
type Template struct {
	JobType         string
	BaseHours       float64
	Multipliers     map[models.Complexity]float64
	PartsMin        float64
	PartsMax        float64
	GasSafeRequired bool
}

// multiplier falls back to 1.5 for a complexity the card does not list
func (t Template) multiplier(c models.Complexity) float64 {
	if m, ok := t.Multipliers[c]; ok {
		return m
	}
	return 1.5
}

func (t Template) partsMidpoint() float64 {
	return (t.PartsMin + t.PartsMax) / 2
}

func multipliers(easy, medium, hard float64) map[models.Complexity]float64 {
	return map[models.Complexity]float64{
		models.ComplexityEasy:   easy,
		models.ComplexityMedium: medium,
		models.ComplexityHard:   hard,
	}
}

var templates = map[string]Template{
	"leaking_tap": {
		JobType: "leaking_tap", BaseHours: 0.5,
		Multipliers: multipliers(1.0, 1.3, 1.8), PartsMin: 5, PartsMax: 15,
	},
	"toilet_flush": {
		JobType: "toilet_flush", BaseHours: 0.75,
		Multipliers: multipliers(1.0, 1.4, 2.0), PartsMin: 15, PartsMax: 35,
	},
	"unblock_sink": {
		JobType: "unblock_sink", BaseHours: 0.75,
		Multipliers: multipliers(1.0, 1.5, 2.5), PartsMin: 10, PartsMax: 40,
	},
	"replace_tap": {
		JobType: "replace_tap", BaseHours: 1.0,
		Multipliers: multipliers(1.0, 1.4, 2.0), PartsMin: 30, PartsMax: 80,
	},
	"burst_pipe": {
		JobType: "burst_pipe", BaseHours: 1.5,
		Multipliers: multipliers(1.0, 1.6, 2.5), PartsMin: 20, PartsMax: 60,
	},
	"toilet_replacement": {
		JobType: "toilet_replacement", BaseHours: 2.0,
		Multipliers: multipliers(1.0, 1.5, 2.2), PartsMin: 100, PartsMax: 250,
	},
	"radiator_replacement": {
		JobType: "radiator_replacement", BaseHours: 2.5,
		Multipliers: multipliers(1.0, 1.4, 2.0), PartsMin: 80, PartsMax: 180,
	},
	"boiler_repair": {
		JobType: "boiler_repair", BaseHours: 2.5,
		Multipliers: multipliers(1.0, 1.6, 2.5), PartsMin: 50, PartsMax: 300,
		GasSafeRequired: true,
	},
	"shower_installation": {
		JobType: "shower_installation", BaseHours: 5.0,
		Multipliers: multipliers(1.0, 1.8, 3.0), PartsMin: 400, PartsMax: 1200,
	},
}

// LookupTemplate returns the card for jobType. Unknown types get the generic
// card built around the analysis' own hour estimate; ok reports whether the
// type was known.
func LookupTemplate(jobType string, estimatedHours float64) (t Template, ok bool) {
	if t, ok := templates[jobType]; ok {
		return t, true
	}

	hours := estimatedHours
	if hours <= 0 {
		hours = 1.5
	}

	return Template{
		JobType:     "generic",
		BaseHours:   hours,
		Multipliers: multipliers(1.0, 1.5, 2.0),
		PartsMin:    20,
		PartsMax:    100,
	}, false
}

// JobTypes lists the job types with a dedicated card
func JobTypes() []string {
	types := make([]string, 0, len(templates))
	for k := range templates {
		types = append(types, k)
	}
	return types
}
