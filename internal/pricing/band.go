package pricing

import (
	"unicode/utf8"

	"github.com/wilesp/plumbflow-platform/internal/models"
)

const (
	// MaxSpreadPct is the widest band a quote may leave with
	MaxSpreadPct = 40.0

	bandLow  = 0.85
	bandHigh = 1.15
)

// FinderFee is the platform's cut, tiered by subtotal
func FinderFee(subtotal float64) float64 {
	switch {
	case subtotal < 75:
		return 10
	case subtotal < 150:
		return 15
	case subtotal < 300:
		return 25
	default:
		if fee := subtotal * 0.10; fee < 50 {
			return fee
		}
		return 50
	}
}

// RangeCheck is a band after the spread limit has been enforced
type RangeCheck struct {
	Band              models.PriceBand `json:"band"`
	Tightened         bool             `json:"range_tightened"`
	OriginalSpreadPct float64          `json:"original_spread_pct"`
	SpreadPct         float64          `json:"spread_pct"`
}

// TightenRange forces any band wider than MaxSpreadPct to ±15% around its
// typical figure. Narrow bands pass through unchanged.
func TightenRange(b models.PriceBand) RangeCheck {
	spread := b.SpreadPct()

	if spread <= MaxSpreadPct {
		return RangeCheck{
			Band:              b,
			OriginalSpreadPct: spread,
			SpreadPct:         spread,
		}
	}

	tight := models.PriceBand{
		Low:     round2(b.Typical * bandLow),
		Typical: b.Typical,
		High:    round2(b.Typical * bandHigh),
	}

	return RangeCheck{
		Band:              tight,
		Tightened:         true,
		OriginalSpreadPct: spread,
		SpreadPct:         tight.SpreadPct(),
	}
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ScoreConfidence rates how much the quote can be trusted from how much the
// customer told us. Ten points at most.
func ScoreConfidence(a *models.JobAnalysis, knownTemplate bool, spreadPct float64) (Confidence, int) {
	points := 0

	n := utf8.RuneCountInString(a.Description)
	if n > 50 {
		points += 2
	}
	if n > 150 {
		points++
	}

	switch d := a.Details.Provided(); {
	case d >= 3:
		points += 2
	case d >= 1:
		points++
	}

	if a.HasPhoto {
		points += 2
	}

	if knownTemplate {
		points += 2
	}

	if spreadPct <= 35 {
		points++
	}

	switch {
	case points >= 8:
		return ConfidenceHigh, points
	case points >= 5:
		return ConfidenceMedium, points
	default:
		return ConfidenceLow, points
	}
}
