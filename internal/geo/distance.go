// Package geo estimates travel between two location keys (UK postcode
// fragments in practice, opaque strings as far as callers care).
package geo

import (
	"strings"
)

type Route struct {
	KM      float64 `json:"km"`
	Minutes int     `json:"minutes"`
}

// Hours is the travel time in hours
func (r Route) Hours() float64 {
	return float64(r.Minutes) / 60
}

// DistanceProvider resolves the route between two location keys.
// Implementations backed by a geocoder may block; the call stays synchronous.
type DistanceProvider interface {
	Distance(from, to string) (Route, error)
}

// DistanceFunc adapts a plain function to DistanceProvider
type DistanceFunc func(from, to string) (Route, error)

func (f DistanceFunc) Distance(from, to string) (Route, error) {
	return f(from, to)
}

var (
	sameArea     = Route{KM: 2, Minutes: 15}
	sameDistrict = Route{KM: 5, Minutes: 25}
	sameRegion   = Route{KM: 8, Minutes: 35}
	farAway      = Route{KM: 15, Minutes: 50}
)

// PrefixEstimator buckets routes by how much of the postcode area two keys
// share. It is a stand-in until a real geocoder is plugged in.
type PrefixEstimator struct{}

func (PrefixEstimator) Distance(from, to string) (Route, error) {
	a, b := Area(from), Area(to)

	switch {
	case a == b:
		return sameArea, nil
	case sharedPrefix(a, b, 3):
		return sameDistrict, nil
	case sharedPrefix(a, b, 2):
		return sameRegion, nil
	default:
		return farAway, nil
	}
}

// Area normalises a location key to its first four characters, upper-cased
func Area(postcode string) string {
	s := strings.ToUpper(strings.TrimSpace(postcode))
	if len(s) > 4 {
		s = s[:4]
	}
	return strings.TrimSpace(s)
}

func sharedPrefix(a, b string, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	return a[:n] == b[:n]
}
