package pipeline

import "SVUEngine/internal/domain/models"

// Normalizer smooths aligned price series with a trailing mean before
// reconciliation, damping per-source jitter ahead of the base ratio.
// A window of one leaves the series untouched, and rate series always
// pass through unchanged.
type Normalizer struct {
	window int
}

// NewNormalizer creates a Normalizer over the given window in buckets.
func NewNormalizer(window int) *Normalizer {
	if window < 1 {
		window = 1
	}
	return &Normalizer{window: window}
}

// Smooth replaces each present point's value with the mean of the last
// window present values up to and including it. Missing points do not
// enter the window and keep their zero value.
func (n *Normalizer) Smooth(s models.AlignedSeries) models.AlignedSeries {
	if n.window <= 1 || s.Domain != models.DomainPrice {
		return s
	}
	points := make([]models.AlignedPoint, len(s.Points))
	copy(points, s.Points)
	recent := make([]float64, 0, n.window)
	for i, p := range points {
		if p.Missing {
			continue
		}
		if len(recent) == n.window {
			recent = recent[1:]
		}
		recent = append(recent, p.Value)
		points[i].Value = mean(recent)
	}
	s.Points = points
	return s
}
