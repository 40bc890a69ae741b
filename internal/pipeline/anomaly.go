package pipeline

import (
	"math"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
)

// AnomalyDetector flags statistical outliers per stream using a rolling
// mean/standard deviation window. Flagged points are excluded from that
// source's contribution for the bucket (marked missing in the clean series),
// not deleted from history.
type AnomalyDetector struct {
	window    int // volatility_window, in buckets
	threshold float64
	minPoints int
	audit     domrepo.AuditLog
	metrics   domrepo.Metrics
}

// NewAnomalyDetector creates a detector. Points with fewer than minPoints of
// prior clean history pass through unflagged: insufficient history is not
// proof of validity.
func NewAnomalyDetector(window int, threshold float64, minPoints int, audit domrepo.AuditLog, metrics domrepo.Metrics) *AnomalyDetector {
	if minPoints < 2 {
		minPoints = 2
	}
	return &AnomalyDetector{window: window, threshold: threshold, minPoints: minPoints, audit: audit, metrics: metrics}
}

// Filter returns a copy of the series with anomalous points marked missing,
// plus the flags raised. Rolling statistics use only prior clean points, so
// one shock does not poison the window that judges the next point.
func (d *AnomalyDetector) Filter(s models.AlignedSeries) (models.AlignedSeries, []models.AnomalyFlag) {
	clean := s
	clean.Points = make([]models.AlignedPoint, len(s.Points))
	copy(clean.Points, s.Points)

	var flags []models.AnomalyFlag
	history := make([]float64, 0, d.window)

	for i := range clean.Points {
		p := &clean.Points[i]
		if p.Missing {
			continue
		}
		if len(history) >= d.minPoints {
			m, sigma := meanStd(history)
			if sigma > 0 {
				score := math.Abs(p.Value-m) / sigma
				if score > d.threshold {
					flags = append(flags, d.flag(s, *p, m, sigma, score))
					p.Missing = true
					p.Value = 0
					p.Carried = false
					continue
				}
			}
		}
		history = append(history, p.Value)
		if d.window > 0 && len(history) > d.window {
			history = history[len(history)-d.window:]
		}
	}
	return clean, flags
}

// FilterAll applies Filter across series.
func (d *AnomalyDetector) FilterAll(series []models.AlignedSeries) ([]models.AlignedSeries, []models.AnomalyFlag) {
	clean := make([]models.AlignedSeries, 0, len(series))
	var flags []models.AnomalyFlag
	for _, s := range series {
		cs, f := d.Filter(s)
		clean = append(clean, cs)
		flags = append(flags, f...)
	}
	return clean, flags
}

func (d *AnomalyDetector) flag(s models.AlignedSeries, p models.AlignedPoint, mean, sigma, score float64) models.AnomalyFlag {
	f := models.AnomalyFlag{
		ItemID:   s.ItemID,
		SourceID: s.SourceID,
		Bucket:   p.Bucket,
		Value:    p.Value,
		Mean:     mean,
		Sigma:    sigma,
		Score:    score,
	}
	if d.metrics != nil {
		d.metrics.RecordAnomaly(s.SourceID)
	}
	if d.audit != nil {
		d.audit.Record(models.AuditEvent{
			Kind:     models.AuditAnomaly,
			ItemID:   s.ItemID,
			SourceID: s.SourceID,
			Bucket:   p.Bucket,
			Reason:   "anomaly",
			Value:    p.Value,
			At:       time.Now().UTC(),
		})
	}
	return f
}

func meanStd(xs []float64) (float64, float64) {
	n := float64(len(xs))
	if n < 2 {
		return mean(xs), 0
	}
	sum, sum2 := 0.0, 0.0
	for _, x := range xs {
		sum += x
		sum2 += x * x
	}
	m := sum / n
	variance := (sum2 - n*m*m) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return m, math.Sqrt(variance)
}
