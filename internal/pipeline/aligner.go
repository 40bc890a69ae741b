package pipeline

import (
	"sort"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
)

// Aligner resamples per (item, source) observation streams onto the
// canonical frequency grid. A bucket with no observation within the domain's
// max gap of its nominal timestamp is marked missing, never interpolated.
// Fill is last-observation-carried-forward only; no lookahead.
type Aligner struct {
	freq       domrepo.Frequency
	rules      DomainRules
	trendShort int
	trendLong  int
}

// NewAligner creates an Aligner for the given cadence and rules. Trend
// windows annotate each series with a drift direction; they do not affect
// alignment or anomaly thresholds.
func NewAligner(freq domrepo.Frequency, rules DomainRules, trendShort, trendLong int) *Aligner {
	return &Aligner{freq: freq, rules: rules, trendShort: trendShort, trendLong: trendLong}
}

type streamKey struct {
	itemID  int64
	source  string
	domain  models.Domain
	quoteID int64
}

// Align groups valid observations into per-stream series on the frequency
// grid. Invalid observations are ignored. Streams are returned in a
// deterministic order (item, source, domain, quote).
func (a *Aligner) Align(obs []models.ValidatedObservation) []models.AlignedSeries {
	streams := make(map[streamKey][]models.Observation)
	for _, vo := range obs {
		if !vo.Valid {
			continue
		}
		k := streamKey{vo.ItemID, vo.SourceID, vo.Domain, vo.QuoteItemID}
		streams[k] = append(streams[k], vo.Observation)
	}

	keys := make([]streamKey, 0, len(streams))
	for k := range streams {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].itemID != keys[j].itemID {
			return keys[i].itemID < keys[j].itemID
		}
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		if keys[i].domain != keys[j].domain {
			return keys[i].domain < keys[j].domain
		}
		return keys[i].quoteID < keys[j].quoteID
	})

	out := make([]models.AlignedSeries, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.alignStream(k, streams[k]))
	}
	return out
}

// alignStream must see a stream sequentially: carry-forward fill depends on
// prior values.
func (a *Aligner) alignStream(k streamKey, obs []models.Observation) models.AlignedSeries {
	sort.Slice(obs, func(i, j int) bool { return obs[i].Timestamp.Before(obs[j].Timestamp) })

	maxGap := a.rules.MaxGap(k.domain)
	width := a.freq.Duration()
	first := a.freq.Truncate(obs[0].Timestamp)
	last := a.freq.Truncate(obs[len(obs)-1].Timestamp)

	s := models.AlignedSeries{
		ItemID:      k.itemID,
		SourceID:    k.source,
		QuoteItemID: k.quoteID,
		Domain:      k.domain,
	}

	i := 0 // index of the next unconsumed observation
	var lastObs *models.Observation
	for b := first; !b.After(last); b = b.Add(width) {
		bucketEnd := b.Add(width)
		// Advance over observations visible at this bucket's close. The
		// latest one inside the bucket wins; earlier ones become the
		// carry-forward candidate.
		for i < len(obs) && obs[i].Timestamp.Before(bucketEnd) {
			lastObs = &obs[i]
			i++
		}

		p := models.AlignedPoint{Bucket: b, Missing: true}
		if lastObs != nil {
			inBucket := !lastObs.Timestamp.Before(b)
			// Gap is elapsed time from the observation to the bucket's
			// nominal timestamp, not bucket count: sources report irregularly.
			gap := b.Sub(lastObs.Timestamp)
			if inBucket {
				p.Value = lastObs.Value
				p.Missing = false
			} else if gap <= maxGap {
				p.Value = lastObs.Value
				p.Missing = false
				p.Carried = true
			}
		}
		s.Points = append(s.Points, p)
	}

	s.TrendDir = a.trendDir(s.Points)
	return s
}

// trendDir compares short and long moving averages over the most recent
// points: +1 when the short MA is above the long MA, -1 when below, 0 when
// there is not enough history.
func (a *Aligner) trendDir(points []models.AlignedPoint) int {
	if a.trendShort <= 0 || a.trendLong <= a.trendShort {
		return 0
	}
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if !p.Missing {
			values = append(values, p.Value)
		}
	}
	if len(values) < a.trendLong {
		return 0
	}
	short := mean(values[len(values)-a.trendShort:])
	long := mean(values[len(values)-a.trendLong:])
	switch {
	case short > long:
		return 1
	case short < long:
		return -1
	default:
		return 0
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Buckets enumerates the grid between from and to inclusive, for reporting.
func Buckets(freq domrepo.Frequency, from, to time.Time) []time.Time {
	width := freq.Duration()
	first := freq.Truncate(from)
	last := freq.Truncate(to)
	var out []time.Time
	for b := first; !b.After(last); b = b.Add(width) {
		out = append(out, b)
	}
	return out
}
