package pipeline

import (
	"math"
	"testing"
	"time"

	"SVUEngine/internal/domain/models"
)

func testRules() DomainRules {
	return DomainRules{
		PriceMin:    0.01,
		PriceMax:    1e6,
		PriceMaxGap: 7 * 24 * time.Hour,
		RateMin:     1e-6,
		RateMax:     1e6,
		RateMaxGap:  24 * time.Hour,
		WindowStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func priceObs(item int64, source string, ts time.Time, v float64) models.Observation {
	return models.Observation{ItemID: item, SourceID: source, Domain: models.DomainPrice, Timestamp: ts, Value: v}
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator(testRules(), nil, nil)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	vo := v.Validate(priceObs(2, "primary", ts, 100))
	if !vo.Valid {
		t.Fatalf("expected valid, got reason %s", vo.Reason)
	}
}

func TestValidateOutOfRange(t *testing.T) {
	v := NewValidator(testRules(), nil, nil)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	vo := v.Validate(priceObs(2, "primary", ts, 1e9))
	if vo.Valid || vo.Reason != models.RejectOutOfRange {
		t.Fatalf("expected out_of_range, got %v %s", vo.Valid, vo.Reason)
	}
	vo = v.Validate(priceObs(2, "primary", ts, 0.001))
	if vo.Valid || vo.Reason != models.RejectOutOfRange {
		t.Fatalf("expected out_of_range below min, got %v %s", vo.Valid, vo.Reason)
	}
}

func TestValidateMalformed(t *testing.T) {
	v := NewValidator(testRules(), nil, nil)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []models.Observation{
		priceObs(0, "primary", ts, 100),
		priceObs(2, "", ts, 100),
		priceObs(2, "primary", time.Time{}, 100),
		priceObs(2, "primary", ts, math.NaN()),
		priceObs(2, "primary", ts, math.Inf(1)),
		{ItemID: 2, SourceID: "primary", Domain: models.DomainExchangeRate, Timestamp: ts, Value: 1.5, QuoteItemID: 2},
		{ItemID: 2, SourceID: "primary", Domain: "volume", Timestamp: ts, Value: 1},
	}
	for i, o := range cases {
		vo := v.Validate(o)
		if vo.Valid || vo.Reason != models.RejectMalformed {
			t.Fatalf("case %d: expected malformed, got %v %s", i, vo.Valid, vo.Reason)
		}
	}
}

func TestValidateStaleOutsideWindow(t *testing.T) {
	v := NewValidator(testRules(), nil, nil)
	vo := v.Validate(priceObs(2, "primary", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), 100))
	if vo.Valid || vo.Reason != models.RejectStale {
		t.Fatalf("expected stale before window, got %v %s", vo.Valid, vo.Reason)
	}
	vo = v.Validate(priceObs(2, "primary", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 100))
	if vo.Valid || vo.Reason != models.RejectStale {
		t.Fatalf("expected stale after window, got %v %s", vo.Valid, vo.Reason)
	}
}

func TestValidateAllDeduplicates(t *testing.T) {
	v := NewValidator(testRules(), nil, nil)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	obs := []models.Observation{
		priceObs(2, "primary", ts, 100),
		priceObs(2, "primary", ts, 100),
		priceObs(2, "primary", ts.Add(time.Hour), 101),
	}
	out := v.ValidateAll(obs)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if !out[0].Valid {
		t.Fatalf("first should be valid")
	}
	if out[1].Valid || out[1].Reason != models.RejectDuplicate {
		t.Fatalf("second should be duplicate, got %v %s", out[1].Valid, out[1].Reason)
	}
	if !out[2].Valid {
		t.Fatalf("third should be valid")
	}
}

func TestValidateNonPositiveValue(t *testing.T) {
	rules := testRules()
	rules.PriceMin = 0
	v := NewValidator(rules, nil, nil)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	vo := v.Validate(priceObs(2, "primary", ts, 0))
	if vo.Valid || vo.Reason != models.RejectMalformed {
		t.Fatalf("zero value must be malformed even with zero min, got %v %s", vo.Valid, vo.Reason)
	}
}
