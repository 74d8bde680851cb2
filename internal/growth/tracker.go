package growth

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/growth.report/internal/monitoring"
	"github.com/banshee-data/growth.report/internal/percentile"
	"github.com/banshee-data/growth.report/internal/reference"
)

var (
	// ErrInvalidMeasurement is returned for negative ages and for measurements
	// that are not finite positive numbers.
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrNoMeasurement is returned when neither height nor weight is given.
	ErrNoMeasurement = errors.New("no height or weight given")
)

// Measurement is the input to Tracker.Add.
type Measurement struct {
	AgeMonth int
	HeightCM *float64
	WeightKG *float64
}

// Validate rejects input that must never reach the percentile engine.
func (m Measurement) Validate() error {
	if m.AgeMonth < 0 {
		return fmt.Errorf("%w: age %d months", ErrInvalidMeasurement, m.AgeMonth)
	}
	if m.HeightCM == nil && m.WeightKG == nil {
		return ErrNoMeasurement
	}
	if !positive(m.HeightCM) {
		return fmt.Errorf("%w: height %v", ErrInvalidMeasurement, *m.HeightCM)
	}
	if !positive(m.WeightKG) {
		return fmt.Errorf("%w: weight %v", ErrInvalidMeasurement, *m.WeightKG)
	}
	return nil
}

// positive treats nil as valid; absent values are checked separately.
func positive(v *float64) bool {
	return v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0) && *v > 0)
}

// Tracker ingests measurements into sessions.
type Tracker struct {
	Table *reference.Table
}

// NewTracker returns a Tracker over the given table.
func NewTracker(t *reference.Table) *Tracker {
	return &Tracker{Table: t}
}

// Add validates m, derives its percentiles and appends it to the session.
// On error the session is unchanged.
func (t *Tracker) Add(s *Session, m Measurement) (Entry, error) {
	if err := m.Validate(); err != nil {
		return Entry{}, err
	}

	e := Entry{
		AgeMonth: m.AgeMonth,
		HeightCM: copyFloat(m.HeightCM),
		WeightKG: copyFloat(m.WeightKG),
	}
	e.HeightPercentile = t.percentileFor(s.Sex, reference.Height, m.AgeMonth, m.HeightCM)
	e.WeightPercentile = t.percentileFor(s.Sex, reference.Weight, m.AgeMonth, m.WeightKG)

	s.History = append(s.History, e)
	return e, nil
}

// percentileFor returns nil when sex is unknown or the table has no entry.
func (t *Tracker) percentileFor(sex reference.Sex, m reference.Measure, age int, value *float64) *float64 {
	if value == nil || !sex.Valid() {
		return nil
	}
	lms, ok := t.Table.Lookup(sex, m, age)
	if !ok {
		monitoring.Logf("no %s reference for %s at %d months", m, sex, age)
		return nil
	}
	p, err := percentile.Percentile(*value, lms)
	if err != nil {
		monitoring.Logf("percentile for %s %v: %v", m, *value, err)
		return nil
	}
	return &p
}
