// Package growth models a subject's measurement history and derives
// percentiles and forecasts from the LMS reference table.
package growth

import (
	"sort"
	"time"

	"github.com/banshee-data/growth.report/internal/reference"
)

// Entry is one recorded measurement. Percentiles are derived when the entry
// is added and never recomputed.
type Entry struct {
	AgeMonth         int      `json:"age_month"`
	HeightCM         *float64 `json:"height_cm,omitempty"`
	WeightKG         *float64 `json:"weight_kg,omitempty"`
	HeightPercentile *float64 `json:"h_percentile,omitempty"`
	WeightPercentile *float64 `json:"w_percentile,omitempty"`
}

// Value returns the raw measurement for m.
func (e Entry) Value(m reference.Measure) *float64 {
	switch m {
	case reference.Height:
		return e.HeightCM
	case reference.Weight:
		return e.WeightKG
	default:
		return nil
	}
}

// Percentile returns the stored percentile for m.
func (e Entry) Percentile(m reference.Measure) *float64 {
	switch m {
	case reference.Height:
		return e.HeightPercentile
	case reference.Weight:
		return e.WeightPercentile
	default:
		return nil
	}
}

// Session is one subject's state. History is kept in insertion order.
type Session struct {
	Sex       reference.Sex `json:"sex,omitempty"`
	History   []Entry       `json:"history"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{History: []Entry{}}
}

// AssignSex sets the sex if it is not already known. The first valid value
// wins; later values, conflicting or not, are ignored. It reports whether
// the session changed.
func (s *Session) AssignSex(sex reference.Sex) bool {
	if s.Sex.Valid() || !sex.Valid() {
		return false
	}
	s.Sex = sex
	return true
}

// Len returns the number of recorded entries.
func (s *Session) Len() int {
	return len(s.History)
}

// SortedHistory returns a copy of the history ordered by age. Entries with
// equal ages keep their insertion order.
func (s *Session) SortedHistory() []Entry {
	out := make([]Entry, len(s.History))
	copy(out, s.History)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AgeMonth < out[j].AgeMonth
	})
	return out
}

// Clone returns a deep copy so callers can mutate without affecting a stored
// session.
func (s *Session) Clone() *Session {
	c := &Session{Sex: s.Sex, UpdatedAt: s.UpdatedAt, History: make([]Entry, len(s.History))}
	for i, e := range s.History {
		c.History[i] = Entry{
			AgeMonth:         e.AgeMonth,
			HeightCM:         copyFloat(e.HeightCM),
			WeightKG:         copyFloat(e.WeightKG),
			HeightPercentile: copyFloat(e.HeightPercentile),
			WeightPercentile: copyFloat(e.WeightPercentile),
		}
	}
	return c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
