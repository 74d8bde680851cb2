// Package reference holds the LMS growth reference table: an immutable mapping
// from (sex, measure, age in months) to Box-Cox LMS parameters.
package reference

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// lms_data.json holds LMS parameters for ages 0-120 months, keyed by sex,
// measure and the age in months as a decimal string.
//
//go:embed lms_data.json
var defaultData []byte

// Sex identifies the reference population.
type Sex string

const (
	SexUnknown Sex = ""
	Male       Sex = "male"
	Female     Sex = "female"
)

// ParseSex converts a wire value into a Sex, ignoring case and surrounding
// space. Unknown values map to SexUnknown.
func ParseSex(s string) (Sex, bool) {
	v := Sex(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case Male, Female:
		return v, true
	default:
		return SexUnknown, false
	}
}

// Valid reports whether s is a known reference population.
func (s Sex) Valid() bool {
	return s == Male || s == Female
}

// Measure identifies the measurement type.
type Measure string

const (
	Height Measure = "height"
	Weight Measure = "weight"
)

// Measures lists every measure in presentation order.
var Measures = []Measure{Height, Weight}

// ParseMeasure converts a wire value into a Measure.
func ParseMeasure(s string) (Measure, bool) {
	switch Measure(s) {
	case Height, Weight:
		return Measure(s), true
	default:
		return "", false
	}
}

// LMS is one parameter set. L is the Box-Cox power (0 selects the log
// transform), M the median and S the coefficient of variation.
type LMS struct {
	L float64 `json:"L"`
	M float64 `json:"M"`
	S float64 `json:"S"`
}

// Policy controls how an age that is not tabulated is resolved.
type Policy string

const (
	// ExactAge only answers for tabulated ages.
	ExactAge Policy = "exact"
	// NearestAge falls back to the closest tabulated age.
	NearestAge Policy = "nearest"
)

// ParsePolicy converts a config value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", ExactAge:
		return ExactAge, nil
	case NearestAge:
		return NearestAge, nil
	default:
		return "", fmt.Errorf("unknown lookup policy %q", s)
	}
}

type series struct {
	byAge map[int]LMS
	ages  []int
}

// Table is safe for concurrent use; it is never mutated after Load.
type Table struct {
	data   map[Sex]map[Measure]*series
	policy Policy
}

// Load parses a table from JSON of the form
// {"male": {"height": {"24": {"L": 1, "M": 87.1, "S": 0.04}}}}.
func Load(r io.Reader) (*Table, error) {
	var raw map[string]map[string]map[string]LMS
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode LMS table: %w", err)
	}

	t := &Table{data: make(map[Sex]map[Measure]*series), policy: ExactAge}
	for sexKey, measures := range raw {
		sex, ok := ParseSex(sexKey)
		if !ok {
			return nil, fmt.Errorf("unknown sex %q in LMS table", sexKey)
		}
		t.data[sex] = make(map[Measure]*series)
		for measureKey, ages := range measures {
			measure, ok := ParseMeasure(measureKey)
			if !ok {
				return nil, fmt.Errorf("unknown measure %q in LMS table", measureKey)
			}
			s := &series{byAge: make(map[int]LMS, len(ages))}
			for ageKey, lms := range ages {
				age, err := strconv.Atoi(ageKey)
				if err != nil || age < 0 {
					return nil, fmt.Errorf("invalid age %q for %s/%s", ageKey, sexKey, measureKey)
				}
				if lms.M <= 0 || lms.S <= 0 {
					return nil, fmt.Errorf("invalid LMS at %s/%s/%d: M and S must be positive", sexKey, measureKey, age)
				}
				s.byAge[age] = lms
				s.ages = append(s.ages, age)
			}
			sort.Ints(s.ages)
			t.data[sex][measure] = s
		}
	}
	return t, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded reference table. It panics if the embedded
// data is corrupt, which can only happen at build time.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Load(bytes.NewReader(defaultData))
		if err != nil {
			panic(fmt.Sprintf("embedded LMS table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// WithPolicy returns a view of the table using the given lookup policy.
// The underlying data is shared.
func (t *Table) WithPolicy(p Policy) *Table {
	return &Table{data: t.data, policy: p}
}

// Policy returns the lookup policy in effect.
func (t *Table) Policy() Policy {
	return t.policy
}

// Lookup returns the parameters for the given key. With the exact policy an
// untabulated age yields false.
func (t *Table) Lookup(sex Sex, measure Measure, ageMonth int) (LMS, bool) {
	s := t.series(sex, measure)
	if s == nil || ageMonth < 0 {
		return LMS{}, false
	}
	if lms, ok := s.byAge[ageMonth]; ok {
		return lms, true
	}
	if t.policy != NearestAge || len(s.ages) == 0 {
		return LMS{}, false
	}
	return s.byAge[nearest(s.ages, ageMonth)], true
}

// Ages returns the tabulated ages for a series in ascending order.
func (t *Table) Ages(sex Sex, measure Measure) []int {
	s := t.series(sex, measure)
	if s == nil {
		return nil
	}
	out := make([]int, len(s.ages))
	copy(out, s.ages)
	return out
}

func (t *Table) series(sex Sex, measure Measure) *series {
	if t == nil {
		return nil
	}
	bySex, ok := t.data[sex]
	if !ok {
		return nil
	}
	return bySex[measure]
}

// nearest picks the closest tabulated age; ties resolve to the younger age.
func nearest(ages []int, age int) int {
	i := sort.SearchInts(ages, age)
	switch {
	case i == 0:
		return ages[0]
	case i == len(ages):
		return ages[len(ages)-1]
	}
	lo, hi := ages[i-1], ages[i]
	if age-lo <= hi-age {
		return lo
	}
	return hi
}
