package decision

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/growth.report/internal/growth"
)

// RuleDecider extracts fields with fixed keyword and number rules. It needs
// no network access and is used in dev mode and tests.
type RuleDecider struct{}

var (
	resetWords  = []string{"다시", "초기화"}
	maleWords   = []string{"남자", "남아", "아들"}
	femaleWords = []string{"여자", "여아", "딸"}

	// Longer words first so "두돌" is not read as "돌".
	ageWords = []struct {
		word   string
		months int
	}{
		{"다섯살", 60}, {"네살", 48}, {"세살", 36}, {"두살", 24}, {"한살", 12},
		{"두돌", 24}, {"첫돌", 12}, {"돌", 12},
	}

	monthsRe = regexp.MustCompile(`(\d+)\s*개월`)
	yearsRe  = regexp.MustCompile(`(\d+)\s*(?:살|세)`)
	daysRe   = regexp.MustCompile(`(\d+)\s*일`)
	heightRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:cm|센치|센티)`)
	weightRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:kg|키로|킬로)`)
	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Decide implements Decider.
func (RuleDecider) Decide(_ context.Context, s *growth.Session, utterance string) (Decision, error) {
	u := strings.ToLower(strings.TrimSpace(utterance))

	if IsReportRequest(u) || strings.HasPrefix(u, "분석") {
		return Decision{Action: ActionGenerateReport}, nil
	}
	if containsAny(u, resetWords) {
		return Decision{Action: ActionReset}, nil
	}

	d := Extract(u)
	if _, ok := d.Measurement(); ok {
		return Decision{Action: ActionAddData, Data: d}, nil
	}
	return Decision{Action: ActionAskForInfo, Data: d}, nil
}

// Extract pulls sex, age and measurements out of an utterance.
func Extract(u string) Data {
	var d Data

	switch {
	case containsAny(u, maleWords):
		d.Sex = strPtr("male")
	case containsAny(u, femaleWords):
		d.Sex = strPtr("female")
	}

	rest := u
	take := func(re *regexp.Regexp) (float64, bool) {
		m := re.FindStringSubmatchIndex(rest)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(rest[m[2]:m[3]], 64)
		rest = rest[:m[0]] + " " + rest[m[1]:]
		return v, err == nil
	}

	// "1살 6개월" is 18 months: years and months add up.
	years, hasYears := take(yearsRe)
	months, hasMonths := take(monthsRe)
	if hasYears || hasMonths {
		d.AgeMonth = intPtr(int(years)*12 + int(months))
	} else if v, ok := take(daysRe); ok {
		d.AgeMonth = intPtr(int(v) / 30)
	} else {
		for _, w := range ageWords {
			if i := strings.Index(rest, w.word); i >= 0 {
				d.AgeMonth = intPtr(w.months)
				rest = rest[:i] + " " + rest[i+len(w.word):]
				break
			}
		}
	}

	if v, ok := take(heightRe); ok {
		d.HeightCM = &v
	}
	if v, ok := take(weightRe); ok {
		d.WeightKG = &v
	}

	var bare []float64
	for _, s := range numberRe.FindAllString(rest, -1) {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			bare = append(bare, v)
		}
	}
	// A bare leading number is the age in months when no age was given.
	if d.AgeMonth == nil && len(bare) > 0 && len(bare) != 2 {
		d.AgeMonth = intPtr(int(bare[0]))
		bare = bare[1:]
	}
	// Two unlabelled numbers: the larger is height.
	if d.HeightCM == nil && d.WeightKG == nil && len(bare) == 2 {
		hi, lo := bare[0], bare[1]
		if lo > hi {
			hi, lo = lo, hi
		}
		d.HeightCM, d.WeightKG = &hi, &lo
	}
	return d
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
