// Package decision turns a free-text utterance into a structured action with
// extracted measurement fields. The extraction itself is delegated to a
// language model (GeminiDecider) or, offline, to keyword rules (RuleDecider).
package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/reference"
)

// ErrMalformedDecision is returned when a decision payload is not a JSON
// object with the expected shape.
var ErrMalformedDecision = errors.New("decision: malformed decision")

// Action is what the bot should do with an utterance.
type Action string

const (
	ActionAddData        Action = "add_data"
	ActionGenerateReport Action = "generate_report"
	ActionReset          Action = "reset"
	ActionAskForInfo     Action = "ask_for_info"
	ActionOther          Action = "other"
)

func parseAction(s string) Action {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAddData, ActionGenerateReport, ActionReset, ActionAskForInfo:
		return a
	default:
		return ActionOther
	}
}

// Data holds whatever fields were extracted; absent fields are nil.
type Data struct {
	Sex      *string  `json:"sex,omitempty"`
	AgeMonth *int     `json:"age_month,omitempty"`
	HeightCM *float64 `json:"height_cm,omitempty"`
	WeightKG *float64 `json:"weight_kg,omitempty"`
}

// Decision is the decider's verdict.
type Decision struct {
	Action Action `json:"action"`
	Data   Data   `json:"data"`
}

// SexValue returns the extracted sex, or SexUnknown.
func (d Data) SexValue() reference.Sex {
	if d.Sex == nil {
		return reference.SexUnknown
	}
	s, _ := reference.ParseSex(*d.Sex)
	return s
}

// Measurement returns the tracker input when an age and at least one
// measure were extracted.
func (d Data) Measurement() (growth.Measurement, bool) {
	if d.AgeMonth == nil || (d.HeightCM == nil && d.WeightKG == nil) {
		return growth.Measurement{}, false
	}
	return growth.Measurement{AgeMonth: *d.AgeMonth, HeightCM: d.HeightCM, WeightKG: d.WeightKG}, true
}

// UnmarshalJSON accepts numbers or numeric strings for the numeric fields
// since models are not consistent about quoting.
func (d *Data) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = Data{}

	if v, ok := raw["sex"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("sex: %w", err)
		}
		if s != nil && strings.TrimSpace(*s) != "" {
			d.Sex = s
		}
	}

	age, err := flexNumber(raw["age_month"])
	if err != nil {
		return fmt.Errorf("age_month: %w", err)
	}
	if age != nil {
		n := int(math.Round(*age))
		d.AgeMonth = &n
	}
	if d.HeightCM, err = flexNumber(raw["height_cm"]); err != nil {
		return fmt.Errorf("height_cm: %w", err)
	}
	if d.WeightKG, err = flexNumber(raw["weight_kg"]); err != nil {
		return fmt.Errorf("weight_kg: %w", err)
	}
	return nil
}

func flexNumber(v json.RawMessage) (*float64, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil, nil
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return &f, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Parse decodes a model reply. A surrounding markdown code fence or prose
// around the JSON object is tolerated; unknown actions become ActionOther.
func Parse(raw []byte) (Decision, error) {
	s := strings.TrimSpace(string(raw))
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return Decision{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformedDecision, truncate(s, 80))
	}

	var wire struct {
		Action string `json:"action"`
		Data   *Data  `json:"data"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &wire); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}

	d := Decision{Action: parseAction(wire.Action)}
	if wire.Data != nil {
		d.Data = *wire.Data
	}
	return d, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Decider chooses the next action for an utterance given the session so far.
type Decider interface {
	Decide(ctx context.Context, s *growth.Session, utterance string) (Decision, error)
}
