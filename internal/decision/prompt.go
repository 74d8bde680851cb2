package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/banshee-data/growth.report/internal/growth"
)

// ReportKeywords are utterances that request the report.
var ReportKeywords = []string{"분석", "그만", "완료", "그래프", "결과", "리포트"}

// MinReportEntries is the default history length at which a report can be
// produced.
const MinReportEntries = 2

// IsReportRequest reports whether the utterance is exactly a report keyword.
func IsReportRequest(utterance string) bool {
	u := strings.TrimSpace(utterance)
	for _, k := range ReportKeywords {
		if u == k {
			return true
		}
	}
	return false
}

const reportOnlyRules = `- "generate_report": If the user requests analysis (e.g., '분석', '그만', '완료').`

const collectRules = `- "reset": If the user wants to start over ("다시", "초기화").
- "add_data": If valid child growth data (` + "`sex`, `age_month`, `height_cm`, `weight_kg`" + `) is extracted.
- "ask_for_info": If essential information is still missing for the next step.`

const promptFormat = `You are a data extractor for a child growth chatbot. Your role is to analyze the user's message, extract key information, and decide the next action based on strict rules.

**Current Session Data (Previous entries):**
%s

**User's New Message:**
%q

**Extraction Rules:**
- ` + "`sex`" + `: Extract from "남자", "남아", "아들" as "male"; "여자", "여아", "딸" as "female".
- ` + "`age_month`" + `: Convert years and special terms to months. (e.g., "3살", "세살" -> 36; "두돌" -> 24; "100일" -> 3). If only a number is given, assume it's months.
- ` + "`height_cm`, `weight_kg`" + `: If two numbers like "100 15" are given, infer the larger is height and the smaller is weight. Extract numbers even if units are present.

**Action Decision Rules:**
%s

**Your Output MUST be a single, valid JSON object with "action" and "data" keys.**
- Example (adding data): User says "우리 딸 24개월 85cm 11.5kg" -> Output: {"action": "add_data", "data": {"sex": "female", "age_month": 24, "height_cm": 85, "weight_kg": 11.5}}
- Example (requesting analysis): User says "분석해줘" -> Output: {"action": "generate_report", "data": {}}
- Example (asking for info): Session has sex, user says "18개월" -> Output: {"action": "ask_for_info", "data": {"age_month": 18}}
`

// Prompt builds the extraction prompt. Once the history holds minEntries
// entries and the utterance is a bare report keyword, only the report action
// is offered. minEntries below 1 means MinReportEntries.
func Prompt(s *growth.Session, utterance string, minEntries int) string {
	if minEntries < 1 {
		minEntries = MinReportEntries
	}
	rules := collectRules
	if s.Len() >= minEntries && IsReportRequest(utterance) {
		rules = reportOnlyRules
	}

	view := struct {
		Sex     string         `json:"sex,omitempty"`
		History []growth.Entry `json:"history"`
	}{Sex: string(s.Sex), History: s.History}
	if view.History == nil {
		view.History = []growth.Entry{}
	}
	sessionJSON, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		sessionJSON = []byte(`{"history": []}`)
	}

	return fmt.Sprintf(promptFormat, sessionJSON, utterance, rules)
}
