package chat

import (
	"fmt"
	"strings"
)

// User-facing strings.
const (
	ReportTitle      = "성장 발달 분석 결과"
	RestartLabel     = "처음부터 다시하기"
	RestartUtterance = "다시"

	MsgGreeting      = "안녕하세요! 아이의 성별, 나이, 키, 몸무게를 알려주세요."
	MsgAskNext       = "다음 정보를 알려주세요. (예: 12개월 75cm 9.8kg)"
	MsgNeedOneMore   = "정보가 입력되었습니다. 정확한 분석을 위해 과거 정보 1개가 더 필요해요. (예: 12개월 75cm 9.8kg)"
	MsgAdded         = "정보가 추가되었습니다. 과거 정보를 더 입력하시거나, '분석'이라고 말씀해주세요."
	MsgNeedMoreData  = "분석하려면 성장 기록이 2개 이상 필요해요. 과거 정보를 더 알려주세요. (예: 12개월 75cm 9.8kg)"
	MsgReset         = "네, 처음부터 다시 시작하겠습니다. 아이 정보를 알려주세요."
	MsgInvalid       = "입력하신 값을 이해하지 못했어요. 개월수, 키(cm), 몸무게(kg)를 다시 알려주세요."
	MsgApology       = "죄송해요, 분석 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	MsgRequestFailed = "요청 처리 중 오류가 발생했습니다."
)

// AddedMessage is the reply after an entry is stored.
func AddedMessage(entries int) string {
	if entries >= 2 {
		return MsgAdded
	}
	return MsgNeedOneMore
}

// AskMessage asks for missing information, greeting users whose child's sex
// is still unknown.
func AskMessage(sexKnown bool) string {
	if sexKnown {
		return MsgAskNext
	}
	return MsgGreeting
}

// ReportSummary describes a report; forecastLines are appended as given.
func ReportSummary(entries, horizonMonths int, forecastLines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d개의 성장 기록을 바탕으로 분석했어요.\n", entries)
	fmt.Fprintf(&b, "%d개월 후의 예상 성장치도 점선으로 표시됩니다.", horizonMonths)
	for _, l := range forecastLines {
		b.WriteString("\n")
		b.WriteString(l)
	}
	return b.String()
}
