package agent

import (
	"strings"
)

var traceLinePrefixes = []string{"Thought:", "Action:", "Action Input:", "Observation:"}

const finalAnswerPrefix = "Final Answer:"

// CleanTrace 去掉推理轨迹行（Thought/Action/Observation）与 "Final Answer:" 前缀；
// 清理后不超过 20 个字符时保留原文
func CleanTrace(answer string) string {
	lines := strings.Split(answer, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if hasAnyPrefix(trimmed, traceLinePrefixes) {
			continue
		}
		kept = append(kept, line)
	}
	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))
	cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, finalAnswerPrefix))
	if len(cleaned) > 20 {
		return cleaned
	}
	return strings.TrimSpace(answer)
}

// AcceptAnswer Agent 答案质量门：去空白后长度须大于 minLen，且不含任一拒绝标记（不区分大小写）
func AcceptAnswer(answer string, minLen int, rejectMarkers []string) bool {
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) <= minLen || trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, m := range rejectMarkers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return false
		}
	}
	return true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
