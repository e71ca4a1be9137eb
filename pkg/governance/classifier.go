// Package governance decides how each request is handled: what kind of
// task it is, which specialist agents should take it, what communication
// style the answer should use, and whether the draft answer is good
// enough to return.
package governance

import (
	"regexp"
	"sort"
	"strings"
)

// TaskType is the classified kind of work a request asks for.
type TaskType string

const (
	TaskCodeMod      TaskType = "CODE_MOD"
	TaskCodeReview   TaskType = "CODE_REVIEW"
	TaskLearning     TaskType = "LEARNING"
	TaskSecurity     TaskType = "SECURITY"
	TaskArchitecture TaskType = "ARCHITECTURE"
	TaskResearch     TaskType = "RESEARCH"
	TaskOptimization TaskType = "OPTIMIZATION"
	TaskDebug        TaskType = "DEBUG"
	TaskDataAnalysis TaskType = "DATA_ANALYSIS"
	TaskDoc          TaskType = "DOC"
	TaskUnknown      TaskType = "UNKNOWN"
)

// Classification is the classifier's full output: the winning type, how
// decisive the win was, and the raw per-type scores.
type Classification struct {
	TaskType   TaskType             `json:"task_type"`
	Confidence float64              `json:"confidence"`
	Scores     map[TaskType]float64 `json:"scores"`
}

type weightedKeyword struct {
	word   string
	weight float64
}

// taskKeywords drives the classifier. Multi-word entries match as
// phrases; single words match on word boundaries.
var taskKeywords = map[TaskType][]weightedKeyword{
	TaskCodeMod: {
		{"implement", 2}, {"refactor", 2}, {"write a function", 2},
		{"add a feature", 2}, {"rename", 1}, {"migrate", 1}, {"rewrite", 1},
	},
	TaskCodeReview: {
		{"review", 2}, {"pull request", 2}, {"code review", 3},
		{"diff", 1}, {"looks good", 1},
	},
	TaskLearning: {
		{"explain", 2}, {"how does", 2}, {"teach", 2}, {"learn", 1},
		{"what does", 1}, {"tutorial", 1},
	},
	TaskSecurity: {
		{"vulnerability", 3}, {"cve", 3}, {"exploit", 2}, {"pentest", 2},
		{"security", 2}, {"hardening", 1}, {"injection", 1},
	},
	TaskArchitecture: {
		{"architecture", 3}, {"design", 2}, {"scalab", 1}, {"tradeoff", 2},
		{"microservice", 1}, {"system design", 3},
	},
	TaskResearch: {
		{"research", 2}, {"compare", 1}, {"sources", 1}, {"literature", 2},
		{"survey", 1}, {"cite", 1},
	},
	TaskOptimization: {
		{"optimize", 3}, {"performance", 2}, {"slow", 1}, {"latency", 2},
		{"profile", 1}, {"speed up", 2},
	},
	TaskDebug: {
		{"debug", 3}, {"stack trace", 2}, {"error", 1}, {"crash", 2},
		{"panic", 2}, {"not working", 1}, {"broken", 1},
	},
	TaskDataAnalysis: {
		{"analyze", 2}, {"dataset", 2}, {"statistics", 2}, {"csv", 1},
		{"chart", 1}, {"correlation", 2},
	},
	TaskDoc: {
		{"document", 2}, {"readme", 2}, {"docstring", 2},
		{"write up", 1}, {"changelog", 1},
	},
}

var classifyWordRe = regexp.MustCompile(`[a-z0-9]+`)

// Classify maps a request to a task type with keyword-weighted scoring.
// With no keyword signal the result is UNKNOWN with zero confidence.
func Classify(input string) Classification {
	lower := strings.ToLower(input)
	words := make(map[string]bool)
	for _, w := range classifyWordRe.FindAllString(lower, -1) {
		words[w] = true
	}

	scores := make(map[TaskType]float64, len(taskKeywords))
	total := 0.0
	for taskType, keywords := range taskKeywords {
		score := 0.0
		for _, kw := range keywords {
			if strings.ContainsRune(kw.word, ' ') {
				if strings.Contains(lower, kw.word) {
					score += kw.weight
				}
			} else if words[kw.word] || containsPrefix(words, kw.word) {
				score += kw.weight
			}
		}
		if score > 0 {
			scores[taskType] = score
			total += score
		}
	}

	if total == 0 {
		return Classification{TaskType: TaskUnknown, Scores: scores}
	}

	types := make([]TaskType, 0, len(scores))
	for t := range scores {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if scores[types[i]] != scores[types[j]] {
			return scores[types[i]] > scores[types[j]]
		}
		return types[i] < types[j]
	})

	return Classification{
		TaskType:   types[0],
		Confidence: scores[types[0]] / total,
		Scores:     scores,
	}
}

// containsPrefix treats stem keywords like "scalab" as matching any word
// that starts with them.
func containsPrefix(words map[string]bool, stem string) bool {
	if len(stem) < 5 {
		return false
	}
	for w := range words {
		if strings.HasPrefix(w, stem) {
			return true
		}
	}
	return false
}
