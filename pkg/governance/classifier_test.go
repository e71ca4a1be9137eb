package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  TaskType
	}{
		{"code modification", "please refactor the login handler and implement the new flow", TaskCodeMod},
		{"learning", "explain how does a b-tree index work", TaskLearning},
		{"security", "is there a vulnerability like CVE-2024-1234 in this library?", TaskSecurity},
		{"debugging", "the app crashed with a panic, here is the stack trace", TaskDebug},
		{"optimization", "optimize this slow query, the latency is terrible", TaskOptimization},
		{"architecture", "help with the system design tradeoffs for this service", TaskArchitecture},
		{"documentation", "write the readme and a changelog entry", TaskDoc},
		{"no signal", "zxqv wvut mnop", TaskUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			assert.Equal(t, tt.want, got.TaskType)
		})
	}
}

func TestClassify_Confidence(t *testing.T) {
	decisive := Classify("explain how does recursion work")
	assert.Equal(t, TaskLearning, decisive.TaskType)
	assert.InDelta(t, 1.0, decisive.Confidence, 0.001, "single-type signal is fully confident")

	mixed := Classify("review this error")
	assert.Equal(t, TaskCodeReview, mixed.TaskType)
	assert.Less(t, mixed.Confidence, 1.0, "competing signals dilute confidence")
	assert.NotEmpty(t, mixed.Scores[TaskDebug])

	none := Classify("zxqv")
	assert.Equal(t, TaskUnknown, none.TaskType)
	assert.Zero(t, none.Confidence)
}
