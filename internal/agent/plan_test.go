package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanJSON = `{
	"analysis": "create a small web app",
	"execution_plan": {
		"steps": [
			{"step_number": 1, "action": "WRITE", "target": "app.py", "purpose": "entry point", "validation_criteria": "file exists"},
			{"step_number": 2, "action": "WRITE", "target": "README.md", "purpose": "docs", "validation_criteria": "file exists"}
		]
	}
}`

func TestParsePlanValid(t *testing.T) {
	plan, err := ParsePlan(validPlanJSON)
	require.NoError(t, err)
	assert.Equal(t, "create a small web app", plan.Analysis)
	require.Len(t, plan.Steps(), 2)
	assert.Equal(t, "app.py", plan.Steps()[0].Target)
}

func TestParsePlanStripsFences(t *testing.T) {
	plan, err := ParsePlan("```json\n" + validPlanJSON + "\n```")
	require.NoError(t, err)
	assert.Len(t, plan.Steps(), 2)
}

func TestParsePlanRejectsProse(t *testing.T) {
	_, err := ParsePlan("Sure! Here's my plan: first I will create the app.")
	assert.Error(t, err)
}

func TestParsePlanRejectsEmptySteps(t *testing.T) {
	_, err := ParsePlan(`{"analysis": "x", "execution_plan": {"steps": []}}`)
	assert.Error(t, err)
}

func TestParsePlanRejectsMissingAnalysis(t *testing.T) {
	_, err := ParsePlan(`{"execution_plan": {"steps": [{"step_number": 1, "action": "WRITE"}]}}`)
	assert.Error(t, err)
}

func TestParsePlanRejectsStepWithoutAction(t *testing.T) {
	_, err := ParsePlan(`{"analysis": "x", "execution_plan": {"steps": [{"step_number": 1, "target": "a"}]}}`)
	assert.Error(t, err)
}

func TestParsePhaseCount(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
	}{
		{"plain", "PHASES: 2", 2},
		{"embedded", "I think\nPHASES: 3\nbecause...", 3},
		{"no marker", "two phases please", 1},
		{"zero", "PHASES: 0", 1},
		{"above max", "PHASES: 9", 3},
		{"garbage", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePhaseCount(tt.response, 3))
		})
	}
}
