package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"paicode/internal/llm"
)

// Plan is the model's structured task plan.
type Plan struct {
	Analysis      string        `json:"analysis"`
	ExecutionPlan ExecutionPlan `json:"execution_plan"`
}

// ExecutionPlan wraps the ordered steps.
type ExecutionPlan struct {
	Steps []PlanStep `json:"steps"`
}

// PlanStep is one planned action.
type PlanStep struct {
	StepNumber         int    `json:"step_number"`
	Action             string `json:"action"`
	Target             string `json:"target"`
	Purpose            string `json:"purpose"`
	ValidationCriteria string `json:"validation_criteria"`
}

// Steps returns the plan's step list.
func (p *Plan) Steps() []PlanStep {
	return p.ExecutionPlan.Steps
}

// ParsePlan decodes a planning response. Beyond fence stripping no text
// surgery is attempted: a response that is not valid plan JSON fails
// the task.
func ParsePlan(response string) (*Plan, error) {
	cleaned := llm.StripFences(response)

	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("plan response is not valid JSON: %w", err)
	}

	if strings.TrimSpace(plan.Analysis) == "" {
		return nil, fmt.Errorf("plan is missing analysis")
	}
	if len(plan.ExecutionPlan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	for i, step := range plan.ExecutionPlan.Steps {
		if strings.TrimSpace(step.Action) == "" {
			return nil, fmt.Errorf("plan step %d is missing an action", i+1)
		}
	}

	return &plan, nil
}

var phasesPattern = regexp.MustCompile(`PHASES:\s*(\d+)`)

// ParsePhaseCount extracts "PHASES: n" from a strategy response,
// clamped to [1, maxPhases]. Anything unparseable means one phase.
func ParsePhaseCount(response string, maxPhases int) int {
	m := phasesPattern.FindStringSubmatch(response)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	if n > maxPhases {
		return maxPhases
	}
	return n
}
