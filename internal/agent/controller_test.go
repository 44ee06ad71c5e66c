package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"paicode/internal/workspace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestController(ws *workspace.Workspace, client *fakeClient, token *CancelToken) *Controller {
	if token == nil {
		token = NewCancelToken()
	}
	return NewController(ws, client, token, Options{})
}

// stubTask wires the model calls a task run always makes.
func stubTask(client *fakeClient) {
	client.stub("classification", "task")
	client.stub("acknowledgment", "On it.")
	client.stub("planning", validPlanJSON)
	client.stub("summary", "All files created as requested.")
	client.stub("suggestion", "Consider adding a test suite next.")
}

func TestRunConversationSkipsPlanning(t *testing.T) {
	client := newFakeClient()
	client.stub("classification", "this is just chit-chat")
	client.stub("conversation", "Hello! How can I help?")
	c := newTestController(newAgentWorkspace(t, workspace.Options{}), client, nil)

	report := c.Run(context.Background(), "how are you?", nil)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "conversation", report.Intent)
	assert.Equal(t, "Hello! How can I help?", report.Reply)
	assert.Equal(t, 0, client.count("planning"))
	assert.Equal(t, 0, client.count("phase-commands"))
}

func TestRunAmbiguousClassificationIsConversation(t *testing.T) {
	client := newFakeClient()
	client.stub("classification", "This is casual conversation, not a task request.")
	client.stub("conversation", "Happy to chat.")
	c := newTestController(newAgentWorkspace(t, workspace.Options{}), client, nil)

	report := c.Run(context.Background(), "tell me about the project", nil)

	assert.Equal(t, "conversation", report.Intent,
		"a reply that merely mentions the word task must not select the mutating path")
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 0, client.count("planning"))
}

func TestRunExactClassificationWords(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"exact task", "task", "task"},
		{"case and whitespace", "  Task \n", "task"},
		{"exact conversation", "conversation", "conversation"},
		{"hedged", "a task, probably", "conversation"},
		{"prefixed", "TASK: create files", "conversation"},
		{"empty", "", "conversation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			client.stub("classification", tt.response)
			client.stub("planning", "not json")
			c := newTestController(newAgentWorkspace(t, workspace.Options{}), client, nil)

			report := c.Run(context.Background(), "do something", nil)
			assert.Equal(t, tt.want, report.Intent)
		})
	}
}

func TestRunClassificationFailureFallsBackToConversation(t *testing.T) {
	client := newFakeClient()
	client.fail("classification", errors.New("model offline"))
	client.stub("conversation", "Sorry, say that again?")
	c := newTestController(newAgentWorkspace(t, workspace.Options{}), client, nil)

	report := c.Run(context.Background(), "make me a website", nil)

	assert.Equal(t, "conversation", report.Intent)
	assert.Equal(t, StateDone, report.State)
}

func TestRunUnparseablePlanFailsTask(t *testing.T) {
	client := newFakeClient()
	client.stub("classification", "task")
	client.stub("planning", "Sure, here is my plan in prose form.")
	c := newTestController(newAgentWorkspace(t, workspace.Options{}), client, nil)

	report := c.Run(context.Background(), "build the thing", nil)

	assert.Equal(t, StateFailed, report.State)
	require.Error(t, report.Err)
	assert.Equal(t, 0, client.count("phase-commands"), "no execution after a failed plan")
}

func TestRunSinglePhaseTask(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	stubTask(client)
	client.stub("strategy", "PHASES: 1")
	client.stub("phase-commands", "WRITE::app.py::a hello world script\nFINISH")
	client.stub("content-synthesis", "print('hello')")
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "create a hello world app", nil)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "task", report.Intent)
	assert.Equal(t, "On it.", report.Ack)
	require.NotNil(t, report.Plan)
	require.Len(t, report.Phases, 1)
	assert.True(t, report.Phases[0].Finished)
	assert.True(t, report.Phases[0].Passed)
	assert.Equal(t, "All files created as requested.", report.Summary)
	assert.Equal(t, "Consider adding a test suite next.", report.Suggestion)

	got, err := ws.ReadFile("app.py")
	require.NoError(t, err)
	assert.Equal(t, "print('hello')\n", got)
}

func TestRunBatchCapTruncates(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	stubTask(client)
	client.stub("strategy", "PHASES: 1")

	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("TOUCH::file%02d.txt", i))
	}
	client.stub("phase-commands", strings.Join(lines, "\n"))
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "touch twenty files", nil)

	require.Len(t, report.Phases, 1)
	phase := report.Phases[0]
	assert.Len(t, phase.Outcomes, 15)
	assert.Equal(t, 5, phase.Truncated)
	assert.Equal(t, StateDone, report.State)

	_, err := ws.ReadFile("file14.txt")
	assert.NoError(t, err, "commands within the cap execute")
	_, err = ws.ReadFile("file15.txt")
	assert.ErrorIs(t, err, workspace.ErrNotFound, "commands past the cap are dropped")
}

func TestRunPhaseBelowThresholdFails(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	stubTask(client)
	client.stub("strategy", "PHASES: 2")
	// 3 of 5 succeed: 60% is below the 80% threshold.
	client.stub("phase-commands",
		"TOUCH::a.txt\nTOUCH::b.txt\nTOUCH::c.txt\nREAD::missing1.txt\nREAD::missing2.txt")
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "do several things", nil)

	assert.Equal(t, StateFailed, report.State)
	require.Error(t, report.Err)
	require.Len(t, report.Phases, 1, "remaining phases are abandoned")
	assert.InDelta(t, 0.6, report.Phases[0].SuccessRate, 0.001)
	assert.False(t, report.Phases[0].Passed)

	// Applied mutations stay in place; there is no rollback.
	_, err := ws.ReadFile("a.txt")
	assert.NoError(t, err)

	assert.NotEmpty(t, report.Summary, "summarization still runs after a failed phase")
}

func TestRunCancellationBetweenPhases(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	token := NewCancelToken()
	client := newFakeClient()
	stubTask(client)
	client.stub("strategy", "PHASES: 2")
	client.stub("phase-commands", "TOUCH::phase1.txt")
	// The signal lands after phase 1 completes, at the phase-2 boundary.
	client.onCall = func(purpose string) {
		if purpose == "integrity-check" {
			token.Signal()
		}
	}
	c := newTestController(ws, client, token)

	report := c.Run(context.Background(), "two phase job", nil)

	assert.Equal(t, StateCancelled, report.State)
	require.Len(t, report.Phases, 1)

	_, err := ws.ReadFile("phase1.txt")
	assert.NoError(t, err, "completed phase mutations are kept")
	assert.Equal(t, 1, client.count("phase-commands"))
	assert.Equal(t, 0, client.count("summary"), "a cancelled task is not summarized")
	assert.False(t, token.Pending(), "the signal was consumed")
}

func TestRunFinishEndsBatchNotTask(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	stubTask(client)
	client.stub("strategy", "PHASES: 2")
	client.stub("phase-commands", "TOUCH::first.txt\nFINISH::phase one done\nTOUCH::skipped.txt")
	client.stub("phase-commands", "TOUCH::second.txt")
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "two phase job", nil)

	assert.Equal(t, StateDone, report.State)
	require.Len(t, report.Phases, 2, "FINISH closes the batch, not the task")
	assert.True(t, report.Phases[0].Finished)
	assert.Equal(t, 2, client.count("phase-commands"))

	_, err := ws.ReadFile("first.txt")
	assert.NoError(t, err)
	_, err = ws.ReadFile("skipped.txt")
	assert.ErrorIs(t, err, workspace.ErrNotFound, "commands after FINISH in the same batch never run")
	_, err = ws.ReadFile("second.txt")
	assert.NoError(t, err, "the next phase still executes")
}

func TestRunEmbeddedCommandSkipsStrategyCall(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	stubTask(client)
	client.stub("phase-commands", "TOUCH::exact.txt\nFINISH")
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "please run this:\nTOUCH::exact.txt", nil)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 0, client.count("strategy"), "a literal command in the request means one phase")
	assert.Len(t, report.Phases, 1)
}

func TestRunMalformedCommandCountsAsFailure(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	stubTask(client)
	client.stub("strategy", "PHASES: 1")
	client.stub("phase-commands", "TOUCH::ok.txt\nDELETE::bad.txt\nTOUCH::ok2.txt\nTOUCH::ok3.txt\nTOUCH::ok4.txt")
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "mixed batch", nil)

	require.Len(t, report.Phases, 1)
	phase := report.Phases[0]
	require.Len(t, phase.Outcomes, 5)
	assert.Equal(t, KindMalformedCommand, phase.Outcomes[1].Result.Kind)
	assert.InDelta(t, 0.8, phase.SuccessRate, 0.001)
	assert.True(t, phase.Passed, "exactly the threshold still passes")
	assert.Equal(t, StateDone, report.State)
}

func TestRunBatchCallFailureStillSummarizes(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	client.stub("classification", "task")
	client.stub("acknowledgment", "On it.")
	client.stub("planning", validPlanJSON)
	client.stub("strategy", "PHASES: 1")
	client.fail("phase-commands", errors.New("model offline"))
	client.stub("summary", "Nothing could be executed.")
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "doomed job", nil)

	assert.Equal(t, StateFailed, report.State)
	require.Error(t, report.Err)
	assert.Equal(t, 1, client.count("summary"), "summarization runs even when the batch call fails")
	assert.Equal(t, "Nothing could be executed.", report.Summary)
	assert.Empty(t, report.Phases)
}

func TestRunSummaryFailureUsesFallback(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	client.stub("classification", "task")
	client.stub("acknowledgment", "On it.")
	client.stub("planning", validPlanJSON)
	client.stub("strategy", "PHASES: 1")
	client.stub("phase-commands", "TOUCH::a.txt\nFINISH")
	client.fail("summary", errors.New("model offline"))
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "quick job", nil)

	assert.Equal(t, StateDone, report.State, "summary failure never fails the task")
	assert.Contains(t, report.Summary, "Executed 1 of 1 commands")
}

func TestRunShortSuggestionDropped(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	client.stub("classification", "task")
	client.stub("acknowledgment", "On it.")
	client.stub("planning", validPlanJSON)
	client.stub("strategy", "PHASES: 1")
	client.stub("phase-commands", "FINISH")
	client.stub("summary", "Done.")
	client.stub("suggestion", "ok")
	c := newTestController(ws, client, nil)

	report := c.Run(context.Background(), "tiny job", nil)

	assert.Equal(t, StateDone, report.State)
	assert.Empty(t, report.Suggestion)
}

func TestRunCancelledBeforeClassification(t *testing.T) {
	token := NewCancelToken()
	token.Signal()
	client := newFakeClient()
	c := newTestController(newAgentWorkspace(t, workspace.Options{}), client, token)

	report := c.Run(context.Background(), "anything", nil)

	assert.Equal(t, StateCancelled, report.State)
	assert.Equal(t, 0, client.count("classification"))
}
