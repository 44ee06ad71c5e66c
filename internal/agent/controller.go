package agent

import (
	"context"
	"fmt"
	"strings"

	"paicode/internal/history"
	"paicode/internal/llm"
	"paicode/internal/logging"
	"paicode/internal/workspace"
)

// State is the controller's lifecycle position.
type State string

const (
	StateClassifying State = "classifying"
	StateConversing  State = "conversing"
	StatePlanning    State = "planning"
	StateStrategy    State = "strategy_selection"
	StateExecuting   State = "executing"
	StateSummarizing State = "summarizing"
	StateDone        State = "done"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

// Phase success threshold: below this fraction of succeeding commands a
// phase fails and the remaining phases are abandoned.
const phaseSuccessThreshold = 0.8

// Interaction is one request/response pair retained for conversation
// context.
type Interaction struct {
	Request  string
	Response string
}

// CommandOutcome pairs a protocol line with its execution result.
type CommandOutcome struct {
	Line    string
	Command Command
	Result  Result
}

// PhaseReport is the record of one execution phase.
type PhaseReport struct {
	Phase         int
	Outcomes      []CommandOutcome
	Truncated     int  // command lines dropped by the batch cap
	Finished      bool // batch ended on FINISH; scoped to this phase
	Cancelled     bool
	SuccessRate   float64
	Passed        bool
	IntegrityNote string
}

// Succeeded counts the phase's successful commands.
func (p PhaseReport) Succeeded() int {
	n := 0
	for _, o := range p.Outcomes {
		if o.Result.OK {
			n++
		}
	}
	return n
}

// TaskReport is the full outcome of one user request.
type TaskReport struct {
	State      State
	Intent     string
	Reply      string // conversation answer
	Ack        string
	Plan       *Plan
	Phases     []PhaseReport
	Summary    string
	Suggestion string
	Err        error
}

// Options tunes the controller.
type Options struct {
	// BatchLimit caps commands per phase. Assumed already clamped.
	BatchLimit int

	// MaxPhases caps the phase count a strategy response may request.
	MaxPhases int
}

// Controller drives a request through classification, planning,
// strategy selection, phased execution, and summarization. It runs on a
// single goroutine; the only blocking operations are model calls.
type Controller struct {
	ws     *workspace.Workspace
	interp *Interpreter
	client llm.Client
	cancel *CancelToken

	store     *history.Store
	sessionID string

	batchLimit int
	maxPhases  int
}

// NewController creates a Controller.
func NewController(ws *workspace.Workspace, client llm.Client, cancel *CancelToken, opts Options) *Controller {
	batchLimit := opts.BatchLimit
	if batchLimit <= 0 {
		batchLimit = 15
	}
	maxPhases := opts.MaxPhases
	if maxPhases <= 0 {
		maxPhases = 3
	}
	return &Controller{
		ws:         ws,
		interp:     NewInterpreter(ws, client),
		client:     client,
		cancel:     cancel,
		batchLimit: batchLimit,
		maxPhases:  maxPhases,
	}
}

// SetHistory attaches the session event log. Without it the controller
// simply does not persist events.
func (c *Controller) SetHistory(store *history.Store, sessionID string) {
	c.store = store
	c.sessionID = sessionID
}

// cancelled polls and consumes the cancellation flag.
func (c *Controller) cancelled() bool {
	return c.cancel != nil && c.cancel.Observe()
}

func (c *Controller) recordEvent(kind, detail string) {
	if c.store == nil {
		return
	}
	if err := c.store.RecordEvent(c.sessionID, kind, detail); err != nil {
		logging.SessionError("failed to record %s event: %v", kind, err)
	}
}

func (c *Controller) recordCommand(phase int, o CommandOutcome) {
	if c.store == nil {
		return
	}
	target := o.Command.Path
	if o.Command.Dest != "" {
		target += " -> " + o.Command.Dest
	}
	if err := c.store.RecordCommand(c.sessionID, phase, string(o.Command.Action), target, o.Result.OK, string(o.Result.Kind), o.Result.Message); err != nil {
		logging.SessionError("failed to record command result: %v", err)
	}
}

// Run processes one user request to completion.
func (c *Controller) Run(ctx context.Context, request string, recent []Interaction) *TaskReport {
	report := &TaskReport{State: StateClassifying}
	c.recordEvent(history.EventUserRequest, request)

	if c.cancelled() {
		report.State = StateCancelled
		c.recordEvent(history.EventCancelled, "before classification")
		return report
	}

	report.Intent = c.classify(ctx, request)
	c.recordEvent(history.EventIntent, report.Intent)
	logging.Planner("intent: %s", report.Intent)

	if report.Intent == "conversation" {
		return c.converse(ctx, report, request, recent)
	}

	// Acknowledge before the planning call; a failure here is cosmetic.
	if ack, err := c.client.Generate(ctx, buildAckPrompt(request), "acknowledgment"); err == nil && strings.TrimSpace(ack) != "" {
		report.Ack = strings.TrimSpace(ack)
	} else {
		report.Ack = "Working on it."
	}

	if c.cancelled() {
		report.State = StateCancelled
		c.recordEvent(history.EventCancelled, "before planning")
		return report
	}

	report.State = StatePlanning
	plan, err := c.plan(ctx, request)
	if err != nil {
		// A plan that cannot be parsed fails the whole task; there is
		// no repair pass on planning output.
		report.State = StateFailed
		report.Err = err
		c.recordEvent(history.EventFinalStatus, "planning failed: "+err.Error())
		return report
	}
	report.Plan = plan
	c.recordEvent(history.EventPlanning, plan.Analysis)

	if c.cancelled() {
		report.State = StateCancelled
		c.recordEvent(history.EventCancelled, "after planning")
		return report
	}

	report.State = StateStrategy
	phases := c.selectStrategy(ctx, request, plan)
	logging.Planner("strategy: %d phase(s)", phases)

	report.State = StateExecuting
	failed := false
	for phase := 1; phase <= phases; phase++ {
		if c.cancelled() {
			report.State = StateCancelled
			c.recordEvent(history.EventCancelled, fmt.Sprintf("before phase %d", phase))
			return report
		}

		phaseReport, err := c.executePhase(ctx, request, plan, phase, phases, report)
		if err != nil {
			// The batch call itself failed; stop executing but still
			// fall through to summarization.
			report.Err = err
			failed = true
			c.recordEvent(history.EventPhaseResult, fmt.Sprintf("phase %d batch call failed: %v", phase, err))
			break
		}
		report.Phases = append(report.Phases, *phaseReport)
		c.recordEvent(history.EventPhaseResult,
			fmt.Sprintf("phase %d: %d/%d succeeded", phase, phaseReport.Succeeded(), len(phaseReport.Outcomes)))

		if phaseReport.Cancelled {
			report.State = StateCancelled
			c.recordEvent(history.EventCancelled, fmt.Sprintf("during phase %d", phase))
			return report
		}
		if !phaseReport.Passed {
			// Below the success threshold: stop executing, keep what
			// was applied. There is no rollback.
			failed = true
			break
		}
	}

	report.State = StateSummarizing
	c.summarize(ctx, report, request)

	if failed {
		report.State = StateFailed
		if report.Err == nil {
			report.Err = fmt.Errorf("phase success rate fell below %d%%", int(phaseSuccessThreshold*100))
		}
	} else {
		report.State = StateDone
	}
	c.recordEvent(history.EventFinalStatus, string(report.State))

	c.suggest(ctx, report, request)

	return report
}

// classify maps the request to "task" or "conversation". Only an exact
// enum word counts; anything else, including a failed call, defaults to
// conversation so ambiguous replies never reach the mutating path.
func (c *Controller) classify(ctx context.Context, request string) string {
	resp, err := c.client.Generate(ctx, buildClassifyPrompt(request), "classification")
	if err != nil {
		logging.PlannerError("classification call failed: %v", err)
		return "conversation"
	}
	intent := strings.ToLower(strings.TrimSpace(resp))
	if intent != "task" && intent != "conversation" {
		logging.Planner("unrecognized intent %q, defaulting to conversation", intent)
		return "conversation"
	}
	return intent
}

func (c *Controller) converse(ctx context.Context, report *TaskReport, request string, recent []Interaction) *TaskReport {
	report.State = StateConversing
	reply, err := c.client.Generate(ctx, buildConversationPrompt(request, recent), "conversation")
	if err != nil {
		report.State = StateFailed
		report.Err = fmt.Errorf("conversation call failed: %w", err)
		return report
	}
	report.Reply = reply
	report.State = StateDone
	c.recordEvent(history.EventFinalStatus, string(StateDone))
	return report
}

func (c *Controller) plan(ctx context.Context, request string) (*Plan, error) {
	tree, err := c.ws.Tree("")
	if err != nil {
		tree = "(workspace tree unavailable)"
	}

	resp, err := c.client.Generate(ctx, buildPlanPrompt(request, tree), "planning")
	if err != nil {
		return nil, fmt.Errorf("planning call failed: %w", err)
	}
	return ParsePlan(resp)
}

// selectStrategy picks the phase count. A request that already embeds a
// protocol command is trivially single-phase; otherwise the model is
// asked, and an unparseable answer means one phase.
func (c *Controller) selectStrategy(ctx context.Context, request string, plan *Plan) int {
	if hasEmbeddedCommand(request) {
		return 1
	}

	resp, err := c.client.Generate(ctx, buildStrategyPrompt(request, plan), "strategy")
	if err != nil {
		logging.PlannerError("strategy call failed, using one phase: %v", err)
		return 1
	}
	return ParsePhaseCount(resp, c.maxPhases)
}

// hasEmbeddedCommand detects a literal protocol command inside the
// request text.
func hasEmbeddedCommand(request string) bool {
	for _, line := range strings.Split(request, "\n") {
		line = strings.TrimSpace(line)
		if !IsCommandLine(line) {
			continue
		}
		if _, err := ParseCommand(line); err == nil {
			return true
		}
	}
	return false
}

func (c *Controller) executePhase(ctx context.Context, request string, plan *Plan, phase, totalPhases int, report *TaskReport) (*PhaseReport, error) {
	timer := logging.StartTimer(logging.CategoryExecutor, fmt.Sprintf("phase %d", phase))
	defer timer.StopWithInfo()

	var prior []CommandOutcome
	for _, p := range report.Phases {
		prior = append(prior, p.Outcomes...)
	}

	resp, err := c.client.Generate(ctx, buildPhasePrompt(request, plan, phase, totalPhases, c.batchLimit, prior), "phase-commands")
	if err != nil {
		return nil, fmt.Errorf("phase %d command call failed: %w", phase, err)
	}

	pr := &PhaseReport{Phase: phase}

	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !IsCommandLine(line) {
			continue
		}

		if len(pr.Outcomes) >= c.batchLimit {
			pr.Truncated++
			continue
		}

		if c.cancelled() {
			pr.Cancelled = true
			break
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			outcome := CommandOutcome{Line: line, Result: failResult(KindMalformedCommand, err.Error())}
			pr.Outcomes = append(pr.Outcomes, outcome)
			c.recordCommand(phase, outcome)
			continue
		}

		// FINISH closes this phase's batch; later phases still run.
		if cmd.Action == ActionFinish {
			pr.Finished = true
			if cmd.Description != "" {
				logging.Executor("phase %d finished: %s", phase, cmd.Description)
			}
			break
		}

		result := c.interp.Execute(ctx, cmd)
		outcome := CommandOutcome{Line: line, Command: cmd, Result: result}
		pr.Outcomes = append(pr.Outcomes, outcome)
		c.recordCommand(phase, outcome)
		logging.Executor("phase %d: %s -> %s", phase, line, result.Kind)
	}

	if pr.Truncated > 0 {
		logging.ExecutorWarn("phase %d: batch cap %d hit, %d command(s) dropped", phase, c.batchLimit, pr.Truncated)
	}

	if len(pr.Outcomes) == 0 {
		pr.SuccessRate = 1.0
	} else {
		pr.SuccessRate = float64(pr.Succeeded()) / float64(len(pr.Outcomes))
	}
	pr.Passed = pr.SuccessRate >= phaseSuccessThreshold

	if !pr.Cancelled {
		// Informational only; the outcome does not gate anything.
		if note, err := c.client.Generate(ctx, buildIntegrityPrompt(request, pr.Outcomes), "integrity-check"); err == nil {
			pr.IntegrityNote = strings.TrimSpace(note)
			logging.Executor("phase %d integrity: %s", phase, pr.IntegrityNote)
		} else {
			logging.ExecutorWarn("phase %d integrity check failed: %v", phase, err)
		}
	}

	return pr, nil
}

// summarize fills report.Summary, falling back to a synthetic line when
// the model call fails. Summarization failure never fails the task.
func (c *Controller) summarize(ctx context.Context, report *TaskReport, request string) {
	summary, err := c.client.Generate(ctx, buildSummaryPrompt(request, report.Phases), "summary")
	if err != nil || strings.TrimSpace(summary) == "" {
		total, ok := 0, 0
		for _, p := range report.Phases {
			total += len(p.Outcomes)
			ok += p.Succeeded()
		}
		report.Summary = fmt.Sprintf("Executed %d of %d commands across %d phase(s).", ok, total, len(report.Phases))
		logging.SessionError("summary call failed, using fallback: %v", err)
		return
	}
	report.Summary = strings.TrimSpace(summary)
}

// suggest fills report.Suggestion. Short or failed responses are
// silently dropped.
func (c *Controller) suggest(ctx context.Context, report *TaskReport, request string) {
	resp, err := c.client.Generate(ctx, buildSuggestionPrompt(request, report.Summary), "suggestion")
	if err != nil {
		return
	}
	resp = strings.TrimSpace(resp)
	if len(resp) < 10 {
		return
	}
	report.Suggestion = resp
	c.recordEvent(history.EventSuggestion, resp)
}
