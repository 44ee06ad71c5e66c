package agent

import (
	"fmt"
	"strings"
)

// Prompt builders for every model call the agent makes. Kept together so
// the protocol surface is reviewable in one place.

const commandProtocol = `Available commands, one per line, fields separated by "::":
READ::<path>                 read a file
WRITE::<path>::<description> create a file whose content matches the description
MODIFY::<path>::<description> change an existing file per the description
TREE                         show the workspace tree (TREE::<path> for a subtree)
LIST_PATH::<path>            list a directory
MKDIR::<path>                create a directory
TOUCH::<path>                create an empty file
RM::<path>                   delete a file or directory
MV::<src>::<dst>             move or rename
FINISH                       end the batch when this phase is complete (optionally FINISH::<note>)`

func buildClassifyPrompt(request string) string {
	return fmt.Sprintf(`Classify the user's message as either "task" or "conversation".
A task asks for concrete file or project work. A conversation is a question, greeting, or discussion.
Respond with exactly one word: task or conversation.

Message: %s`, request)
}

func buildConversationPrompt(request string, recent []Interaction) string {
	var b strings.Builder
	b.WriteString("You are pai, a concise project assistant working inside the user's workspace.\n")
	if len(recent) > 0 {
		b.WriteString("Recent exchanges:\n")
		for _, x := range recent {
			fmt.Fprintf(&b, "User: %s\nYou: %s\n", x.Request, x.Response)
		}
	}
	fmt.Fprintf(&b, "\nUser: %s\nReply helpfully and briefly.", request)
	return b.String()
}

func buildAckPrompt(request string) string {
	return fmt.Sprintf(`In one short sentence, acknowledge that you are starting this task. No preamble, no markdown.

Task: %s`, request)
}

func buildPlanPrompt(request, tree string) string {
	return fmt.Sprintf(`Plan the following task as JSON. Respond with ONLY a JSON object, no prose, matching:
{
  "analysis": "<what the task needs>",
  "execution_plan": {
    "steps": [
      {"step_number": 1, "action": "<verb>", "target": "<path or area>", "purpose": "<why>", "validation_criteria": "<how to check>"}
    ]
  }
}

Workspace tree:
%s

Task: %s`, tree, request)
}

func buildStrategyPrompt(request string, plan *Plan) string {
	return fmt.Sprintf(`Given this plan with %d steps, decide how many execution phases to use (1, 2, or 3).
Use 1 for simple tasks, more only when later steps depend on inspecting earlier results.
Respond with exactly: PHASES: <n>

Task: %s
Analysis: %s`, len(plan.Steps()), request, plan.Analysis)
}

func buildPhasePrompt(request string, plan *Plan, phase, totalPhases, batchLimit int, prior []CommandOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execute phase %d of %d for this task. Output ONLY command lines, at most %d, using the protocol below. End the batch with FINISH once this phase's work is done.\n\n", phase, totalPhases, batchLimit)
	b.WriteString(commandProtocol)
	fmt.Fprintf(&b, "\n\nTask: %s\nPlan analysis: %s\nSteps:\n", request, plan.Analysis)
	for _, s := range plan.Steps() {
		fmt.Fprintf(&b, "%d. %s %s (%s)\n", s.StepNumber, s.Action, s.Target, s.Purpose)
	}
	if len(prior) > 0 {
		b.WriteString("\nResults so far:\n")
		for _, o := range prior {
			status := "ok"
			if !o.Result.OK {
				status = string(o.Result.Kind)
			}
			fmt.Fprintf(&b, "%s -> %s\n", o.Line, status)
		}
	}
	return b.String()
}

func buildContentPrompt(path, description string) string {
	return fmt.Sprintf(`Generate the complete content for the file %s.
Description of the required content: %s
Respond with ONLY the raw file content. No markdown fences, no commentary.`, path, description)
}

func buildStrictContentPrompt(path, description string) string {
	return fmt.Sprintf(`Your previous response was empty. Output the full content of the file %s now.
Requirement: %s
Rules: respond with file content only. An empty response is a failure.`, path, description)
}

func buildModifyPrompt(path, description, current string) string {
	return fmt.Sprintf(`Rewrite the file %s applying this change: %s

Current content:
%s

Respond with ONLY the complete new file content. No markdown fences, no commentary, no partial output.`, path, description, current)
}

func buildStrictModifyPrompt(path, description, current string) string {
	return fmt.Sprintf(`Your previous response was empty. Output the complete updated content of %s now, applying: %s

Current content:
%s

Rules: respond with the full file content only. An empty response is a failure.`, path, description, current)
}

func buildIntegrityPrompt(request string, outcomes []CommandOutcome) string {
	var b strings.Builder
	b.WriteString("Review the executed commands against the task and point out anything incomplete or inconsistent. Two sentences maximum.\n\n")
	fmt.Fprintf(&b, "Task: %s\nCommands:\n", request)
	for _, o := range outcomes {
		status := "ok"
		if !o.Result.OK {
			status = string(o.Result.Kind)
		}
		fmt.Fprintf(&b, "%s -> %s\n", o.Line, status)
	}
	return b.String()
}

func buildSummaryPrompt(request string, phases []PhaseReport) string {
	var b strings.Builder
	b.WriteString("Summarize what was done for the user in at most three sentences. Plain text.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", request)
	for _, p := range phases {
		ok := 0
		for _, o := range p.Outcomes {
			if o.Result.OK {
				ok++
			}
		}
		fmt.Fprintf(&b, "Phase %d: %d/%d commands succeeded\n", p.Phase, ok, len(p.Outcomes))
	}
	return b.String()
}

func buildSuggestionPrompt(request, summary string) string {
	return fmt.Sprintf(`Suggest one concrete next step for this project in a single sentence. No preamble.

Completed task: %s
Outcome: %s`, request, summary)
}
