package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paicode/internal/llm"
	"paicode/internal/logging"
	"paicode/internal/workspace"
)

// Interpreter executes parsed commands against the workspace,
// synthesizing file content through the model where a command calls
// for it.
type Interpreter struct {
	ws     *workspace.Workspace
	client llm.Client
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(ws *workspace.Workspace, client llm.Client) *Interpreter {
	return &Interpreter{ws: ws, client: client}
}

// Execute runs one command and returns its structured outcome. A panic
// inside an operation is contained here and surfaces as an IO failure;
// one bad command never takes down the session.
func (it *Interpreter) Execute(ctx context.Context, cmd Command) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.ExecutorError("panic executing %s: %v", cmd.Action, r)
			res = failResult(KindIOFailure, fmt.Sprintf("internal error executing %s: %v", cmd.Action, r))
		}
	}()

	switch cmd.Action {
	case ActionRead:
		return it.execRead(cmd)
	case ActionWrite:
		return it.execWrite(ctx, cmd)
	case ActionModify:
		return it.execModify(ctx, cmd)
	case ActionTree:
		return it.execTree(cmd)
	case ActionListPath:
		return it.execList(cmd)
	case ActionMkdir:
		return it.execMkdir(cmd)
	case ActionTouch:
		return it.execTouch(cmd)
	case ActionRemove:
		return it.execRemove(cmd)
	case ActionMove:
		return it.execMove(cmd)
	case ActionFinish:
		message := "finished"
		if cmd.Description != "" {
			message = cmd.Description
		}
		return okResult(message, "")
	default:
		return failResult(KindMalformedCommand, fmt.Sprintf("unknown action %q", cmd.Action))
	}
}

func (it *Interpreter) execRead(cmd Command) Result {
	content, err := it.ws.ReadFile(cmd.Path)
	if err != nil {
		return workspaceFailure(err)
	}
	return okResult(fmt.Sprintf("read %s", cmd.Path), content)
}

func (it *Interpreter) execWrite(ctx context.Context, cmd Command) Result {
	content, err := it.synthesize(ctx, buildContentPrompt(cmd.Path, cmd.Description), buildStrictContentPrompt(cmd.Path, cmd.Description))
	if err != nil {
		return failResult(KindServiceFailure, fmt.Sprintf("content generation for %s failed: %v", cmd.Path, err))
	}

	if err := it.ws.WriteFile(cmd.Path, ensureTrailingNewline(content)); err != nil {
		return workspaceFailure(err)
	}
	return okResult(fmt.Sprintf("wrote %s", cmd.Path), "")
}

func (it *Interpreter) execModify(ctx context.Context, cmd Command) Result {
	// The file must exist before any model call is spent on it.
	original, err := it.ws.ReadFile(cmd.Path)
	if err != nil {
		return workspaceFailure(err)
	}

	proposed, err := it.synthesize(ctx, buildModifyPrompt(cmd.Path, cmd.Description, original), buildStrictModifyPrompt(cmd.Path, cmd.Description, original))
	if err != nil {
		return failResult(KindServiceFailure, fmt.Sprintf("content generation for %s failed: %v", cmd.Path, err))
	}

	decision, err := it.ws.ApplyModification(cmd.Path, original, ensureTrailingNewline(proposed))
	if err != nil {
		return workspaceFailure(err)
	}
	if !decision.Accepted {
		return failResult(KindGuardRejected, decision.Message)
	}
	if decision.NoOp {
		return okResult(fmt.Sprintf("%s already matches the requested change", cmd.Path), "")
	}
	return okResult(fmt.Sprintf("modified %s (+%d/-%d)", cmd.Path, decision.Added, decision.Removed), "")
}

func (it *Interpreter) execTree(cmd Command) Result {
	tree, err := it.ws.Tree(cmd.Path)
	if err != nil {
		return workspaceFailure(err)
	}
	label := "workspace tree"
	if cmd.Path != "" {
		label = fmt.Sprintf("tree of %s", cmd.Path)
	}
	return okResult(label, tree)
}

func (it *Interpreter) execList(cmd Command) Result {
	path := cmd.Path
	if path == "" {
		path = "."
	}
	entries, err := it.ws.List(path)
	if err != nil {
		return workspaceFailure(err)
	}
	return okResult(fmt.Sprintf("listed %s", path), strings.Join(entries, "\n"))
}

func (it *Interpreter) execMkdir(cmd Command) Result {
	if err := it.ws.Mkdir(cmd.Path); err != nil {
		return workspaceFailure(err)
	}
	return okResult(fmt.Sprintf("created directory %s", cmd.Path), "")
}

func (it *Interpreter) execTouch(cmd Command) Result {
	if err := it.ws.Touch(cmd.Path); err != nil {
		return workspaceFailure(err)
	}
	return okResult(fmt.Sprintf("touched %s", cmd.Path), "")
}

func (it *Interpreter) execRemove(cmd Command) Result {
	if err := it.ws.Remove(cmd.Path); err != nil {
		return workspaceFailure(err)
	}
	return okResult(fmt.Sprintf("removed %s", cmd.Path), "")
}

func (it *Interpreter) execMove(cmd Command) Result {
	if err := it.ws.Move(cmd.Path, cmd.Dest); err != nil {
		return workspaceFailure(err)
	}
	return okResult(fmt.Sprintf("moved %s to %s", cmd.Path, cmd.Dest), "")
}

// synthesize asks the model for file content, retrying once with a
// stricter prompt when the first response comes back empty.
func (it *Interpreter) synthesize(ctx context.Context, prompt, strictPrompt string) (string, error) {
	content, err := it.client.Generate(ctx, prompt, "content-synthesis")
	if err == nil && strings.TrimSpace(content) != "" {
		return content, nil
	}
	if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
		return "", err
	}

	logging.ExecutorWarn("empty content response, retrying with strict prompt")
	content, err = it.client.Generate(ctx, strictPrompt, "content-synthesis-retry")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

// workspaceFailure maps workspace errors onto result kinds.
func workspaceFailure(err error) Result {
	switch {
	case errors.Is(err, workspace.ErrAccessDenied):
		return failResult(KindAccessDenied, err.Error())
	case errors.Is(err, workspace.ErrNotFound):
		return failResult(KindNotFound, err.Error())
	default:
		return failResult(KindIOFailure, err.Error())
	}
}

func ensureTrailingNewline(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}
