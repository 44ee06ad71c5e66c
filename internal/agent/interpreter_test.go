package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paicode/internal/workspace"
)

func TestExecuteRead(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	require.NoError(t, ws.WriteFile("a.txt", "hello\n"))
	it := NewInterpreter(ws, newFakeClient())

	res := it.Execute(context.Background(), Command{Action: ActionRead, Path: "a.txt"})
	assert.True(t, res.OK)
	assert.Equal(t, KindOK, res.Kind)
	assert.Equal(t, "hello\n", res.Data)
}

func TestExecuteReadMissing(t *testing.T) {
	it := NewInterpreter(newAgentWorkspace(t, workspace.Options{}), newFakeClient())
	res := it.Execute(context.Background(), Command{Action: ActionRead, Path: "ghost.txt"})
	assert.False(t, res.OK)
	assert.Equal(t, KindNotFound, res.Kind)
}

func TestExecuteReadDenied(t *testing.T) {
	it := NewInterpreter(newAgentWorkspace(t, workspace.Options{}), newFakeClient())
	res := it.Execute(context.Background(), Command{Action: ActionRead, Path: ".env"})
	assert.Equal(t, KindAccessDenied, res.Kind)
}

func TestExecuteWriteSynthesizesContent(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	client.stub("content-synthesis", "print('hello')")
	it := NewInterpreter(ws, client)

	res := it.Execute(context.Background(), Command{Action: ActionWrite, Path: "app.py", Description: "hello script"})
	require.True(t, res.OK, res.Message)

	got, err := ws.ReadFile("app.py")
	require.NoError(t, err)
	assert.Equal(t, "print('hello')\n", got, "content gets a trailing newline")
}

func TestExecuteWriteRetriesOnceOnEmpty(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	client.stub("content-synthesis", "")
	client.stub("content-synthesis-retry", "real content")
	it := NewInterpreter(ws, client)

	res := it.Execute(context.Background(), Command{Action: ActionWrite, Path: "f.txt", Description: "something"})
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 1, client.count("content-synthesis"))
	assert.Equal(t, 1, client.count("content-synthesis-retry"))

	got, err := ws.ReadFile("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "real content\n", got)
}

func TestExecuteWriteEmptyTwiceIsServiceFailure(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	client.stub("content-synthesis", "")
	client.stub("content-synthesis-retry", "")
	it := NewInterpreter(ws, client)

	res := it.Execute(context.Background(), Command{Action: ActionWrite, Path: "f.txt", Description: "something"})
	assert.False(t, res.OK)
	assert.Equal(t, KindServiceFailure, res.Kind)

	_, err := ws.ReadFile("f.txt")
	assert.ErrorIs(t, err, workspace.ErrNotFound, "nothing may be written on failure")
}

func TestExecuteWriteServiceErrorNotRetried(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	client.fail("content-synthesis", errors.New("connection reset"))
	it := NewInterpreter(ws, client)

	res := it.Execute(context.Background(), Command{Action: ActionWrite, Path: "f.txt", Description: "x"})
	assert.Equal(t, KindServiceFailure, res.Kind)
	assert.Equal(t, 0, client.count("content-synthesis-retry"), "transport errors are not retried with a stricter prompt")
}

func TestExecuteModifyMissingFileSkipsModel(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	client := newFakeClient()
	it := NewInterpreter(ws, client)

	res := it.Execute(context.Background(), Command{Action: ActionModify, Path: "ghost.go", Description: "refactor"})
	assert.Equal(t, KindNotFound, res.Kind)
	assert.Equal(t, 0, client.count("content-synthesis"), "MODIFY on a missing file must not spend a model call")
}

func TestExecuteModifyAppliesChange(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	require.NoError(t, ws.WriteFile("f.txt", "a\nb\n"))
	client := newFakeClient()
	client.stub("content-synthesis", "a\nB\n")
	it := NewInterpreter(ws, client)

	res := it.Execute(context.Background(), Command{Action: ActionModify, Path: "f.txt", Description: "capitalize b"})
	require.True(t, res.OK, res.Message)

	got, err := ws.ReadFile("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nB\n", got)
}

func TestExecuteModifyGuardRejection(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{ModifyThreshold: 2, MaxChangeRatio: 0.1})
	original := "a\nb\nc\nd\n"
	require.NoError(t, ws.WriteFile("f.txt", original))

	client := newFakeClient()
	client.stub("content-synthesis", "w\nx\ny\nz\n")
	it := NewInterpreter(ws, client)

	res := it.Execute(context.Background(), Command{Action: ActionModify, Path: "f.txt", Description: "rewrite"})
	assert.False(t, res.OK)
	assert.Equal(t, KindGuardRejected, res.Kind)
	assert.Contains(t, res.Message, "Split the change")

	got, err := ws.ReadFile("f.txt")
	require.NoError(t, err)
	assert.Equal(t, original, got, "rejected modification leaves the file byte-identical")
}

func TestExecuteModifyNoOp(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	require.NoError(t, ws.WriteFile("f.txt", "same\n"))
	client := newFakeClient()
	client.stub("content-synthesis", "same\n")
	it := NewInterpreter(ws, client)

	res := it.Execute(context.Background(), Command{Action: ActionModify, Path: "f.txt", Description: "no real change"})
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "already matches")
}

func TestExecuteDirectoryCommands(t *testing.T) {
	ws := newAgentWorkspace(t, workspace.Options{})
	it := NewInterpreter(ws, newFakeClient())
	ctx := context.Background()

	assert.True(t, it.Execute(ctx, Command{Action: ActionMkdir, Path: "src"}).OK)
	assert.True(t, it.Execute(ctx, Command{Action: ActionTouch, Path: "src/a.go"}).OK)

	list := it.Execute(ctx, Command{Action: ActionListPath, Path: "src"})
	require.True(t, list.OK)
	assert.Equal(t, "a.go", list.Data)

	tree := it.Execute(ctx, Command{Action: ActionTree})
	require.True(t, tree.OK)
	assert.Contains(t, tree.Data, "a.go")

	scoped := it.Execute(ctx, Command{Action: ActionTree, Path: "src"})
	require.True(t, scoped.OK)
	assert.Contains(t, scoped.Data, "a.go")

	missing := it.Execute(ctx, Command{Action: ActionTree, Path: "nope"})
	assert.Equal(t, KindNotFound, missing.Kind)

	assert.True(t, it.Execute(ctx, Command{Action: ActionMove, Path: "src/a.go", Dest: "src/b.go"}).OK)
	assert.True(t, it.Execute(ctx, Command{Action: ActionRemove, Path: "src/b.go"}).OK)

	rm := it.Execute(ctx, Command{Action: ActionRemove, Path: "src/b.go"})
	assert.Equal(t, KindNotFound, rm.Kind)
}

func TestExecuteFinish(t *testing.T) {
	it := NewInterpreter(newAgentWorkspace(t, workspace.Options{}), newFakeClient())

	res := it.Execute(context.Background(), Command{Action: ActionFinish})
	assert.True(t, res.OK)

	noted := it.Execute(context.Background(), Command{Action: ActionFinish, Description: "all done"})
	assert.True(t, noted.OK)
	assert.Equal(t, "all done", noted.Message)
}
