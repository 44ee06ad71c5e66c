package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"paicode/internal/workspace"
)

// fakeClient scripts model responses per call purpose.
type fakeClient struct {
	mu     sync.Mutex
	queues map[string][]string
	errs   map[string]error
	calls  map[string]int
	onCall func(purpose string)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		queues: make(map[string][]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeClient) stub(purpose string, responses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[purpose] = append(f.queues[purpose], responses...)
}

func (f *fakeClient) fail(purpose string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[purpose] = err
}

func (f *fakeClient) count(purpose string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[purpose]
}

func (f *fakeClient) Generate(_ context.Context, _ string, purpose string) (string, error) {
	f.mu.Lock()
	f.calls[purpose]++
	hook := f.onCall
	if err, ok := f.errs[purpose]; ok {
		f.mu.Unlock()
		if hook != nil {
			hook(purpose)
		}
		return "", err
	}

	var resp string
	if queue, ok := f.queues[purpose]; ok && len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			f.queues[purpose] = queue[1:]
		}
	} else {
		// Unstubbed purposes get a harmless canned answer.
		resp = "acknowledged and noted"
	}
	f.mu.Unlock()

	if hook != nil {
		hook(purpose)
	}
	return resp, nil
}

func newAgentWorkspace(t *testing.T, opts workspace.Options) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), opts)
	require.NoError(t, err)
	return ws
}
