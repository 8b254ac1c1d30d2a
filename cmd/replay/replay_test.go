package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/delaneyj/reactor/reactive"
	"github.com/delaneyj/reactor/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayTodoScript(t *testing.T) {
	s, err := loadScript("testdata/todo.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"filter", "todos"}, s.State.Keys())

	rep, err := replay(context.Background(), s)
	require.NoError(t, err)

	sources := make([]string, 0, len(rep.Events))
	for _, e := range rep.Events {
		sources = append(sources, e.Source)
	}
	assert.Equal(t, []string{
		"todos.0.done",
		"filter", "todos", "todos.0.done", "nextTick",
		"todos",
		"todos",
	}, sources)

	assert.Equal(t, event{-1, "todos.0.done", "false", ""}, rep.Events[0])
	assert.Equal(t, event{0, "filter", `"done"`, `"all"`}, rep.Events[1])
	assert.Equal(t, event{0, "todos.0.done", "true", "false"}, rep.Events[3])
	assert.Equal(t, 1, rep.Events[5].Tick)
	assert.Contains(t, rep.Events[5].NewValue, "celebrate")

	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], `unknown op "frobnicate"`)
	assert.Empty(t, rep.Warnings)
	assert.Equal(t, uint64(3), rep.Stats.Flushes)

	assert.Equal(t, map[string]any{
		"filter": "done",
		"todos": []any{
			map[string]any{"text": "write tests", "done": true},
			map[string]any{"text": "celebrate", "done": false},
		},
		"owner": map[string]any{"name": "ada"},
	}, reactive.ToPlain(rep.State))
}

func TestReplayReportsWarnings(t *testing.T) {
	s, err := parseScript([]byte(`
state: {n: 0}
watch:
  - path: "n["
ticks:
  - - {op: del, path: missing}
`))
	require.NoError(t, err)

	rep, err := replay(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "failed watching path")
	assert.Empty(t, rep.Errors)

	rep, err = replay(context.Background(), s, reactive.WithDevMode(false))
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)
}

func TestReplayStopsWithContext(t *testing.T) {
	s, err := parseScript([]byte("state: {n: 0}\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = replay(ctx, s)
	// either the loop saw the cancellation first or it finished the script
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestParseScriptNeedsState(t *testing.T) {
	_, err := parseScript([]byte("watch: []\n"))
	assert.ErrorIs(t, err, errEmptyScript)

	_, err = parseScript([]byte("state: [1, 2]\n"))
	assert.Error(t, err)
}

func TestApplyStepErrors(t *testing.T) {
	rt := reactive.New(tick.NewManual())
	root := reactive.NewObject("list", reactive.NewArray(1), "n", 1)
	rt.Observe(root)

	for name, st := range map[string]step{
		"bad index":     {Op: "set", Path: "list.x"},
		"out of range":  {Op: reactive.MethodPush, Path: "list.3"},
		"not an array":  {Op: reactive.MethodPush, Path: "n"},
		"missing key":   {Op: "set", Path: "nope.a"},
		"into a scalar": {Op: "del", Path: "n.a"},
		"empty path":    {Op: "del"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, applyStep(rt, root, st, nil))
		})
	}

	require.NoError(t, applyStep(rt, root, step{Op: "set", Path: "list.2"}, nil))
	assert.Equal(t, 3, root.Get("list").(*reactive.Array).Len())
}

func TestPrintReport(t *testing.T) {
	s, err := loadScript("testdata/todo.yaml")
	require.NoError(t, err)
	rep, err := replay(context.Background(), s)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, rep, true))
	out := buf.String()
	assert.Contains(t, out, "setup")
	assert.Contains(t, out, "reactor_flushes_total")
	assert.Contains(t, out, "unknown op")
	assert.Contains(t, out, "name: ada")
	assert.Contains(t, out, "state digest: ")
}

func TestReplayIsDeterministic(t *testing.T) {
	var digests []uint64
	for range 2 {
		s, err := loadScript("testdata/todo.yaml")
		require.NoError(t, err)
		rep, err := replay(context.Background(), s)
		require.NoError(t, err)
		digests = append(digests, rep.Digest)
	}
	assert.NotZero(t, digests[0])
	assert.Equal(t, digests[0], digests[1])
}
