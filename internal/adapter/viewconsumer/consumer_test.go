package viewconsumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeView answers each Eval through the bound result callback.
type fakeView struct {
	bindings map[string]any
	inits    []string
	answer   func(script string) (string, string)
	bindErr  error
}

func newFakeView(answer func(string) (string, string)) *fakeView {
	return &fakeView{bindings: map[string]any{}, answer: answer}
}

func (v *fakeView) Dispatch(f func()) { go f() }

var idPattern = regexp.MustCompile(`var id = "([^"]+)";`)

func (v *fakeView) Eval(js string) {
	m := idPattern.FindStringSubmatch(js)
	if m == nil || v.answer == nil {
		return
	}
	value, errMsg := v.answer(js)
	v.bindings[resultBinding].(func(string, string, string))(m[1], value, errMsg)
}

func (v *fakeView) Bind(name string, f any) error {
	if v.bindErr != nil {
		return v.bindErr
	}
	v.bindings[name] = f
	return nil
}

func (v *fakeView) Init(js string) { v.inits = append(v.inits, js) }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNew_InstallsHooks(t *testing.T) {
	v := newFakeView(nil)
	_, err := New(v, discard())
	require.NoError(t, err)

	assert.Contains(t, v.bindings, resultBinding)
	assert.Contains(t, v.bindings, loadedBinding)
	require.Len(t, v.inits, 1)
	assert.Contains(t, v.inits[0], "addEventListener('load'")
}

func TestNew_BindError(t *testing.T) {
	v := newFakeView(nil)
	v.bindErr = errors.New("already bound")
	_, err := New(v, discard())
	require.Error(t, err)
}

func TestEvaluate_Result(t *testing.T) {
	v := newFakeView(func(string) (string, string) { return "true", "" })
	c, err := New(v, discard())
	require.NoError(t, err)

	got, err := c.Evaluate(context.Background(), "window.onSdkDataReady()")
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

func TestEvaluate_ScriptError(t *testing.T) {
	v := newFakeView(func(string) (string, string) { return "", "boom" })
	c, err := New(v, discard())
	require.NoError(t, err)

	_, err = c.Evaluate(context.Background(), "throw new Error('boom')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEvaluate_ContextDeadline(t *testing.T) {
	c, err := New(newFakeView(nil), discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Evaluate(ctx, "1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOnLoadFinished(t *testing.T) {
	v := newFakeView(nil)
	c, err := New(v, discard())
	require.NoError(t, err)

	var calls atomic.Int32
	c.OnLoadFinished(func() { calls.Add(1) })
	v.bindings[loadedBinding].(func())()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	c.OnLoadFinished(func() { calls.Add(1) })
	assert.Equal(t, int32(2), calls.Load())
}

func TestWrapScript_QuotesScript(t *testing.T) {
	js := wrapScript("id-1", `window.x = "</script>";`)
	assert.Contains(t, js, `var id = "id-1";`)
	assert.Contains(t, js, `(0, eval)("window.x = \"\u003c/script\u003e\";")`)
}
