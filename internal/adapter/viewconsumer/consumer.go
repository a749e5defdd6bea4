// Package viewconsumer adapts an embedded browser view to the pipeline
// consumer interfaces. It depends only on the small View interface so the
// cgo-backed webview stays in the command that owns the UI thread.
package viewconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/adcontext-bridge/internal/pipeline"
)

const (
	resultBinding = "__adcontextResult"
	loadedBinding = "__adcontextLoaded"
)

// View is the subset of webview.WebView the consumer needs.
type View interface {
	Dispatch(f func())
	Eval(js string)
	Bind(name string, f any) error
	Init(js string)
}

// Consumer evaluates scripts in a View. It implements pipeline.Consumer and
// pipeline.LoadNotifier.
type Consumer struct {
	view   View
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan evalResult
	onLoad  []func()
	loaded  bool
}

type evalResult struct {
	value string
	err   error
}

// New binds the result and load callbacks into view. Call it before the view
// navigates so the load hook is installed on the first page.
func New(view View, logger *slog.Logger) (*Consumer, error) {
	c := &Consumer{
		view:    view,
		logger:  logger,
		pending: make(map[string]chan evalResult),
	}
	if err := view.Bind(resultBinding, c.onResult); err != nil {
		return nil, fmt.Errorf("bind %s: %w", resultBinding, err)
	}
	if err := view.Bind(loadedBinding, c.onLoaded); err != nil {
		return nil, fmt.Errorf("bind %s: %w", loadedBinding, err)
	}
	view.Init(loadHook)
	return c, nil
}

var loadHook = fmt.Sprintf(`window.addEventListener('load', function () { window.%s(); });`, loadedBinding)

// Evaluate runs script on the UI thread and waits for its result.
func (c *Consumer) Evaluate(ctx context.Context, script string) (string, error) {
	id := uuid.NewString()
	ch := make(chan evalResult, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	js := wrapScript(id, script)
	c.view.Dispatch(func() { c.view.Eval(js) })

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// OnLoadFinished registers fn for every page load. If a page already loaded,
// fn runs immediately.
func (c *Consumer) OnLoadFinished(fn func()) {
	c.mu.Lock()
	c.onLoad = append(c.onLoad, fn)
	loaded := c.loaded
	c.mu.Unlock()

	if loaded {
		fn()
	}
}

// WeakHandle returns a handle that does not keep the consumer alive.
func (c *Consumer) WeakHandle() pipeline.Handle {
	return pipeline.Weak(c)
}

func (c *Consumer) onResult(id, value, errMsg string) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	r := evalResult{value: value}
	if errMsg != "" {
		r.err = errors.New("script error: " + errMsg)
	}
	select {
	case ch <- r:
	default:
	}
}

func (c *Consumer) onLoaded() {
	c.mu.Lock()
	c.loaded = true
	fns := append([]func(){}, c.onLoad...)
	c.mu.Unlock()

	c.logger.Debug("view page loaded")
	for _, fn := range fns {
		// Bound callbacks run on the UI thread; Evaluate would deadlock there.
		go fn()
	}
}

// wrapScript evaluates script indirectly and reports the stringified result
// or the thrown error through the result binding.
func wrapScript(id, script string) string {
	return fmt.Sprintf(`(function () {
  var id = %[1]s;
  try {
    var r = (0, eval)(%[2]s);
    window.%[3]s(id, r === undefined || r === null ? '' : String(r), '');
  } catch (e) {
    window.%[3]s(id, '', String(e && e.message || e));
  }
})()`, quote(id), quote(script), resultBinding)
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
