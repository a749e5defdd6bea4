package pipeline

import (
	"context"
	"weak"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

// Consumer evaluates scripts in the consumer's page context and returns the
// script's result rendered as a string.
type Consumer interface {
	Evaluate(ctx context.Context, script string) (string, error)
}

// LoadNotifier is implemented by consumers that signal when their page has
// finished loading. The callback may run on any goroutine.
type LoadNotifier interface {
	OnLoadFinished(func())
}

// Handle refers to a consumer without necessarily keeping it alive.
type Handle interface {
	// Consumer returns the consumer, or false once it has been released.
	Consumer() (Consumer, bool)
}

type weakHandle[T any, PT interface {
	*T
	Consumer
}] struct {
	ptr weak.Pointer[T]
}

// Weak returns a handle that does not keep c reachable. After the consumer is
// garbage collected, every evaluation through the handle fails with
// domain.ErrConsumerGone.
func Weak[T any, PT interface {
	*T
	Consumer
}](c PT) Handle {
	return weakHandle[T, PT]{ptr: weak.Make((*T)(c))}
}

func (h weakHandle[T, PT]) Consumer() (Consumer, bool) {
	v := h.ptr.Value()
	if v == nil {
		return nil, false
	}
	return PT(v), true
}

type strongHandle struct{ c Consumer }

// Strong returns a handle that keeps c alive. Used for consumers that are not
// pointers or that have no other owner.
func Strong(c Consumer) Handle { return strongHandle{c: c} }

func (h strongHandle) Consumer() (Consumer, bool) { return h.c, h.c != nil }

func evaluate(ctx context.Context, h Handle, script string) (string, error) {
	c, ok := h.Consumer()
	if !ok {
		return "", domain.ErrConsumerGone
	}
	return c.Evaluate(ctx, script)
}
