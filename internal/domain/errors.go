package domain

import "errors"

var (
	ErrNotInitialized       = errors.New("bridge is not initialized")
	ErrInjectionFailed      = errors.New("failed to inject script into consumer")
	ErrConsumerNotReady     = errors.New("consumer is not ready for script evaluation")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUnsupportedConsumer  = errors.New("consumer does not support script evaluation")

	// ErrConsumerGone is returned when a weakly held consumer has been released.
	ErrConsumerGone = errors.New("consumer is no longer available")
)

// Code returns the numeric error code reported to host applications, or 0
// when err does not wrap one of the bridge errors.
func Code(err error) int {
	switch {
	case errors.Is(err, ErrNotInitialized):
		return 1000
	case errors.Is(err, ErrInjectionFailed):
		return 1001
	case errors.Is(err, ErrConsumerNotReady):
		return 1002
	case errors.Is(err, ErrInvalidConfiguration):
		return 1003
	case errors.Is(err, ErrUnsupportedConsumer):
		return 1004
	default:
		return 0
	}
}
