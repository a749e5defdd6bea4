// Package pipeline joins a consumer with its assembled snapshots and delivers
// them as an ordered sequence of scripts.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/observability"
)

const (
	// DefaultRetryDelay is the wait before the single completion hook retry.
	DefaultRetryDelay = time.Second
	// DefaultStepTimeout bounds one script evaluation.
	DefaultStepTimeout = 5 * time.Second
)

const tracerName = "github.com/couchcryptid/adcontext-bridge/internal/pipeline"

// ReportPublisher receives the report of every finished delivery.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report domain.DeliveryReport) error
}

// Options configures a Pipeline.
type Options struct {
	RetryDelay  time.Duration
	StepTimeout time.Duration
	Clock       clockwork.Clock
	Reports     ReportPublisher // optional
}

// Pipeline executes delivery steps one at a time against a consumer. A failed
// step is logged and the next step still runs.
type Pipeline struct {
	retryDelay  time.Duration
	stepTimeout time.Duration
	clock       clockwork.Clock
	reports     ReportPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Pipeline.
func New(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		retryDelay:  opts.RetryDelay,
		stepTimeout: opts.StepTimeout,
		clock:       opts.Clock,
		reports:     opts.Reports,
		tracer:      otel.Tracer(tracerName),
		logger:      logger,
		metrics:     metrics,
	}
}

type registrationKey struct{}

// WithRegistrationID tags ctx with the registration a delivery belongs to.
func WithRegistrationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, registrationKey{}, id)
}

// RegistrationID returns the registration id carried by ctx, if any.
func RegistrationID(ctx context.Context) string {
	id, _ := ctx.Value(registrationKey{}).(string)
	return id
}

// Deliver runs the delivery in the background. Cancelling ctx does not stop
// it; once started the step list runs to the end.
func (p *Pipeline) Deliver(ctx context.Context, h Handle, s domain.Snapshots) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		report := p.Run(ctx, h, s)
		if p.reports == nil {
			return
		}
		if err := p.reports.PublishReport(ctx, report); err != nil {
			p.metrics.ReportErrors.Inc()
			p.logger.Warn("publish delivery report failed",
				"registration_id", report.RegistrationID,
				"error", err,
			)
			return
		}
		p.metrics.ReportsPublished.Inc()
	}()
}

// Run executes all steps synchronously and returns the report.
func (p *Pipeline) Run(ctx context.Context, h Handle, s domain.Snapshots) domain.DeliveryReport {
	start := p.clock.Now()
	regID := RegistrationID(ctx)
	logger := p.logger.With("registration_id", regID)

	ctx, span := p.tracer.Start(ctx, "delivery", trace.WithAttributes(
		attribute.String("registration_id", regID),
	))
	defer span.End()

	report := domain.DeliveryReport{RegistrationID: regID}
	if s.Device != nil {
		report.ConnectionType = s.Device.ConnectionType
	}

	for _, step := range BuildSteps(s) {
		result, err := p.runStep(ctx, h, step)
		report.Steps = append(report.Steps, outcome(step.Name, err))
		p.recordStep(logger, step.Name, err)

		switch step.Name {
		case StepVerify:
			if err == nil {
				logger.Debug("consumer slots", "kinds", result)
			}
		case StepInvokeCompletion:
			if err != nil {
				break
			}
			report.HookInvoked = result == "true"
			if !report.HookInvoked {
				report.Retried = true
				report.HookInvoked = p.retryCompletion(ctx, logger, h, step)
			}
		}
	}

	switch {
	case report.HookInvoked && report.Retried:
		p.metrics.CompletionHook.WithLabelValues("retried").Inc()
	case report.HookInvoked:
		p.metrics.CompletionHook.WithLabelValues("invoked").Inc()
	default:
		p.metrics.CompletionHook.WithLabelValues("missing").Inc()
	}

	elapsed := p.clock.Since(start)
	report.DurationMillis = elapsed.Milliseconds()
	report.DeliveredAt = p.clock.Now().UTC()
	p.metrics.DeliveryDuration.Observe(elapsed.Seconds())

	span.SetAttributes(
		attribute.Bool("hook_invoked", report.HookInvoked),
		attribute.Bool("retried", report.Retried),
		attribute.Int("failed_steps", report.Failed()),
	)
	logger.Info("delivery finished",
		"failed_steps", report.Failed(),
		"hook_invoked", report.HookInvoked,
		"retried", report.Retried,
	)
	return report
}

// retryCompletion waits once for the retry delay and re-runs the completion
// step. It never retries again.
func (p *Pipeline) retryCompletion(ctx context.Context, logger *slog.Logger, h Handle, step Step) bool {
	logger.Debug("completion hook not defined, retrying once", "delay", p.retryDelay)

	select {
	case <-p.clock.After(p.retryDelay):
	case <-ctx.Done():
		return false
	}

	result, err := p.runStep(ctx, h, step)
	if err != nil {
		p.recordStep(logger, step.Name, err)
		return false
	}
	if result != "true" {
		logger.Info("completion hook still not defined after retry")
		return false
	}
	return true
}

func (p *Pipeline) runStep(ctx context.Context, h Handle, step Step) (string, error) {
	ctx, span := p.tracer.Start(ctx, step.Name)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	result, err := evaluate(ctx, h, step.Script)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (p *Pipeline) recordStep(logger *slog.Logger, name string, err error) {
	if err == nil {
		p.metrics.DeliverySteps.WithLabelValues(name, "success").Inc()
		return
	}
	p.metrics.DeliverySteps.WithLabelValues(name, "error").Inc()
	if errors.Is(err, domain.ErrConsumerGone) {
		logger.Debug("delivery step skipped, consumer released", "step", name)
		return
	}
	logger.Warn("delivery step failed", "step", name, "error", err)
}

func outcome(name string, err error) domain.StepOutcome {
	if err != nil {
		return domain.StepOutcome{Name: name, Error: err.Error()}
	}
	return domain.StepOutcome{Name: name, OK: true}
}
