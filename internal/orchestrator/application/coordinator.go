package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/tenant-commerce/internal/orchestrator/domain"
)

// Step is one unit of saga work. Compensate undoes a successful Execute.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// StepFunc adapts a pair of functions to Step. A nil Undo means the step has
// nothing to compensate.
type StepFunc struct {
	Label string
	Do    func(ctx context.Context) error
	Undo  func(ctx context.Context) error
}

func (s StepFunc) Name() string { return s.Label }

func (s StepFunc) Execute(ctx context.Context) error { return s.Do(ctx) }

func (s StepFunc) Compensate(ctx context.Context) error {
	if s.Undo == nil {
		return nil
	}
	return s.Undo(ctx)
}

// Coordinator runs steps in order and compensates the completed ones in
// reverse when a step fails.
type Coordinator struct {
	log     *slog.Logger
	tracer  trace.Tracer
	outcome *prometheus.CounterVec

	compensationTimeout time.Duration
	now                 func() time.Time
}

func NewCoordinator(log *slog.Logger) *Coordinator {
	return &Coordinator{
		log:    log,
		tracer: otel.Tracer("github.com/dmehra2102/tenant-commerce/internal/orchestrator"),
		outcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: "saga",
			Name:      "runs_total",
			Help:      "Saga runs by name and final state.",
		}, []string{"saga", "state"}),
		compensationTimeout: 30 * time.Second,
		now:                 time.Now,
	}
}

func (c *Coordinator) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{c.outcome}
}

// Run executes steps for the saga identified by id. On failure it returns the
// failing step's error unchanged, after compensation has finished.
func (c *Coordinator) Run(ctx context.Context, name, id string, steps []Step) (*domain.Saga, error) {
	saga := &domain.Saga{ID: id, Name: name, State: domain.StateStarted, StartedAt: c.now()}
	ctx, span := c.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("saga.id", id)))
	defer span.End()

	var done []Step
	for _, step := range steps {
		c.log.DebugContext(ctx, "saga step executing", "saga", name, "saga_id", id, "step", step.Name())
		if err := c.execute(ctx, step); err != nil {
			c.log.WarnContext(ctx, "saga step failed", "saga", name, "saga_id", id, "step", step.Name(), "err", err)
			saga.Fail(step.Name(), err)
			span.SetStatus(codes.Error, err.Error())
			c.rollback(ctx, saga, done)
			c.finish(saga)
			return saga, err
		}
		saga.StepDone(step.Name())
		done = append(done, step)
	}

	saga.State = domain.StateCompleted
	c.finish(saga)
	return saga, nil
}

func (c *Coordinator) execute(ctx context.Context, step Step) error {
	ctx, span := c.tracer.Start(ctx, step.Name())
	defer span.End()
	if err := step.Execute(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Coordinator) rollback(ctx context.Context, saga *domain.Saga, done []Step) {
	if len(done) == 0 {
		saga.State = domain.StateCompensated
		return
	}
	saga.State = domain.StateCompensating

	// Compensation must run even when the caller has gone away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.compensationTimeout)
	defer cancel()

	failed := false
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		c.log.InfoContext(ctx, "saga step compensating", "saga", saga.Name, "saga_id", saga.ID, "step", step.Name())
		sctx, span := c.tracer.Start(ctx, "compensate "+step.Name())
		err := step.Compensate(sctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			failed = true
			saga.CompensationFailed(step.Name(), err)
			c.log.ErrorContext(ctx, "saga compensation failed", "saga", saga.Name, "saga_id", saga.ID, "step", step.Name(), "err", err)
		}
		span.End()
	}
	if failed {
		saga.State = domain.StateFailed
		return
	}
	saga.State = domain.StateCompensated
}

func (c *Coordinator) finish(saga *domain.Saga) {
	saga.CompletedAt = c.now()
	c.outcome.WithLabelValues(saga.Name, string(saga.State)).Inc()
}
