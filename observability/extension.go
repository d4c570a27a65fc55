package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/seqra/seqra/ext"
	"github.com/seqra/seqra/workflow"
)

// meterName is the instrumentation scope name for seqra metrics.
const meterName = "github.com/seqra/seqra"

// Compile-time interface checks.
var (
	_ ext.Extension              = (*MetricsExtension)(nil)
	_ ext.TaskCompleted          = (*MetricsExtension)(nil)
	_ ext.TaskFailed             = (*MetricsExtension)(nil)
	_ ext.TaskSkipped            = (*MetricsExtension)(nil)
	_ ext.WorkflowStarted        = (*MetricsExtension)(nil)
	_ ext.WorkflowCompleted      = (*MetricsExtension)(nil)
	_ ext.WorkflowFailed         = (*MetricsExtension)(nil)
	_ ext.WorkflowCancelled      = (*MetricsExtension)(nil)
	_ ext.WorkflowAwaitingResume = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics through the
// OTel metric API. With no MeterProvider configured the instruments are
// noops and the extension is a pass-through.
//
// Instruments:
//   - seqra.task.duration (Float64Histogram): task execution time in
//     seconds, with attributes: task, status
//   - seqra.task.transitions (Int64Counter): task terminal transitions,
//     with attributes: task, status
//   - seqra.workflow.transitions (Int64Counter): workflow outcomes,
//     with attribute: outcome
type MetricsExtension struct {
	taskDuration        metric.Float64Histogram
	taskTransitions     metric.Int64Counter
	workflowTransitions metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	duration, _ := meter.Float64Histogram(
		"seqra.task.duration",
		metric.WithDescription("Duration of task execution in seconds"),
		metric.WithUnit("s"),
	)
	taskTransitions, _ := meter.Int64Counter(
		"seqra.task.transitions",
		metric.WithDescription("Total task terminal transitions"),
		metric.WithUnit("{transition}"),
	)
	workflowTransitions, _ := meter.Int64Counter(
		"seqra.workflow.transitions",
		metric.WithDescription("Total workflow outcome transitions"),
		metric.WithUnit("{transition}"),
	)
	return &MetricsExtension{
		taskDuration:        duration,
		taskTransitions:     taskTransitions,
		workflowTransitions: workflowTransitions,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnTaskCompleted implements ext.TaskCompleted.
func (m *MetricsExtension) OnTaskCompleted(ctx context.Context, _ *workflow.State, taskName string, elapsed time.Duration) error {
	attrs := metric.WithAttributes(
		attribute.String("task", taskName),
		attribute.String("status", "completed"),
	)
	m.taskDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.taskTransitions.Add(ctx, 1, attrs)
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (m *MetricsExtension) OnTaskFailed(ctx context.Context, _ *workflow.State, taskName string, _ error) error {
	m.taskTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", taskName),
		attribute.String("status", "failed"),
	))
	return nil
}

// OnTaskSkipped implements ext.TaskSkipped.
func (m *MetricsExtension) OnTaskSkipped(ctx context.Context, _ *workflow.State, taskName string) error {
	m.taskTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", taskName),
		attribute.String("status", "skipped"),
	))
	return nil
}

// OnWorkflowStarted implements ext.WorkflowStarted.
func (m *MetricsExtension) OnWorkflowStarted(ctx context.Context, _ *workflow.State) error {
	m.workflowTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(workflow.OutcomeRunning)),
	))
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (m *MetricsExtension) OnWorkflowCompleted(ctx context.Context, st *workflow.State, _ time.Duration) error {
	m.workflowTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(st.Outcome)),
	))
	return nil
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (m *MetricsExtension) OnWorkflowFailed(ctx context.Context, _ *workflow.State, _ error) error {
	m.workflowTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(workflow.OutcomeFailed)),
	))
	return nil
}

// OnWorkflowCancelled implements ext.WorkflowCancelled.
func (m *MetricsExtension) OnWorkflowCancelled(ctx context.Context, _ *workflow.State) error {
	m.workflowTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(workflow.OutcomeCancelled)),
	))
	return nil
}

// OnWorkflowAwaitingResume implements ext.WorkflowAwaitingResume.
func (m *MetricsExtension) OnWorkflowAwaitingResume(ctx context.Context, _ *workflow.State) error {
	m.workflowTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(workflow.OutcomeAwaitingResume)),
	))
	return nil
}
