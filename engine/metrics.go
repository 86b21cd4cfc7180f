package engine

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

const (
	tracerName    = "cigrotrack/board-engine"
	opEventName   = "board.sync.op"
	opEventDomain = "cigrotrack.board"

	stageValidate = "validate"
	stagePlan     = "plan"
	stageRemote   = "remote"
)

// opMetrics collects staged timings for one engine operation and emits them
// as an OTel span plus a structured log entry when the operation finishes.
type opMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	op        string
	projectID string

	planDuration     time.Duration
	applyDuration    time.Duration
	remoteDuration   time.Duration
	confirmDuration  time.Duration
	noop             bool
	rolledBack       bool
	refreshTriggered bool
	errorStage       string
}

// newOpMetrics starts the operation span. The returned context carries it so
// nested work (the backend call, a follow-up refresh) is recorded underneath.
func newOpMetrics(ctx context.Context, logger *log.Logger, op, projectID string) (*opMetrics, context.Context) {
	tracer := otel.GetTracerProvider().Tracer(tracerName)
	spanCtx, span := tracer.Start(ctx, "board."+op)
	return &opMetrics{
		logger:    logger,
		span:      span,
		start:     time.Now(),
		op:        op,
		projectID: projectID,
	}, spanCtx
}

func (m *opMetrics) ObservePlan(d time.Duration) {
	if d <= 0 {
		return
	}
	m.planDuration = d
}

func (m *opMetrics) ObserveApply(d time.Duration) {
	if d <= 0 {
		return
	}
	m.applyDuration = d
}

func (m *opMetrics) ObserveRemote(d time.Duration) {
	if d <= 0 {
		return
	}
	m.remoteDuration = d
}

func (m *opMetrics) ObserveConfirm(d time.Duration) {
	if d <= 0 {
		return
	}
	m.confirmDuration = d
}

func (m *opMetrics) SetNoop()             { m.noop = true }
func (m *opMetrics) SetRolledBack()       { m.rolledBack = true }
func (m *opMetrics) SetRefreshTriggered() { m.refreshTriggered = true }

func (m *opMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log closes the span and writes the observability event. Call exactly once
// per operation.
func (m *opMetrics) Log(err error) {
	if m == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("cigro.board.op", m.op),
		attribute.String("cigro.board.project_id", m.projectID),
		attribute.Float64("cigro.board.total_ms", totalMs),
		attribute.Bool("cigro.board.noop", m.noop),
		attribute.Bool("cigro.board.rolled_back", m.rolledBack),
		attribute.Bool("cigro.board.refresh_triggered", m.refreshTriggered),
	}
	if m.planDuration > 0 {
		attrs = append(attrs, attribute.Float64("cigro.board.plan_ms", durationToMillis(m.planDuration)))
	}
	if m.applyDuration > 0 {
		attrs = append(attrs, attribute.Float64("cigro.board.apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.remoteDuration > 0 {
		attrs = append(attrs, attribute.Float64("cigro.board.remote_ms", durationToMillis(m.remoteDuration)))
	}
	if m.confirmDuration > 0 {
		attrs = append(attrs, attribute.Float64("cigro.board.confirm_ms", durationToMillis(m.confirmDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("cigro.board.error_stage", m.errorStage))
	}

	severityText, severityNumber := severityForOutcome(err)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", opEventName),
		attribute.String("event.domain", opEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil && !userFacing(err) {
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      opEventName,
		"event.domain":    opEventDomain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error("observability.event")
	case "WARN":
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

// severityForOutcome maps an operation result onto log severity. Rejections
// the user can correct are warnings; transport and unknown failures are
// errors.
func severityForOutcome(err error) (string, int) {
	switch {
	case err == nil:
		return "INFO", 9
	case userFacing(err):
		return "WARN", 13
	default:
		return "ERROR", 17
	}
}

func userFacing(err error) bool {
	return domain.IsValidation(err) || domain.IsConflict(err) || domain.IsNotFound(err)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
