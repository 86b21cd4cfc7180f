package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	}
	return tp, exporter, cleanup
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestOpMetricsLogProducesObservabilityEvent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	m, _ := newOpMetrics(context.Background(), logger, "move_issue", "p1")
	m.start = m.start.Add(-40 * time.Millisecond)
	m.ObservePlan(2 * time.Millisecond)
	m.ObserveApply(3 * time.Millisecond)
	m.ObserveRemote(20 * time.Millisecond)
	m.ObserveConfirm(1 * time.Millisecond)

	m.Log(nil)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Message != "observability.event" {
		t.Fatalf("unexpected message: %s", entry.Message)
	}
	if got := entry.Data["event.name"]; got != opEventName {
		t.Fatalf("unexpected event name: %v", got)
	}
	if got := entry.Data["event.domain"]; got != opEventDomain {
		t.Fatalf("unexpected event domain: %v", got)
	}
	if entry.Data["severity_text"] != "INFO" {
		t.Fatalf("unexpected severity: %v", entry.Data["severity_text"])
	}
	attrsVal, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrsVal["cigro.board.op"] != "move_issue" {
		t.Fatalf("unexpected op attribute: %#v", attrsVal["cigro.board.op"])
	}
	if attrsVal["cigro.board.project_id"] != "p1" {
		t.Fatalf("unexpected project attribute: %#v", attrsVal["cigro.board.project_id"])
	}
	if total, ok := attrsVal["cigro.board.total_ms"].(float64); !ok || total <= 0 {
		t.Fatalf("expected total duration attribute, got %#v", attrsVal["cigro.board.total_ms"])
	}
	if traceID, ok := entry.Data["trace_id"].(string); !ok || traceID == "" {
		t.Fatalf("expected trace_id, got %#v", entry.Data["trace_id"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "board.move_issue" {
		t.Fatalf("unexpected span name: %s", span.Name)
	}
	if span.Status.Code != codes.Ok {
		t.Fatalf("expected span status Ok, got %v", span.Status.Code)
	}

	var event sdktrace.Event
	for _, ev := range span.Events {
		if ev.Name == "observability.event" {
			event = ev
			break
		}
	}
	if event.Name == "" {
		t.Fatalf("expected observability.event span event, got %#v", span.Events)
	}
	eventAttrs := attributesToMap(event.Attributes)
	if eventAttrs["severity_text"] != "INFO" {
		t.Fatalf("unexpected span event severity: %#v", eventAttrs["severity_text"])
	}
	if remote, ok := eventAttrs["cigro.board.remote_ms"].(float64); !ok || remote != 20 {
		t.Fatalf("expected remote stage timing, got %#v", eventAttrs["cigro.board.remote_ms"])
	}
}

func TestOpMetricsTransportFailureSetsSpanError(t *testing.T) {
	logger, hook := test.NewNullLogger()

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	m, _ := newOpMetrics(context.Background(), logger, "delete_status", "p1")
	m.SetRolledBack()
	m.SetErrorStage(stageRemote)
	boom := domain.Transportf(errors.New("502"), "delete status")

	m.Log(boom)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status.Code != codes.Error {
		t.Fatalf("expected span status error, got %v", span.Status.Code)
	}
	if span.Status.Description == "" {
		t.Fatal("expected status description for error")
	}

	var event sdktrace.Event
	for _, ev := range span.Events {
		if ev.Name == "observability.event" {
			event = ev
			break
		}
	}
	if event.Name == "" {
		t.Fatalf("expected observability event, got %#v", span.Events)
	}
	attrs := attributesToMap(event.Attributes)
	if attrs["severity_text"] != "ERROR" {
		t.Fatalf("unexpected severity: %#v", attrs["severity_text"])
	}
	if attrs["cigro.board.error_stage"] != stageRemote {
		t.Fatalf("expected error stage propagated, got %#v", attrs["cigro.board.error_stage"])
	}
	if attrs["cigro.board.rolled_back"] != true {
		t.Fatalf("expected rolled_back attribute, got %#v", attrs["cigro.board.rolled_back"])
	}
	if attrs["error.message"] != boom.Error() {
		t.Fatalf("expected error.message attribute, got %#v", attrs["error.message"])
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error-level log entry, got %#v", entry)
	}
}

func TestOpMetricsUserErrorLogsWarning(t *testing.T) {
	logger, hook := test.NewNullLogger()

	_, _, restore := setupTestTracer(t)
	defer restore()

	m, _ := newOpMetrics(context.Background(), logger, "delete_status", "p1")
	m.Log(domain.Conflictf("status in use"))

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected warn-level log entry, got %#v", entry)
	}
}

func TestSeverityForOutcome(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantText   string
		wantNumber int
	}{
		{name: "success", err: nil, wantText: "INFO", wantNumber: 9},
		{name: "validation", err: domain.Validationf("bad"), wantText: "WARN", wantNumber: 13},
		{name: "conflict", err: domain.Conflictf("busy"), wantText: "WARN", wantNumber: 13},
		{name: "not found", err: domain.NotFoundf("gone"), wantText: "WARN", wantNumber: 13},
		{name: "transport", err: domain.Transportf(nil, "down"), wantText: "ERROR", wantNumber: 17},
		{name: "unknown", err: errors.New("boom"), wantText: "ERROR", wantNumber: 17},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotText, gotNumber := severityForOutcome(tc.err)
			if gotText != tc.wantText || gotNumber != tc.wantNumber {
				t.Fatalf("severityForOutcome(%v) = %s/%d, want %s/%d", tc.err, gotText, gotNumber, tc.wantText, tc.wantNumber)
			}
		})
	}
}
