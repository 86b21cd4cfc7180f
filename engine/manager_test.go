package engine

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

func TestManagerReturnsOneEnginePerProject(t *testing.T) {
	fb := seedBackend()
	logger, _ := test.NewNullLogger()
	mgr := NewManager(fb, logger)

	first := mgr.Project(context.Background(), "p1")
	second := mgr.Project(context.Background(), "p1")
	other := mgr.Project(context.Background(), "p2")

	if first != second {
		t.Fatal("expected the same engine for repeated lookups")
	}
	if first == other {
		t.Fatal("expected distinct engines per project")
	}
	if fb.callCount("FetchStatuses") != 2 {
		t.Fatalf("expected one initial load per project, got %d", fb.callCount("FetchStatuses"))
	}
}

func TestManagerKeepsEngineOnFailedInitialLoad(t *testing.T) {
	fb := seedBackend()
	fb.fetchErr = domain.Transportf(nil, "backend down")
	logger, _ := test.NewNullLogger()
	mgr := NewManager(fb, logger)

	eng := mgr.Project(context.Background(), "p1")
	if eng == nil {
		t.Fatal("expected an engine despite the failed load")
	}
	if eng.View().Err == "" {
		t.Fatal("expected load failure surfaced on the view")
	}

	// A later refresh recovers once the backend is reachable again.
	fb.fetchErr = nil
	if err := eng.Refresh(context.Background()); err != nil {
		t.Fatalf("recovery refresh: %v", err)
	}
	if got := len(eng.View().Columns); got != 3 {
		t.Fatalf("expected recovered board, got %d columns", got)
	}
}
