package api

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
	"github.com/oceanondawave/CigroTrack-sub001/engine"
)

func benchView(issues int) engine.View {
	names := []string{"Backlog", "InProgress", "Review", "Blocked", "Done"}
	created := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	statuses := make([]domain.CustomStatus, len(names))
	columns := make(map[string][]domain.Issue, len(names))
	three := 3
	limits := map[string]*int{"InProgress": &three}

	for i, name := range names {
		statuses[i] = domain.CustomStatus{ID: "s" + strconv.Itoa(i), ProjectID: "p1", Name: name, Position: i, CreatedAt: created}
		columns[name] = nil
	}
	for i := 0; i < issues; i++ {
		name := names[i%len(names)]
		columns[name] = append(columns[name], domain.Issue{
			ID:        "i" + strconv.Itoa(i),
			ProjectID: "p1",
			Title:     "Issue " + strconv.Itoa(i),
			Status:    name,
			Order:     float64(i),
		})
	}
	return engine.View{
		ProjectID: "p1",
		Statuses:  statuses,
		Columns:   columns,
		WipLimits: limits,
		Version:   1,
	}
}

func BenchmarkRenderBoard(b *testing.B) {
	for _, size := range []int{10, 200, 2000} {
		b.Run(fmt.Sprintf("issues_%d", size), func(b *testing.B) {
			v := benchView(size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				resp := renderBoard(v)
				if len(resp.Columns) != 5 {
					b.Fatalf("unexpected render %d columns", len(resp.Columns))
				}
			}
		})
	}
}
