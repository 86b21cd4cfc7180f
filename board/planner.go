package board

import "github.com/oceanondawave/CigroTrack-sub001/domain"

// initialOrder ranks the first card dropped into an empty column.
const initialOrder = 1

// MoveDelta is the single-issue change a move produces. Exactly one issue is
// touched; its neighbors keep their orders because fractional ranks make
// room between them.
type MoveDelta struct {
	IssueID    string
	FromStatus string
	ToStatus   string
	Order      float64
}

// PlanMove computes the delta for dropping an issue onto toStatus at the
// given visual index. A nil index appends to the end of the column. The
// returned bool is false when the drop changes nothing, in which case no
// delta must be applied and no remote call made.
func PlanMove(b Board, issueID, toStatus string, targetIndex *int) (MoveDelta, bool, error) {
	issue, ok := b.Find(issueID)
	if !ok {
		return MoveDelta{}, false, domain.NotFoundf("issue %s not on the board", issueID)
	}
	dest, ok := b.Columns[toStatus]
	if !ok {
		return MoveDelta{}, false, domain.Validationf("unknown status %q", toStatus)
	}

	sameColumn := issue.Status == toStatus
	if sameColumn && targetIndex == nil {
		return MoveDelta{}, false, nil
	}

	// Rank against the column as it will look without the moving issue.
	neighbors := dest
	currentIdx := -1
	if sameColumn {
		currentIdx = indexOf(dest, issueID)
		neighbors = make([]domain.Issue, 0, len(dest)-1)
		for _, n := range dest {
			if n.ID != issueID {
				neighbors = append(neighbors, n)
			}
		}
	}

	var order float64
	if targetIndex == nil {
		order = appendOrder(neighbors)
	} else {
		idx := clampIndex(*targetIndex, len(neighbors))
		if sameColumn && idx == currentIdx {
			return MoveDelta{}, false, nil
		}
		order = orderAt(neighbors, idx)
	}

	return MoveDelta{
		IssueID:    issue.ID,
		FromStatus: issue.Status,
		ToStatus:   toStatus,
		Order:      order,
	}, true, nil
}

// appendOrder ranks a card after everything currently in the column.
func appendOrder(bucket []domain.Issue) float64 {
	if len(bucket) == 0 {
		return initialOrder
	}
	return bucket[len(bucket)-1].Order + 1
}

// orderAt computes the fractional rank for inserting at idx: the midpoint of
// the surrounding ranks, stepping past the boundary rank when there is no
// neighbor on one side.
func orderAt(bucket []domain.Issue, idx int) float64 {
	switch {
	case len(bucket) == 0:
		return initialOrder
	case idx <= 0:
		return bucket[0].Order - 1
	case idx >= len(bucket):
		return bucket[len(bucket)-1].Order + 1
	default:
		return (bucket[idx-1].Order + bucket[idx].Order) / 2
	}
}

func clampIndex(idx, max int) int {
	if idx < 0 {
		return 0
	}
	if idx > max {
		return max
	}
	return idx
}

func indexOf(bucket []domain.Issue, issueID string) int {
	for i, issue := range bucket {
		if issue.ID == issueID {
			return i
		}
	}
	return -1
}
