package board

// WipState classifies a column's issue count against its WIP limit.
type WipState int

const (
	WipWithinLimit WipState = iota
	WipAtLimit
	WipOverLimit
)

// String returns the wire label used by the gateway API.
func (s WipState) String() string {
	switch s {
	case WipAtLimit:
		return "at_limit"
	case WipOverLimit:
		return "over_limit"
	default:
		return "within_limit"
	}
}

// ClassifyWip grades count against limit. A nil limit means the column is
// unlimited. Reaching the limit exactly is at the limit, not over it.
func ClassifyWip(count int, limit *int) WipState {
	if limit == nil {
		return WipWithinLimit
	}
	switch {
	case count > *limit:
		return WipOverLimit
	case count == *limit:
		return WipAtLimit
	default:
		return WipWithinLimit
	}
}
