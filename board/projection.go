package board

import (
	"sort"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

// Board is the projected kanban surface: one bucket per known status plus an
// orphan bucket for issues whose label matches no registry entry.
type Board struct {
	Columns map[string][]domain.Issue
	Orphans []domain.Issue
}

// Project groups a flat issue collection into ordered columns. A bucket is
// created for every status, including empty ones. Issues carrying a label
// with no matching status are collected into Orphans, never dropped. Inputs
// are not mutated.
func Project(issues []domain.Issue, statuses []domain.CustomStatus) Board {
	b := Board{Columns: make(map[string][]domain.Issue, len(statuses))}
	for _, s := range statuses {
		b.Columns[s.Name] = []domain.Issue{}
	}
	for _, issue := range issues {
		if _, ok := b.Columns[issue.Status]; ok {
			b.Columns[issue.Status] = append(b.Columns[issue.Status], issue)
		} else {
			b.Orphans = append(b.Orphans, issue)
		}
	}
	for name := range b.Columns {
		sortIssues(b.Columns[name])
	}
	sortIssues(b.Orphans)
	return b
}

// sortIssues orders a bucket by ascending order, ties broken by id.
func sortIssues(issues []domain.Issue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Order != issues[j].Order {
			return issues[i].Order < issues[j].Order
		}
		return issues[i].ID < issues[j].ID
	})
}

// Clone returns a deep copy of the board. Issues are value types, so copying
// the bucket slices is a full copy.
func (b Board) Clone() Board {
	out := Board{Columns: make(map[string][]domain.Issue, len(b.Columns))}
	for name, bucket := range b.Columns {
		cp := make([]domain.Issue, len(bucket))
		copy(cp, bucket)
		out.Columns[name] = cp
	}
	if b.Orphans != nil {
		cp := make([]domain.Issue, len(b.Orphans))
		copy(cp, b.Orphans)
		out.Orphans = cp
	}
	return out
}

// Find returns the issue with the given id wherever it currently sits.
func (b Board) Find(issueID string) (domain.Issue, bool) {
	for _, bucket := range b.Columns {
		for _, issue := range bucket {
			if issue.ID == issueID {
				return issue, true
			}
		}
	}
	for _, issue := range b.Orphans {
		if issue.ID == issueID {
			return issue, true
		}
	}
	return domain.Issue{}, false
}

// Remove takes the issue with the given id off the board, searching every
// bucket and the orphans.
func (b *Board) Remove(issueID string) (domain.Issue, bool) {
	for name, bucket := range b.Columns {
		for i, issue := range bucket {
			if issue.ID == issueID {
				b.Columns[name] = append(bucket[:i], bucket[i+1:]...)
				return issue, true
			}
		}
	}
	for i, issue := range b.Orphans {
		if issue.ID == issueID {
			b.Orphans = append(b.Orphans[:i], b.Orphans[i+1:]...)
			return issue, true
		}
	}
	return domain.Issue{}, false
}

// Insert places issue into the bucket matching its status, or into the
// orphans when no such bucket exists, keeping ascending (order, id).
func (b *Board) Insert(issue domain.Issue) {
	bucket, ok := b.Columns[issue.Status]
	if !ok {
		b.Orphans = insertSorted(b.Orphans, issue)
		return
	}
	b.Columns[issue.Status] = insertSorted(bucket, issue)
}

func insertSorted(bucket []domain.Issue, issue domain.Issue) []domain.Issue {
	at := sort.Search(len(bucket), func(i int) bool {
		if bucket[i].Order != issue.Order {
			return bucket[i].Order > issue.Order
		}
		return bucket[i].ID > issue.ID
	})
	bucket = append(bucket, domain.Issue{})
	copy(bucket[at+1:], bucket[at:])
	bucket[at] = issue
	return bucket
}

// OrderedStatuses returns the registry sorted for display: ascending
// position, ties broken by creation time, then id.
func OrderedStatuses(statuses []domain.CustomStatus) []domain.CustomStatus {
	out := make([]domain.CustomStatus, len(statuses))
	copy(out, statuses)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
