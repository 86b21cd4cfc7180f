package board

import "github.com/oceanondawave/CigroTrack-sub001/domain"

// AddColumn creates an empty bucket for a newly registered status and adopts
// any orphans already carrying its label, keeping the board partitioned.
func (b *Board) AddColumn(name string) {
	bucket := []domain.Issue{}
	if len(b.Orphans) > 0 {
		var rest []domain.Issue
		for _, issue := range b.Orphans {
			if issue.Status == name {
				bucket = append(bucket, issue)
			} else {
				rest = append(rest, issue)
			}
		}
		b.Orphans = rest
	}
	b.Columns[name] = bucket
}

// Rekey renames a column in place: the bucket moves to the new key, every
// issue in it is relabeled, and orphans already carrying the new label merge
// into it. Returns the number of issues relabeled.
func (b *Board) Rekey(oldName, newName string) int {
	bucket, ok := b.Columns[oldName]
	if !ok {
		return 0
	}
	delete(b.Columns, oldName)
	relabeled := len(bucket)
	for i := range bucket {
		bucket[i].Status = newName
	}
	if len(b.Orphans) > 0 {
		var rest []domain.Issue
		for _, issue := range b.Orphans {
			if issue.Status == newName {
				bucket = insertSorted(bucket, issue)
			} else {
				rest = append(rest, issue)
			}
		}
		b.Orphans = rest
	}
	b.Columns[newName] = bucket
	return relabeled
}

// DropColumn removes a status bucket. Issues still in it fold into the
// orphans so nothing is lost; the count of folded issues is returned.
func (b *Board) DropColumn(name string) int {
	bucket, ok := b.Columns[name]
	if !ok {
		return 0
	}
	delete(b.Columns, name)
	for _, issue := range bucket {
		b.Orphans = insertSorted(b.Orphans, issue)
	}
	return len(bucket)
}
