package notify

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/nhle/evaldash/internal/model"
)

// Query describes one view over the scoped record set.
type Query struct {
	// Type filters by notification type. TypeAll (or "") keeps everything.
	Type model.Type

	// Search is matched case-insensitively against school name, title,
	// description and student name. Blank matches everything.
	Search string

	// Limit truncates the filtered result. Zero or negative means no limit.
	Limit int
}

// Apply filters records by type, then by search term, then truncates. The
// input order is preserved and the input slice is never modified.
func Apply(records []model.Notification, q Query) []model.Notification {
	out := Search(FilterByType(records, q.Type), q.Search)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// FilterByType returns the records of type t. TypeAll and the empty type
// return a copy of records.
func FilterByType(records []model.Notification, t model.Type) []model.Notification {
	if t == "" || t == model.TypeAll {
		return slices.Clone(records)
	}

	out := make([]model.Notification, 0, len(records))
	for _, n := range records {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Search returns the records whose school name, title, description or
// student name contain term, ignoring case.
func Search(records []model.Notification, term string) []model.Notification {
	term = strings.TrimSpace(term)
	if term == "" {
		return slices.Clone(records)
	}

	// Casers are stateful, so each call gets its own.
	fold := cases.Fold()
	needle := fold.String(term)

	out := make([]model.Notification, 0, len(records))
	for _, n := range records {
		if matches(fold, n, needle) {
			out = append(out, n)
		}
	}
	return out
}

func matches(fold cases.Caser, n model.Notification, needle string) bool {
	for _, field := range []string{n.SchoolName, n.Title, n.Description, n.StudentName} {
		if field != "" && strings.Contains(fold.String(field), needle) {
			return true
		}
	}
	return false
}

// Counts maps each concrete type, plus TypeAll, to a number of records.
type Counts map[model.Type]int

// CountByType tallies records per type. Every concrete type has an entry,
// and Counts[TypeAll] is the sum of the concrete entries.
func CountByType(records []model.Notification) Counts {
	c := make(Counts, len(model.Types)+1)
	c[model.TypeAll] = 0
	for _, t := range model.Types {
		c[t] = 0
	}
	for _, n := range records {
		if !n.Type.Valid() {
			continue
		}
		c[n.Type]++
		c[model.TypeAll]++
	}
	return c
}

// sortRecords orders records newest first, ties by ascending id.
func sortRecords(records []model.Notification) {
	slices.SortFunc(records, func(a, b model.Notification) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
}
