package ledger

import (
	"sort"

	"field-review/backend/internal/models"
)

// categoryPriority is the dashboard order. The catalog's "Mannual Sweeping"
// spelling is kept alongside the corrected one.
var categoryPriority = []string{
	"Mannual Sweeping",
	"Manual Sweeping",
	"Door To Door",
	"Garbage Collection",
	"Mechanical Sweeping",
	"Water Sprinkling",
	"Emergency Task",
}

// CategoryAggregate is computed from current state on every call.
func (l *Ledger) CategoryAggregate(category string) models.CategoryAggregate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	agg := models.CategoryAggregate{
		Category: category,
		Total:    len(filter(l.catalog, category)),
		Reviewed: len(filter(l.reviewed, category)),
		Pending:  len(filter(l.pending, category)),
	}
	agg.Progress = ratio(agg.Reviewed, agg.Total)
	return agg
}

// Overall aggregates every task currently held by the ledger.
func (l *Ledger) Overall() models.CategoryAggregate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	agg := models.CategoryAggregate{
		Reviewed: len(l.reviewed),
		Pending:  len(l.pending),
	}
	agg.Total = agg.Reviewed + agg.Pending
	agg.Progress = ratio(agg.Reviewed, agg.Total)
	return agg
}

// ListCategories returns the distinct catalog categories. Categories on the
// priority list come first in list order; the rest follow alphabetically.
func (l *Ledger) ListCategories() []string {
	seen := make(map[string]struct{})
	var categories []string
	for _, t := range l.catalog {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		categories = append(categories, t.Category)
	}

	sort.SliceStable(categories, func(i, j int) bool {
		pi, pj := priorityOf(categories[i]), priorityOf(categories[j])
		if pi != pj {
			return pi < pj
		}
		return categories[i] < categories[j]
	})
	return categories
}

func priorityOf(category string) int {
	for i, c := range categoryPriority {
		if c == category {
			return i
		}
	}
	return len(categoryPriority)
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
