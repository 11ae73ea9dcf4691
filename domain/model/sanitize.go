package model

import (
	"regexp"
	"strings"
)

// totalRowPattern flags aggregate rows authors type into data sheets:
// "Total", "total geral", "Totais" and so on.
var totalRowPattern = regexp.MustCompile(`(?i)^\s*totais?$|^\s*total\b`)

// DropTotalRows removes rows where any text column matches the total-row
// pattern. Frames without text columns are returned unchanged.
func DropTotalRows(f *Frame) *Frame {
	if f == nil || f.Len() == 0 {
		return f
	}
	var textCols []*Series
	for _, name := range f.Columns() {
		if c := f.Col(name); c.Kind == KindText {
			textCols = append(textCols, c)
		}
	}
	if len(textCols) == 0 {
		return f
	}
	keep := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		flagged := false
		for _, c := range textCols {
			if totalRowPattern.MatchString(c.Text[i]) {
				flagged = true
				break
			}
		}
		if !flagged {
			keep = append(keep, i)
		}
	}
	if len(keep) == f.Len() {
		return f
	}
	return f.Take(keep)
}

// DedupKeyColumns selects the key column subset for deduplication:
// identifier columns when any exist, otherwise the canonical business
// columns present, otherwise every column.
func DedupKeyColumns(f *Frame) []string {
	var keys []string
	for _, id := range IdentifierColumns {
		if f.HasColumn(id) {
			keys = append(keys, id)
		}
	}
	if len(keys) > 0 {
		return keys
	}
	for _, c := range canonicalBusinessColumns {
		if f.HasColumn(c) {
			keys = append(keys, c)
		}
	}
	if len(keys) > 0 {
		return keys
	}
	return f.Columns()
}

// Deduplicate collapses rows sharing a key tuple to their first
// occurrence, preserving the order of kept rows, and reports how many
// rows were removed.
func Deduplicate(f *Frame) (*Frame, int) {
	if f == nil || f.Len() == 0 {
		return f, 0
	}
	keyCols := make([]*Series, 0)
	for _, name := range DedupKeyColumns(f) {
		keyCols = append(keyCols, f.Col(name))
	}
	seen := make(map[string]bool, f.Len())
	keep := make([]int, 0, f.Len())
	var b strings.Builder
	for i := 0; i < f.Len(); i++ {
		b.Reset()
		for _, c := range keyCols {
			b.WriteString(c.ValueAt(i))
			b.WriteByte('\x1f')
		}
		key := b.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, i)
	}
	removed := f.Len() - len(keep)
	if removed == 0 {
		return f, 0
	}
	return f.Take(keep), removed
}

// DeriveRevenue adds the revenue column as quantity times unit price when
// revenue is absent and both inputs are present and numeric. Rows where
// either input is null yield a null revenue.
func DeriveRevenue(f *Frame) *Frame {
	if f == nil || f.HasColumn(ColRevenue) {
		return f
	}
	qty := f.Col(ColQuantity)
	price := f.Col(ColUnitPrice)
	if qty == nil || price == nil || qty.Kind != KindNumber || price.Kind != KindNumber {
		return f
	}
	nums := make([]float64, f.Len())
	for i := range nums {
		nums[i] = qty.Nums[i] * price.Nums[i]
	}
	f.SetCol(NewNumberSeries(ColRevenue, nums))
	return f
}
