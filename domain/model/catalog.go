package model

import "math"

// CatalogColumn describes one dataset column for the query planner. Min
// and Max hold ISO strings for the date column and float64 for numeric
// columns.
type CatalogColumn struct {
	Name string  `json:"name"`
	Type string  `json:"dtype"`
	Min  any     `json:"min,omitempty"`
	Max  any     `json:"max,omitempty"`
	Sum  float64 `json:"sum,omitempty"`
}

// Catalog is a read-only schema and statistics snapshot of a dataset,
// serialized into planner prompts to ground column choices.
type Catalog struct {
	Columns     []CatalogColumn `json:"columns"`
	Metrics     []string        `json:"metrics"`
	Dimensions  []string        `json:"dimensions"`
	Identifiers []string        `json:"identifiers"`
}

// HasColumn reports whether the catalog lists the named column.
func (c Catalog) HasColumn(name string) bool {
	for _, col := range c.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// isMetricName reports whether a column counts as a metric by name alone.
func isMetricName(name string) bool {
	for _, m := range CanonicalMetricColumns {
		if name == m {
			return true
		}
	}
	return false
}

// BuildCatalog inspects a dataset and emits its catalog. Pure: the frame
// is never mutated. An empty dataset yields an empty catalog with all
// lists non-nil.
func BuildCatalog(f *Frame) Catalog {
	catalog := Catalog{
		Columns:     []CatalogColumn{},
		Metrics:     []string{},
		Dimensions:  []string{},
		Identifiers: []string{},
	}
	if f == nil || f.Len() == 0 {
		return catalog
	}
	for _, name := range f.Columns() {
		col := f.Col(name)
		info := CatalogColumn{Name: name, Type: col.Kind.String()}
		switch col.Kind {
		case KindDate:
			if minDate, maxDate, ok := dateRange(col); ok {
				info.Min = minDate
				info.Max = maxDate
			}
		case KindNumber:
			if minVal, maxVal, sum, ok := numericStats(col); ok {
				info.Min = minVal
				info.Max = maxVal
				info.Sum = sum
			}
		}
		catalog.Columns = append(catalog.Columns, info)

		if col.Kind == KindNumber || isMetricName(name) {
			catalog.Metrics = append(catalog.Metrics, name)
		} else {
			catalog.Dimensions = append(catalog.Dimensions, name)
		}
	}
	for _, id := range IdentifierColumns {
		if f.HasColumn(id) {
			catalog.Identifiers = append(catalog.Identifiers, id)
		}
	}
	return catalog
}

func dateRange(col *Series) (string, string, bool) {
	found := false
	var minIdx, maxIdx int
	for i := range col.Dates {
		if !col.Valid[i] {
			continue
		}
		if !found || col.Dates[i].Before(col.Dates[minIdx]) {
			minIdx = i
		}
		if !found || col.Dates[i].After(col.Dates[maxIdx]) {
			maxIdx = i
		}
		found = true
	}
	if !found {
		return "", "", false
	}
	return col.Dates[minIdx].Format(DateLayout), col.Dates[maxIdx].Format(DateLayout), true
}

func numericStats(col *Series) (float64, float64, float64, bool) {
	found := false
	minVal, maxVal, sum := 0.0, 0.0, 0.0
	for _, v := range col.Nums {
		if math.IsNaN(v) {
			continue
		}
		if !found || v < minVal {
			minVal = v
		}
		if !found || v > maxVal {
			maxVal = v
		}
		sum += v
		found = true
	}
	return minVal, maxVal, sum, found
}
