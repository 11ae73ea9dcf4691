package model

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestBuildCatalog(t *testing.T) {
	t.Parallel()

	t.Run("empty dataset yields empty catalog", func(t *testing.T) {
		t.Parallel()
		for _, f := range []*Frame{nil, NewFrame()} {
			c := BuildCatalog(f)
			if len(c.Columns) != 0 || len(c.Metrics) != 0 || len(c.Dimensions) != 0 || len(c.Identifiers) != 0 {
				t.Errorf("catalog not empty: %+v", c)
			}
			if c.Columns == nil || c.Metrics == nil || c.Dimensions == nil || c.Identifiers == nil {
				t.Error("catalog lists must be non-nil")
			}
		}
	})

	t.Run("classification and statistics", func(t *testing.T) {
		t.Parallel()
		f := NewFrame(
			NewDateSeries("date",
				[]time.Time{
					time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				},
				[]bool{true, true}),
			NewNumberSeries("revenue", []float64{100, math.NaN()}),
			NewTextSeries("region", []string{"Sul", "Norte"}),
			NewTextSeries("order_id", []string{"1", "2"}),
		)
		c := BuildCatalog(f)

		if !reflect.DeepEqual(c.Metrics, []string{"revenue"}) {
			t.Errorf("metrics = %v", c.Metrics)
		}
		if !reflect.DeepEqual(c.Dimensions, []string{"date", "region", "order_id"}) {
			t.Errorf("dimensions = %v", c.Dimensions)
		}
		if !reflect.DeepEqual(c.Identifiers, []string{"order_id"}) {
			t.Errorf("identifiers = %v", c.Identifiers)
		}

		var dateCol, revCol CatalogColumn
		for _, col := range c.Columns {
			switch col.Name {
			case "date":
				dateCol = col
			case "revenue":
				revCol = col
			}
		}
		if dateCol.Min != "2024-01-01" || dateCol.Max != "2024-03-01" {
			t.Errorf("date range = %v..%v", dateCol.Min, dateCol.Max)
		}
		if revCol.Min != 100.0 || revCol.Max != 100.0 || revCol.Sum != 100.0 {
			t.Errorf("revenue stats = %+v", revCol)
		}
	})
}
