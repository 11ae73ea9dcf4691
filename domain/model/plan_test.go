package model

import (
	"errors"
	"reflect"
	"testing"
)

func TestParsePlan(t *testing.T) {
	t.Parallel()

	t.Run("plain JSON object", func(t *testing.T) {
		t.Parallel()
		p, err := ParsePlan(`{"groupby":["region"],"metrics":[{"name":"revenue","agg":"sum"}],"limit":3}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual([]string(p.GroupBy), []string{"region"}) {
			t.Errorf("groupby = %v", p.GroupBy)
		}
		if p.Metrics[0].Name != "revenue" || p.Metrics[0].Agg != "sum" {
			t.Errorf("metric = %+v", p.Metrics[0])
		}
		if p.Limit != 3 {
			t.Errorf("limit = %d", p.Limit)
		}
	})

	t.Run("markdown fences and prose are tolerated", func(t *testing.T) {
		t.Parallel()
		text := "Sure! Here is the plan:\n```json\n{\"groupby\":[\"product\"]}\n```\nLet me know."
		p, err := ParsePlan(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual([]string(p.GroupBy), []string{"product"}) {
			t.Errorf("groupby = %v", p.GroupBy)
		}
	})

	t.Run("bare metric strings default to sum", func(t *testing.T) {
		t.Parallel()
		p, err := ParsePlan(`{"metrics":["revenue","quantity"]}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Metrics[0].Agg != AggSum || p.Metrics[1].Name != "quantity" {
			t.Errorf("metrics = %+v", p.Metrics)
		}
	})

	t.Run("numeric equality values coerce to strings", func(t *testing.T) {
		t.Parallel()
		p, err := ParsePlan(`{"filters":{"equals":{"quantity":[10,20.5]}}}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := p.Filters.Equals["quantity"]; !reflect.DeepEqual([]string(got), []string{"10", "20.5"}) {
			t.Errorf("equals = %v", got)
		}
	})

	t.Run("error field survives parsing", func(t *testing.T) {
		t.Parallel()
		p, err := ParsePlan(`{"error":"not enough data"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Err != "not enough data" {
			t.Errorf("err = %q", p.Err)
		}
	})

	t.Run("no object at all", func(t *testing.T) {
		t.Parallel()
		if _, err := ParsePlan("I cannot plan this."); !errors.Is(err, ErrNoPlanObject) {
			t.Errorf("err = %v, want ErrNoPlanObject", err)
		}
	})

	t.Run("broken JSON", func(t *testing.T) {
		t.Parallel()
		if _, err := ParsePlan(`{"groupby": [}`); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestPlanValidate(t *testing.T) {
	t.Parallel()

	catalog := BuildCatalog(NewFrame(
		NewTextSeries("region", []string{"Sul"}),
		NewNumberSeries("revenue", []float64{100}),
	))

	t.Run("unknown columns are dropped", func(t *testing.T) {
		t.Parallel()
		p := &Plan{
			GroupBy: StringList{"region", "ghost"},
			Metrics: []Metric{{Name: "revenue", Agg: "avg"}, {Name: "missing", Agg: "sum"}},
			Filters: PlanFilters{Equals: map[string]StringList{"region": {"Sul"}, "ghost": {"x"}}},
		}
		p.Validate(catalog)
		if !reflect.DeepEqual([]string(p.GroupBy), []string{"region"}) {
			t.Errorf("groupby = %v", p.GroupBy)
		}
		if len(p.Metrics) != 1 || p.Metrics[0].Agg != AggMean {
			t.Errorf("metrics = %+v", p.Metrics)
		}
		if _, ok := p.Filters.Equals["ghost"]; ok {
			t.Error("ghost filter should be dropped")
		}
	})

	t.Run("partial date range is dropped", func(t *testing.T) {
		t.Parallel()
		p := &Plan{Filters: PlanFilters{DateRange: StringList{"2024-01-01"}}}
		p.Validate(catalog)
		if p.Filters.DateRange != nil {
			t.Errorf("date range = %v, want nil", p.Filters.DateRange)
		}
	})

	t.Run("limit defaults", func(t *testing.T) {
		t.Parallel()
		p := (&Plan{}).Validate(catalog)
		if p.Limit != DefaultLimit {
			t.Errorf("limit = %d, want %d", p.Limit, DefaultLimit)
		}
	})

	t.Run("empty plan detection", func(t *testing.T) {
		t.Parallel()
		if !(&Plan{}).Empty() {
			t.Error("zero plan should be empty")
		}
		p := &Plan{GroupBy: StringList{"region"}}
		if p.Empty() {
			t.Error("plan with groupby is not empty")
		}
	})
}
