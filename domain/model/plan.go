package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoPlanObject is returned when a planner response carries no JSON
// object at all.
var ErrNoPlanObject = errors.New("model: no JSON object in plan response")

// Aggregations accepted in plan metrics.
const (
	AggSum   = "sum"
	AggMean  = "mean"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
)

var knownAggs = map[string]bool{
	AggSum: true, AggMean: true, AggCount: true, AggMin: true, AggMax: true,
	// synonyms the model tends to emit
	"avg": true, "average": true, "total": true,
}

func canonicalAgg(agg string) string {
	switch strings.ToLower(strings.TrimSpace(agg)) {
	case AggMean, "avg", "average":
		return AggMean
	case AggCount:
		return AggCount
	case AggMin:
		return AggMin
	case AggMax:
		return AggMax
	default:
		return AggSum
	}
}

// Metric is one {column, aggregation} pair. It unmarshals from either an
// object or a bare column name, defaulting the aggregation to sum.
type Metric struct {
	Name string `json:"name"`
	Agg  string `json:"agg"`
}

// UnmarshalJSON accepts both "revenue" and {"name":"revenue","agg":"sum"}.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		m.Name = name
		m.Agg = AggSum
		return nil
	}
	type metricAlias Metric
	var obj metricAlias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	m.Name = obj.Name
	m.Agg = obj.Agg
	if m.Agg == "" {
		m.Agg = AggSum
	}
	return nil
}

// StringList tolerates scalar values (strings, numbers, booleans) inside
// plan arrays, rendering each element as a string.
type StringList []string

// UnmarshalJSON renders each array element as its string form. A bare
// scalar becomes a one-element list.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, scalarString(item))
		}
		*l = out
	case nil:
		*l = nil
	default:
		*l = []string{scalarString(v)}
	}
	return nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// Trim the ".0" JSON numbers pick up for integral values.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// PlanFilters holds the plan's filter clauses.
type PlanFilters struct {
	// DateRange is a [start, end] pair of dates; applied only when both
	// bounds parse.
	DateRange StringList `json:"date_range"`
	// Equals maps column names to accepted values (case-insensitive).
	Equals map[string]StringList `json:"equals"`
}

// Plan is the structured query description proposed by the LLM planner
// and executed deterministically. Unknown fields are ignored on parse;
// malformed fields are dropped during validation rather than failing the
// whole turn.
type Plan struct {
	Filters PlanFilters `json:"filters"`
	GroupBy StringList  `json:"groupby"`
	Metrics []Metric    `json:"metrics"`
	Sort    *PlanSort   `json:"sort"`
	Limit   int         `json:"limit"`

	// Err is set when the planner itself reports failure.
	Err string `json:"error"`
}

// PlanSort describes result ordering. Descending is the default.
type PlanSort struct {
	By        string `json:"by"`
	Ascending bool   `json:"ascending"`
}

// DefaultLimit caps result rows when the plan gives no limit.
const DefaultLimit = 50

// ParsePlan extracts the JSON object between the first '{' and the last
// '}' of an LLM response, tolerating wrapping prose and markdown fences,
// and unmarshals it. Parse failures return an error, never a panic.
func ParsePlan(text string) (*Plan, error) {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first < 0 || last < first {
		return nil, ErrNoPlanObject
	}
	var plan Plan
	if err := json.Unmarshal([]byte(text[first:last+1]), &plan); err != nil {
		return nil, fmt.Errorf("model: parse plan: %w", err)
	}
	return &plan, nil
}

// Validate drops plan fields the catalog cannot satisfy: group-by and
// filter columns not in the catalog, metrics over unknown columns, sorts
// whose column neither the metrics nor the group-by produce. Aggregations
// are canonicalized, unknown ones defaulting to sum. Returns the plan for
// chaining.
func (p *Plan) Validate(catalog Catalog) *Plan {
	if p == nil {
		return nil
	}
	groupBy := p.GroupBy[:0]
	for _, col := range p.GroupBy {
		if catalog.HasColumn(col) {
			groupBy = append(groupBy, col)
		}
	}
	p.GroupBy = groupBy

	metrics := p.Metrics[:0]
	for _, m := range p.Metrics {
		if m.Name == "" || !catalog.HasColumn(m.Name) {
			continue
		}
		m.Agg = canonicalAgg(m.Agg)
		metrics = append(metrics, m)
	}
	p.Metrics = metrics

	if p.Filters.Equals != nil {
		for col := range p.Filters.Equals {
			if !catalog.HasColumn(col) {
				delete(p.Filters.Equals, col)
			}
		}
	}
	if len(p.Filters.DateRange) != 2 {
		p.Filters.DateRange = nil
	}
	if p.Sort != nil && p.Sort.By == "" {
		p.Sort = nil
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// Empty reports whether the validated plan describes no computation at
// all: no filters, grouping or metrics. An empty plan is unusable and
// routes the question to the fallback analyst.
func (p *Plan) Empty() bool {
	return p == nil ||
		(len(p.GroupBy) == 0 && len(p.Metrics) == 0 &&
			len(p.Filters.DateRange) == 0 && len(p.Filters.Equals) == 0)
}
