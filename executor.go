package salesbot

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alpha-insights/salesbot/domain/model"
)

// Executor runs a validated plan over a dataset. Deterministic: the same
// dataset and plan always produce the same result. Each stage is isolated;
// a stage that cannot apply leaves the frame as the previous stage left it,
// so partial plans still yield a best-effort table.
type Executor struct {
	logger *zap.Logger
}

// NewExecutor builds an executor.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

// Execute applies filter, derive, aggregate and sort/limit in order and
// returns the result table plus a pipe-joined summary of the filtered set.
func (e *Executor) Execute(dataset *model.Frame, plan *model.Plan) (*model.Frame, string) {
	if dataset == nil || dataset.Len() == 0 {
		return model.NewFrame(), "Sem dados para executar o plano."
	}
	if plan == nil {
		plan = (&model.Plan{}).Validate(model.BuildCatalog(dataset))
	}

	// The dataset is a shared snapshot; derive onto a clone so a plan with
	// no filters never grows a column on the cached frame.
	filtered := e.stageFilter(dataset, plan).ShallowClone()
	filtered = model.DeriveRevenue(filtered)
	table := e.stageAggregate(filtered, plan)
	table = e.stageSortLimit(table, plan)

	return table, buildSummary(table, filtered)
}

// stageFilter applies the date-range filter when both bounds parse and a
// date column exists, then the per-column equality filters. Comparison is
// case-insensitive on the rendered cell value.
func (e *Executor) stageFilter(frame *model.Frame, plan *model.Plan) *model.Frame {
	if len(plan.Filters.DateRange) == 2 {
		start, err1 := time.Parse(model.DateLayout, plan.Filters.DateRange[0])
		end, err2 := time.Parse(model.DateLayout, plan.Filters.DateRange[1])
		dateCol := frame.Col(model.ColDate)
		if err1 == nil && err2 == nil && dateCol != nil && dateCol.Kind == model.KindDate {
			var keep []int
			for i := range dateCol.Dates {
				if !dateCol.Valid[i] {
					continue
				}
				d := dateCol.Dates[i]
				if !d.Before(start) && !d.After(end) {
					keep = append(keep, i)
				}
			}
			frame = frame.Take(keep)
		} else {
			e.logger.Debug("skipping date filter",
				zap.Strings("range", plan.Filters.DateRange))
		}
	}

	for col, values := range plan.Filters.Equals {
		series := frame.Col(col)
		if series == nil || len(values) == 0 {
			continue
		}
		wanted := make(map[string]bool, len(values))
		for _, v := range values {
			wanted[strings.ToLower(strings.TrimSpace(v))] = true
		}
		var keep []int
		for i := 0; i < series.Len(); i++ {
			if wanted[strings.ToLower(strings.TrimSpace(series.ValueAt(i)))] {
				keep = append(keep, i)
			}
		}
		frame = frame.Take(keep)
	}
	return frame
}

// stageAggregate groups and aggregates when the plan asks for it. With
// metrics but no group-by the whole filtered set collapses into one row;
// with neither, the first rows pass through unmodified.
func (e *Executor) stageAggregate(frame *model.Frame, plan *model.Plan) *model.Frame {
	metrics := resolvableMetrics(frame, plan.Metrics)

	switch {
	case len(plan.GroupBy) > 0 && len(metrics) > 0:
		return groupAggregate(frame, plan.GroupBy, metrics)
	case len(metrics) > 0:
		return totalAggregate(frame, metrics)
	default:
		return frame.Head(model.DefaultLimit)
	}
}

// resolvableMetrics keeps metrics whose column exists as numbers. A count
// metric resolves against any column.
func resolvableMetrics(frame *model.Frame, metrics []model.Metric) []model.Metric {
	var out []model.Metric
	for _, m := range metrics {
		col := frame.Col(m.Name)
		if col == nil {
			continue
		}
		if col.Kind != model.KindNumber && m.Agg != model.AggCount {
			continue
		}
		out = append(out, m)
	}
	return out
}

func groupAggregate(frame *model.Frame, groupBy []string, metrics []model.Metric) *model.Frame {
	keyCols := make([]*model.Series, 0, len(groupBy))
	for _, name := range groupBy {
		if col := frame.Col(name); col != nil {
			keyCols = append(keyCols, col)
		}
	}
	if len(keyCols) == 0 {
		return frame
	}

	type group struct {
		key  []string
		rows []int
	}
	var order []string
	groups := make(map[string]*group)
	for i := 0; i < frame.Len(); i++ {
		parts := make([]string, len(keyCols))
		for j, col := range keyCols {
			parts[j] = col.ValueAt(i)
		}
		key := strings.Join(parts, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{key: parts}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, i)
	}

	cols := make([]*model.Series, 0, len(keyCols)+len(metrics))
	for j, keyCol := range keyCols {
		values := make([]string, len(order))
		for i, key := range order {
			values[i] = groups[key].key[j]
		}
		cols = append(cols, model.NewTextSeries(keyCol.Name, values))
	}
	for _, m := range metrics {
		src := frame.Col(m.Name)
		values := make([]float64, len(order))
		for i, key := range order {
			values[i] = aggregate(src, groups[key].rows, m.Agg)
		}
		cols = append(cols, model.NewNumberSeries(metricColumnName(m, metrics), values))
	}
	return model.NewFrame(cols...)
}

func totalAggregate(frame *model.Frame, metrics []model.Metric) *model.Frame {
	all := make([]int, frame.Len())
	for i := range all {
		all[i] = i
	}
	cols := make([]*model.Series, 0, len(metrics))
	for _, m := range metrics {
		value := aggregate(frame.Col(m.Name), all, m.Agg)
		cols = append(cols, model.NewNumberSeries(metricColumnName(m, metrics), []float64{value}))
	}
	return model.NewFrame(cols...)
}

// metricColumnName keeps the plain column name unless two metrics share it,
// in which case the aggregation disambiguates.
func metricColumnName(m model.Metric, all []model.Metric) string {
	count := 0
	for _, other := range all {
		if other.Name == m.Name {
			count++
		}
	}
	if count > 1 {
		return m.Name + "_" + m.Agg
	}
	return m.Name
}

// aggregate folds the selected rows of a column. NaN rows are skipped;
// count counts non-null values of any kind.
func aggregate(col *model.Series, rows []int, agg string) float64 {
	if col == nil {
		return math.NaN()
	}
	if agg == model.AggCount {
		n := 0
		for _, i := range rows {
			if !col.IsNull(i) {
				n++
			}
		}
		return float64(n)
	}

	sum, count := 0.0, 0
	best := math.NaN()
	for _, i := range rows {
		v := col.Nums[i]
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
		switch agg {
		case model.AggMin:
			if math.IsNaN(best) || v < best {
				best = v
			}
		case model.AggMax:
			if math.IsNaN(best) || v > best {
				best = v
			}
		}
	}
	if count == 0 {
		return math.NaN()
	}
	switch agg {
	case model.AggMin, model.AggMax:
		return best
	case model.AggMean:
		return sum / float64(count)
	default:
		return sum
	}
}

// stageSortLimit sorts by the requested column when the aggregate produced
// it, descending unless asked otherwise, then truncates to the limit.
func (e *Executor) stageSortLimit(frame *model.Frame, plan *model.Plan) *model.Frame {
	if plan.Sort != nil {
		if col := frame.Col(plan.Sort.By); col != nil {
			idx := make([]int, frame.Len())
			for i := range idx {
				idx[i] = i
			}
			asc := plan.Sort.Ascending
			sort.SliceStable(idx, func(x, y int) bool {
				a, b := idx[x], idx[y]
				// Nulls sort last regardless of direction.
				if na, nb := col.IsNull(a), col.IsNull(b); na != nb {
					return nb
				}
				if asc {
					return rowLess(col, a, b)
				}
				return rowLess(col, b, a)
			})
			frame = frame.Take(idx)
		}
	}

	limit := plan.Limit
	if limit <= 0 {
		limit = model.DefaultLimit
	}
	return frame.Head(limit)
}

// rowLess orders two non-null rows of a column.
func rowLess(col *model.Series, a, b int) bool {
	switch col.Kind {
	case model.KindNumber:
		return col.Nums[a] < col.Nums[b]
	case model.KindDate:
		return col.Dates[a].Before(col.Dates[b])
	default:
		return col.Text[a] < col.Text[b]
	}
}

// buildSummary reports the result row count plus filtered-set revenue and
// quantity totals, each only when its column exists.
func buildSummary(table, filtered *model.Frame) string {
	lines := []string{fmt.Sprintf("Linhas retornadas: %d", table.Len())}
	if col := filtered.Col(model.ColRevenue); col != nil && col.Kind == model.KindNumber {
		lines = append(lines, "Receita total no filtro: "+model.FormatBRL(nanSum(col.Nums)))
	}
	if col := filtered.Col(model.ColQuantity); col != nil && col.Kind == model.KindNumber {
		lines = append(lines, fmt.Sprintf("Quantidade total no filtro: %d", int(nanSum(col.Nums))))
	}
	return strings.Join(lines, " | ")
}

func nanSum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}
