package salesbot

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/alpha-insights/salesbot/domain/model"
)

const plannerSystemPrompt = `You are a query planner for a sales dataset.
Return ONLY a JSON object with this shape, no prose, no markdown:
{
  "filters": {"date_range": ["YYYY-MM-DD", "YYYY-MM-DD"], "equals": {"column": ["value"]}},
  "groupby": ["column"],
  "metrics": [{"name": "column", "agg": "sum|mean|count|min|max"}],
  "sort": {"by": "column", "ascending": false},
  "limit": 50
}
Use only columns listed in the catalog. Omit any field you do not need.
If the question cannot be answered with a tabular plan, return {"error": "reason"}.`

// Planner turns a natural-language question into a validated query plan
// with a single LLM call. Any failure is an error to the caller, which
// routes the question to the fallback analyst; there are no retries here.
type Planner struct {
	completer Completer
	logger    *zap.Logger
}

// NewPlanner builds a planner over the given completion service.
func NewPlanner(completer Completer, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{completer: completer, logger: logger}
}

// Plan sends the serialized catalog and the question, extracts the JSON
// plan from the response and validates it against the catalog. The
// returned plan is non-empty and executable; every other outcome wraps
// ErrPlanUnusable.
func (p *Planner) Plan(ctx context.Context, question string, catalog model.Catalog) (*model.Plan, error) {
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize catalog: %v", ErrPlanUnusable, err)
	}

	user := fmt.Sprintf("Catalog:\n%s\n\nQuestion: %s", catalogJSON, question)
	response, err := p.completer.CompleteWithSystem(ctx, plannerSystemPrompt, user)
	if err != nil {
		p.logger.Warn("planner call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPlanUnusable, err)
	}

	plan, err := model.ParsePlan(response)
	if err != nil {
		p.logger.Warn("planner response unparseable", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPlanUnusable, err)
	}
	if plan.Err != "" {
		p.logger.Info("planner declined", zap.String("reason", plan.Err))
		return nil, fmt.Errorf("%w: %s", ErrPlanUnusable, plan.Err)
	}

	plan.Validate(catalog)
	if plan.Empty() {
		return nil, fmt.Errorf("%w: plan is empty after validation", ErrPlanUnusable)
	}
	return plan, nil
}
