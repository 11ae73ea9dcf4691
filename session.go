package salesbot

import (
	"context"
	"io"
	"math"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/alpha-insights/salesbot/domain/model"
)

// Message roles in the conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation, owned by the session.
type Message struct {
	Role    string
	Content string
}

// Filter restricts the dataset before cataloging and execution, mirroring
// the sidebar selections: source files, products and regions. Empty slices
// mean no restriction.
type Filter struct {
	Files    []string
	Products []string
	Regions  []string
}

// KPIs is the headline snapshot of the filtered dataset.
type KPIs struct {
	TotalRevenue  float64
	Transactions  int
	AverageTicket float64
	PeriodStart   string
	PeriodEnd     string
	InvalidDates  int
	TopProduct    string
}

// SessionOptions wires a session's collaborators.
type SessionOptions struct {
	FolderID string
	Loader   *Loader
	Cache    *DatasetCache
	Planner  *Planner
	Executor *Executor
	Narrator *Narrator
	Fallback *FallbackAnalyst
	Logger   *zap.Logger
}

// Session serializes question-answering turns over one folder's dataset.
// One question is planned, executed and narrated fully before the next is
// accepted; the dataset is an immutable snapshot shared via the TTL cache.
type Session struct {
	opts   SessionOptions
	logger *zap.Logger

	mu      sync.Mutex
	filter  Filter
	history []Message
}

// NewSession builds a session. A nil cache gets the default TTL.
func NewSession(opts SessionOptions) *Session {
	if opts.Cache == nil {
		opts.Cache = NewDatasetCache(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Executor == nil {
		opts.Executor = NewExecutor(opts.Logger)
	}
	return &Session{opts: opts, logger: opts.Logger}
}

// entry returns the cached load result, ingesting on miss.
func (s *Session) entry(ctx context.Context) *cacheEntry {
	if cached := s.opts.Cache.Get(s.opts.FolderID); cached != nil {
		return cached
	}
	dataset, files, stats, summary := s.opts.Loader.LoadDataset(ctx, s.opts.FolderID)
	s.opts.Cache.Put(s.opts.FolderID, dataset, files, stats, summary)
	return s.opts.Cache.Get(s.opts.FolderID)
}

// applyFilter restricts the dataset to the session's current filter.
func (s *Session) applyFilter(dataset *model.Frame) *model.Frame {
	dataset = filterByValues(dataset, model.ColSourceFile, s.filter.Files)
	dataset = filterByValues(dataset, model.ColProduct, s.filter.Products)
	dataset = filterByValues(dataset, model.ColRegion, s.filter.Regions)
	return dataset
}

func filterByValues(dataset *model.Frame, column string, values []string) *model.Frame {
	if len(values) == 0 {
		return dataset
	}
	col := dataset.Col(column)
	if col == nil {
		return dataset
	}
	var keep []int
	for i := 0; i < col.Len(); i++ {
		if slices.Contains(values, col.ValueAt(i)) {
			keep = append(keep, i)
		}
	}
	return dataset.Take(keep)
}

// Ask answers one question. Planner success routes through the executor and
// narrator; planner failure routes to the fallback analyst. An empty
// dataset returns ErrEmptyDataset so the caller never offers
// question-answering over nothing.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(ctx)
	dataset := s.applyFilter(entry.dataset)
	if dataset.Len() == 0 {
		return "", ErrEmptyDataset
	}

	s.history = append(s.history, Message{Role: RoleUser, Content: question})

	var answer string
	catalog := model.BuildCatalog(dataset)
	plan, err := s.opts.Planner.Plan(ctx, question, catalog)
	if err != nil {
		s.logger.Info("routing to fallback analyst", zap.Error(err))
		answer = s.opts.Fallback.Answer(ctx, question, dataset)
	} else {
		table, summary := s.opts.Executor.Execute(dataset, plan)
		answer = s.opts.Narrator.Narrate(ctx, question, plan, table, summary)
	}

	s.history = append(s.history, Message{Role: RoleAssistant, Content: answer})
	return answer, nil
}

// SetFilter replaces the session filter. It applies from the next turn.
func (s *Session) SetFilter(f Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Reload invalidates the cached dataset; the next turn re-ingests.
func (s *Session) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Cache.Invalidate(s.opts.FolderID)
}

// Dataset returns the current filtered dataset snapshot, loading on demand.
func (s *Session) Dataset(ctx context.Context) *model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyFilter(s.entry(ctx).dataset)
}

// Stats returns the load artifacts of the current dataset.
func (s *Session) Stats(ctx context.Context) (model.LoadStats, model.SourceSummary, []model.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entry(ctx)
	return entry.stats, entry.summary, entry.files
}

// KPIs computes the headline numbers over the filtered dataset.
func (s *Session) KPIs(ctx context.Context) KPIs {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataset := s.applyFilter(s.entry(ctx).dataset)
	kpis := KPIs{Transactions: dataset.Len()}
	if dataset.Len() == 0 {
		return kpis
	}

	if revenue := revenueValues(dataset); revenue != nil {
		kpis.TotalRevenue = nanSum(revenue)
		kpis.AverageTicket = kpis.TotalRevenue / float64(kpis.Transactions)
		kpis.TopProduct = topByRevenue(dataset, revenue)
	}
	if dateCol := dataset.Col(model.ColDate); dateCol != nil && dateCol.Kind == model.KindDate {
		kpis.PeriodStart, kpis.PeriodEnd, _ = dateSpan(dateCol)
		for i := range dateCol.Valid {
			if !dateCol.Valid[i] {
				kpis.InvalidDates++
			}
		}
	}
	return kpis
}

// topByRevenue returns the product with the highest summed revenue, or the
// empty string without a product column.
func topByRevenue(dataset *model.Frame, revenue []float64) string {
	products := dataset.Col(model.ColProduct)
	if products == nil {
		return ""
	}
	totals := make(map[string]float64)
	for i := 0; i < products.Len(); i++ {
		if !math.IsNaN(revenue[i]) {
			totals[products.ValueAt(i)] += revenue[i]
		}
	}
	top, best := "", math.Inf(-1)
	for product, total := range totals {
		if total > best || (total == best && strings.Compare(product, top) < 0) {
			top, best = product, total
		}
	}
	return top
}

// ExportCSV renders the filtered dataset as CSV bytes.
func (s *Session) ExportCSV(ctx context.Context) ([]byte, error) {
	return CSVBytes(s.Dataset(ctx))
}

// ExportXLSX writes the filtered dataset as a workbook.
func (s *Session) ExportXLSX(ctx context.Context, w io.Writer) error {
	return WriteXLSX(w, s.Dataset(ctx), "vendas")
}
