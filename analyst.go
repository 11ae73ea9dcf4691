package salesbot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/alpha-insights/salesbot/domain/model"
)

const (
	narratorSampleRows = 100
	digestSampleRows   = 1000
	digestMaxPeriods   = 24
	digestTopN         = 10
)

// Narrator turns an executed plan result into a natural-language answer,
// grounded only in the plan, the summary line and a sample of the result
// rows. On LLM failure it degrades to the summary line annotated with the
// reason.
type Narrator struct {
	completer Completer
	logger    *zap.Logger
}

// NewNarrator builds a narrator.
func NewNarrator(completer Completer, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{completer: completer, logger: logger}
}

// Narrate answers the question from the executor's output alone.
func (n *Narrator) Narrate(ctx context.Context, question string, plan *model.Plan, table *model.Frame, summary string) string {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		planJSON = []byte("{}")
	}
	prompt := fmt.Sprintf(`Você é o AlphaBot, analista de vendas. Responda de forma direta, em português, com base SOMENTE nos dados fornecidos abaixo.
Formate valores monetários como R$ X.XXX,XX e inclua comparações, variações percentuais e insights executivos quando aplicável.

PERGUNTA DO USUÁRIO:
%s

CONTEXTO E RESULTADOS DISPONÍVEIS:
- Plano de execução (JSON): %s
- Resumo do resultado: %s
- Tabela resultante (amostra até %d linhas, CSV):
%s

Gere uma resposta clara e objetiva, usando apenas o que está acima. Se algo não estiver nas colunas/linhas, diga que não está disponível.`,
		question, planJSON, summary, narratorSampleRows, csvSample(table, narratorSampleRows))

	answer, err := n.completer.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			n.logger.Warn("narration failed, returning summary", zap.Error(err))
			return fmt.Sprintf("(Não foi possível gerar a narrativa: %v)\n%s", err, summary)
		}
		return summary
	}
	return answer
}

// FallbackAnalyst answers questions the planner could not turn into a plan.
// It sends a statistical digest plus a row sample instead of the full
// dataset, guarded by the selected model's row capacity.
type FallbackAnalyst struct {
	completer  Completer
	modelName  string
	capacities map[string]int
	logger     *zap.Logger
}

// NewFallbackAnalyst builds an analyst for the given model. A nil
// capacities map uses the built-in thresholds.
func NewFallbackAnalyst(completer Completer, modelName string, capacities map[string]int, logger *zap.Logger) *FallbackAnalyst {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackAnalyst{completer: completer, modelName: modelName, capacities: capacities, logger: logger}
}

// Answer builds the digest and asks the LLM to answer from it alone. When
// the dataset exceeds the model's row capacity, a guidance message is
// returned without any LLM call.
func (a *FallbackAnalyst) Answer(ctx context.Context, question string, dataset *model.Frame) string {
	if dataset == nil || dataset.Len() == 0 {
		return "Os dados de vendas não foram carregados. Não consigo analisar."
	}

	limit := RowCapacityFor(a.capacities, a.modelName)
	if dataset.Len() > limit {
		a.logger.Info("dataset exceeds model capacity, skipping LLM call",
			zap.Int("rows", dataset.Len()), zap.Int("limit", limit), zap.String("model", a.modelName))
		return fmt.Sprintf(
			"O conjunto de dados tem %d linhas, acima do limite de %d do modelo %s. "+
				"Escolha um modelo com maior capacidade ou restrinja os filtros (período, produto, região) e tente novamente.",
			dataset.Len(), limit, a.modelName)
	}

	digest := buildDigest(dataset)
	prompt := fmt.Sprintf(`CONTEXTO: Abaixo há um resumo estatístico dos dados de vendas e uma amostra de linhas.
Use APENAS essas informações para responder, em português. Caso precise de algo fora disso, diga que não está disponível.

RESUMO DOS DADOS
%s

AMOSTRA (CSV - até %d linhas)
%s

PERGUNTA DO USUÁRIO
%s`, digest, digestSampleRows, csvSample(dataset, digestSampleRows), question)

	answer, err := a.completer.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			a.logger.Warn("fallback analysis failed, returning digest", zap.Error(err))
			return fmt.Sprintf("(Não foi possível consultar o serviço de IA: %v)\n\n%s", err, digest)
		}
		return digest
	}
	return answer
}

// AnalyzeRaw is the legacy direct path: the full dataset as CSV inside one
// prompt. Kept behind the fallback path for small datasets.
func (a *FallbackAnalyst) AnalyzeRaw(ctx context.Context, question string, dataset *model.Frame) string {
	if dataset == nil || dataset.Len() == 0 {
		return "Os dados de vendas não foram carregados. Não consigo analisar."
	}

	limit := RowCapacityFor(a.capacities, a.modelName)
	if dataset.Len() > limit {
		return fmt.Sprintf(
			"O conjunto de dados tem %d linhas, acima do limite de %d do modelo %s. "+
				"Escolha um modelo com maior capacidade ou restrinja os filtros e tente novamente.",
			dataset.Len(), limit, a.modelName)
	}

	prompt := fmt.Sprintf(`# CONTEXTO & PERSONA
Você é o "AlphaBot", um analista de vendas sênior da empresa Alpha Insights. Sua função é analisar os dados de vendas anuais fornecidos em formato CSV e responder a perguntas de negócios com precisão e clareza, baseando-se EXCLUSIVAMENTE nos dados.

# REGRAS DE OPERAÇÃO
1. **Fidelidade aos Dados:** Responda APENAS com base nos dados. Se a pergunta não pode ser respondida, responda: "Não tenho acesso a essa informação nos dados de vendas."
2. **Clareza:** Forneça respostas diretas. Para valores monetários, use o formato R$ X.XXX,XX.
3. **Cálculos:** Realize somas, médias, contagens, máximos/mínimos, variações percentuais e agrupamentos por trimestre, região, produto, etc.
4. **Não alucine:** Não invente dados ou tendências.

# DADOS DE VENDAS
%s

# PERGUNTA DO USUÁRIO
%s

# SUA RESPOSTA (seja direto e informativo):`, csvSample(dataset, dataset.Len()), question)

	answer, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("Desculpe, ocorreu um erro ao contatar o serviço de IA: %v", err)
	}
	return answer
}

// buildDigest computes the statistical summary the fallback prompt is
// grounded in: row count, date span, revenue total, monthly aggregates and
// the top products and regions by quantity.
func buildDigest(dataset *model.Frame) string {
	parts := []string{fmt.Sprintf("Linhas totais: %d", dataset.Len())}

	if dateCol := dataset.Col(model.ColDate); dateCol != nil && dateCol.Kind == model.KindDate {
		if minDate, maxDate, ok := dateSpan(dateCol); ok {
			parts = append(parts, fmt.Sprintf("Período: %s a %s", minDate, maxDate))
		}
	}

	revenue := revenueValues(dataset)
	if revenue != nil {
		parts = append(parts, fmt.Sprintf("Receita total (estimada): %.2f", nanSum(revenue)))
	}

	if monthly := monthlyRevenue(dataset, revenue); monthly != "" {
		parts = append(parts, fmt.Sprintf("Receita por mês (até %d períodos):\n%s", digestMaxPeriods, monthly))
	}
	if top := topByQuantity(dataset, model.ColProduct); top != "" {
		parts = append(parts, fmt.Sprintf("Top %d produtos por quantidade:\n%s", digestTopN, top))
	}
	if top := topByQuantity(dataset, model.ColRegion); top != "" {
		parts = append(parts, fmt.Sprintf("Top %d regiões por quantidade:\n%s", digestTopN, top))
	}

	return strings.Join(parts, "\n\n")
}

func dateSpan(col *model.Series) (string, string, bool) {
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
	return col.Dates[minIdx].Format(model.DateLayout), col.Dates[maxIdx].Format(model.DateLayout), true
}

// revenueValues returns the revenue column, deriving quantity × unit_price
// without mutating the dataset when revenue is absent.
func revenueValues(dataset *model.Frame) []float64 {
	if col := dataset.Col(model.ColRevenue); col != nil && col.Kind == model.KindNumber {
		return col.Nums
	}
	qty := dataset.Col(model.ColQuantity)
	price := dataset.Col(model.ColUnitPrice)
	if qty == nil || price == nil || qty.Kind != model.KindNumber || price.Kind != model.KindNumber {
		return nil
	}
	derived := make([]float64, dataset.Len())
	for i := range derived {
		derived[i] = qty.Nums[i] * price.Nums[i]
	}
	return derived
}

func monthlyRevenue(dataset *model.Frame, revenue []float64) string {
	dateCol := dataset.Col(model.ColDate)
	if dateCol == nil || dateCol.Kind != model.KindDate || revenue == nil {
		return ""
	}

	totals := make(map[string]float64)
	var months []string
	for i := range dateCol.Dates {
		if !dateCol.Valid[i] || math.IsNaN(revenue[i]) {
			continue
		}
		month := dateCol.Dates[i].Format("2006-01")
		if _, ok := totals[month]; !ok {
			months = append(months, month)
		}
		totals[month] += revenue[i]
	}
	if len(months) == 0 {
		return ""
	}
	sort.Strings(months)
	if len(months) > digestMaxPeriods {
		months = months[:digestMaxPeriods]
	}

	var sb strings.Builder
	sb.WriteString("mes,receita\n")
	for _, month := range months {
		fmt.Fprintf(&sb, "%s,%.2f\n", month, totals[month])
	}
	return sb.String()
}

func topByQuantity(dataset *model.Frame, dimension string) string {
	dim := dataset.Col(dimension)
	qty := dataset.Col(model.ColQuantity)
	if dim == nil || qty == nil || qty.Kind != model.KindNumber {
		return ""
	}

	totals := make(map[string]float64)
	var order []string
	for i := 0; i < dim.Len(); i++ {
		v := qty.Nums[i]
		if math.IsNaN(v) {
			continue
		}
		key := dim.ValueAt(i)
		if _, ok := totals[key]; !ok {
			order = append(order, key)
		}
		totals[key] += v
	}
	if len(order) == 0 {
		return ""
	}
	sort.SliceStable(order, func(a, b int) bool { return totals[order[a]] > totals[order[b]] })
	if len(order) > digestTopN {
		order = order[:digestTopN]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s,quantidade\n", dimension)
	for _, key := range order {
		fmt.Fprintf(&sb, "%s,%g\n", key, totals[key])
	}
	return sb.String()
}
