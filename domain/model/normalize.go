package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical column names. Every recognized synonym is renamed to one of
// these before any other processing touches the frame.
const (
	ColDate      = "date"
	ColQuantity  = "quantity"
	ColUnitPrice = "unit_price"
	ColRevenue   = "revenue"
	ColProduct   = "product"
	ColRegion    = "region"
	ColCategory  = "category"

	// ColSourceFile and ColSourceSheet carry provenance, not user data.
	ColSourceFile  = "source_file"
	ColSourceSheet = "source_sheet"
)

// CanonicalMetricColumns are the columns numeric coercion always targets.
var CanonicalMetricColumns = []string{ColQuantity, ColUnitPrice, ColRevenue}

// canonicalBusinessColumns is the dedup fallback key set.
var canonicalBusinessColumns = []string{ColDate, ColProduct, ColQuantity, ColUnitPrice, ColRevenue}

// IdentifierColumns is the allow-list of identifier-like column names used
// for deduplication keys and catalog identifier detection.
var IdentifierColumns = []string{
	"id", "pedido_id", "order_id", "nota_id", "invoice_id", "id_pedido", "id_nota", "id_venda",
}

// columnAliases maps each canonical name to its known header synonyms.
// Portuguese variants come from the spreadsheets this pipeline was built
// for; English variants cover the rest. First alias found wins.
var columnAliases = []struct {
	canonical string
	aliases   []string
}{
	{ColDate, []string{
		"data", "date", "dt",
		"data_venda", "data_da_venda", "data_pedido", "data_do_pedido",
		"data_emissao", "emissao", "emissao_nf", "data_nf", "data_nota",
		"data_de_venda", "data_de_emissao", "dt_venda", "dt_emissao",
	}},
	{ColQuantity, []string{"quantity", "quantidade", "qtd", "qty", "quant", "qte"}},
	{ColUnitPrice, []string{"unit_price", "preco_unitario", "preco", "preco_unit", "valor_unitario", "preco_venda", "price"}},
	{ColRevenue, []string{"revenue", "receita_total", "receita", "faturamento", "valor_total", "total"}},
	{ColProduct, []string{"product", "produto", "item", "sku", "descricao", "descricao_produto"}},
	{ColRegion, []string{"region", "regiao", "regiao_venda", "regiao_geografica", "regioes", "regional", "regiao_cliente"}},
	{ColCategory, []string{"category", "categoria", "grupo", "segmento", "classe"}},
}

// stripDiacritics removes combining marks, then drops any remaining
// non-ASCII runes.
var stripDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	norm.NFC,
)

// normalizerPunct is the punctuation set collapsed to separators.
const normalizerPunct = "/\\-.,;:()[]{}"

// NormalizeColumnName maps an arbitrary header to its normalized form:
// trimmed, diacritics stripped, lowercased, punctuation collapsed to
// single underscores with no leading or trailing underscore. The function
// is idempotent.
func NormalizeColumnName(name string) string {
	text := strings.TrimSpace(name)
	if ascii, _, err := transform.String(stripDiacritics, text); err == nil {
		text = ascii
	}
	text = strings.ToLower(text)
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(normalizerPunct, r) || r == '_' {
			b.WriteByte(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), "_")
}

// NormalizeColumns renames every column to its normalized form and then
// applies the synonym table, renaming the first alias match to the
// canonical name unless the canonical column already exists. Idempotent;
// nil and empty frames are returned unchanged.
func NormalizeColumns(f *Frame) *Frame {
	if f == nil || f.NumColumns() == 0 {
		return f
	}
	for _, name := range f.Columns() {
		if normalized := NormalizeColumnName(name); normalized != name {
			f.RenameColumn(name, normalized)
		}
	}
	for _, entry := range columnAliases {
		if f.HasColumn(entry.canonical) {
			continue
		}
		for _, alias := range entry.aliases {
			if f.HasColumn(alias) {
				f.RenameColumn(alias, entry.canonical)
				break
			}
		}
	}
	return f
}
