package salesbot

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/alpha-insights/salesbot/domain/model"
)

// fakeStore is an in-memory RemoteStore shared by the reader, loader and
// session tests.
type fakeStore struct {
	files    []RemoteFile
	contents map[string][]byte
	tabs     map[string][]string
	values   map[string]map[string][][]string
	listErr  error

	listCalls int
}

func (s *fakeStore) ListFolder(_ context.Context, _ string) ([]RemoteFile, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.files, nil
}

func (s *fakeStore) DownloadBytes(_ context.Context, fileID string) ([]byte, error) {
	return s.contents[fileID], nil
}

func (s *fakeStore) SheetTabs(_ context.Context, spreadsheetID string) ([]string, error) {
	return s.tabs[spreadsheetID], nil
}

func (s *fakeStore) SheetValues(_ context.Context, spreadsheetID, tab string) ([][]string, error) {
	return s.values[spreadsheetID][tab], nil
}

func TestSniffDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want rune
		ok   bool
	}{
		{"semicolons win", "Data;Quantidade;Preco\n01/01/2024;10;5,50\n", ';', true},
		{"commas win", "date,quantity,price\n2024-01-01,10,5.50\n", ',', true},
		{"neither present", "apenas uma coluna\nvalor\n", ',', false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := sniffDelimiter([]byte(tt.data))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestUngroupThousands(t *testing.T) {
	t.Parallel()

	t.Run("comma grouping", func(t *testing.T) {
		t.Parallel()
		frame := model.NewFrame(model.NewTextSeries("revenue", []string{"1,234.56", "12,345", "1,23", "plain"}))
		ungroupThousands(frame, commaGroupedPattern, ",")

		col := frame.Col("revenue")
		assert.Equal(t, "1234.56", col.Text[0])
		assert.Equal(t, "12345", col.Text[1])
		assert.Equal(t, "1,23", col.Text[2], "non-grouped commas stay for the decimal rule")
		assert.Equal(t, "plain", col.Text[3])
	})

	t.Run("period grouping", func(t *testing.T) {
		t.Parallel()
		frame := model.NewFrame(model.NewTextSeries("revenue", []string{"1.234,56", "12.345", "1.23", "-1.234.567"}))
		ungroupThousands(frame, periodGroupedPattern, ".")

		col := frame.Col("revenue")
		assert.Equal(t, "1234,56", col.Text[0])
		assert.Equal(t, "12345", col.Text[1])
		assert.Equal(t, "1.23", col.Text[2], "non-grouped periods stay for the decimal rule")
		assert.Equal(t, "-1234567", col.Text[3])
	})
}

func TestReadCSVSemicolonDialect(t *testing.T) {
	t.Parallel()

	store := &fakeStore{contents: map[string][]byte{
		"f1": []byte("Data;Quantidade;Preco_Unitario\n01/01/2024;10;5,50\n02/01/2024;4;12,00\n"),
	}}
	reader := newSourceReader(store, zap.NewNop())

	frame, err := reader.readCSV(context.Background(), RemoteFile{ID: "f1", Name: "vendas.csv", MIMEType: MIMECSV})
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, 2, frame.Len())

	date := frame.Col(model.ColDate)
	require.NotNil(t, date, "Data should normalize to the date column")
	require.Equal(t, model.KindDate, date.Kind)
	assert.Equal(t, "2024-01-01", date.ValueAt(0), "day-first parsing")

	price := frame.Col(model.ColUnitPrice)
	require.NotNil(t, price)
	require.Equal(t, model.KindNumber, price.Kind)
	assert.InDelta(t, 5.5, price.Nums[0], 1e-9, "comma decimal")

	source := frame.Col(model.ColSourceFile)
	require.NotNil(t, source, "frames carry provenance")
	assert.Equal(t, "vendas.csv", source.Text[0])
}

func TestReadCSVSemicolonDialectUngroupsThousands(t *testing.T) {
	t.Parallel()

	store := &fakeStore{contents: map[string][]byte{
		"f1": []byte("Data;Quantidade;Receita\n01/01/2024;10;1.234\n02/01/2024;2;2.345,50\n"),
	}}
	reader := newSourceReader(store, zap.NewNop())

	frame, err := reader.readCSV(context.Background(), RemoteFile{ID: "f1", Name: "vendas.csv", MIMEType: MIMECSV})
	require.NoError(t, err)
	require.NotNil(t, frame)

	revenue := frame.Col(model.ColRevenue)
	require.NotNil(t, revenue)
	require.Equal(t, model.KindNumber, revenue.Kind)
	assert.InDelta(t, 1234.0, revenue.Nums[0], 1e-9, "period grouping, not a fraction")
	assert.InDelta(t, 2345.5, revenue.Nums[1], 1e-9)
}

func TestReadCSVCommaDialectUngroupsThousands(t *testing.T) {
	t.Parallel()

	store := &fakeStore{contents: map[string][]byte{
		"f1": []byte("date,quantity,revenue\n2024-01-01,10,\"1,234.56\"\n"),
	}}
	reader := newSourceReader(store, zap.NewNop())

	frame, err := reader.readCSV(context.Background(), RemoteFile{ID: "f1", Name: "vendas.csv", MIMEType: MIMECSV})
	require.NoError(t, err)
	require.NotNil(t, frame)

	revenue := frame.Col(model.ColRevenue)
	require.NotNil(t, revenue)
	require.Equal(t, model.KindNumber, revenue.Kind)
	assert.InDelta(t, 1234.56, revenue.Nums[0], 1e-9)
}

func TestReadSheetSkipsAggregationTabs(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		tabs: map[string][]string{"s1": {"Vendas", "Resumo", "Dashboard", "Vazia"}},
		values: map[string]map[string][][]string{
			"s1": {
				"Vendas": {
					{"Data", "Produto", "Quantidade"},
					{"01/01/2024", "Caneta", "10"},
				},
				"Vazia": {{"Data", "Produto"}},
			},
		},
	}
	reader := newSourceReader(store, zap.NewNop())

	frames, skipped, err := reader.readSheet(context.Background(), RemoteFile{ID: "s1", Name: "Planilha", MIMEType: MIMESpreadsheet})
	require.NoError(t, err)
	assert.Equal(t, 2, skipped, "Resumo and Dashboard should be skipped")
	require.Len(t, frames, 1, "header-only tab yields no frame")

	sheet := frames[0].Col(model.ColSourceSheet)
	require.NotNil(t, sheet)
	assert.Equal(t, "Vendas", sheet.Text[0])
}

func TestReadXLSX(t *testing.T) {
	t.Parallel()

	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]any{"Data", "Quantidade"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]any{"01/01/2024", "7"}))
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))
	require.NoError(t, book.Close())

	store := &fakeStore{contents: map[string][]byte{"x1": buf.Bytes()}}
	reader := newSourceReader(store, zap.NewNop())

	frames, skipped, err := reader.readXLSX(context.Background(), RemoteFile{ID: "x1", Name: "vendas.xlsx", MIMEType: MIMEXLSX})
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, frames, 1)
	assert.Equal(t, 1, frames[0].Len())

	qty := frames[0].Col(model.ColQuantity)
	require.NotNil(t, qty)
	require.Equal(t, model.KindNumber, qty.Kind)
	assert.InDelta(t, 7, qty.Nums[0], 1e-9)
}

func TestReadXLSXCorruptIsUnsupported(t *testing.T) {
	t.Parallel()

	store := &fakeStore{contents: map[string][]byte{"x1": []byte("not a workbook")}}
	reader := newSourceReader(store, zap.NewNop())

	_, _, err := reader.readXLSX(context.Background(), RemoteFile{ID: "x1", Name: "quebrado.xlsx", MIMEType: MIMEXLSX})
	assert.ErrorIs(t, err, ErrUnsupportedWorkbook)
}

func TestFinishFrameDropsTotalRows(t *testing.T) {
	t.Parallel()

	reader := newSourceReader(&fakeStore{}, zap.NewNop())
	frame := model.FrameFromRows(
		[]string{"Produto", "Quantidade"},
		[][]string{{"Caneta", "10"}, {"Total", "10"}},
	)
	out := reader.finishFrame(frame, "vendas.csv", "")
	assert.Equal(t, 1, out.Len(), "total row should be removed")
}
