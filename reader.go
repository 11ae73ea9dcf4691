package salesbot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/alpha-insights/salesbot/domain/model"
)

// aggregatedTabPattern matches tab names that hold pre-aggregated summaries
// rather than transaction rows. Such tabs are skipped and counted.
var aggregatedTabPattern = regexp.MustCompile(`(?i)^(resumo|dashboard|consolidado|grafico|gráfico|summary|pivot|totais?)$`)

// commaGroupedPattern matches period-decimal numbers with comma thousands
// grouping, e.g. "1,234.56" or "-12,345". periodGroupedPattern is its
// comma-decimal mirror, e.g. "1.234,56" or "-12.345".
var (
	commaGroupedPattern  = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	periodGroupedPattern = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+(,\d+)?$`)
)

const csvSniffSample = 2048

// sourceReader turns one remote file into zero or more provenance-tagged
// frames. Tab skips are counted; per-file failures are returned to the
// loader, which logs and moves on.
type sourceReader struct {
	store  RemoteStore
	logger *zap.Logger
}

func newSourceReader(store RemoteStore, logger *zap.Logger) *sourceReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sourceReader{store: store, logger: logger}
}

// readFile dispatches on the file's source kind. The returned frames have
// already been normalized, sanitized, coerced and tagged.
func (r *sourceReader) readFile(ctx context.Context, f RemoteFile) (frames []*model.Frame, tabsSkipped int, err error) {
	switch detectSourceKind(f.Name, f.MIMEType) {
	case KindSpreadsheet:
		return r.readSheet(ctx, f)
	case KindCSV:
		frame, err := r.readCSV(ctx, f)
		if err != nil || frame == nil {
			return nil, 0, err
		}
		return []*model.Frame{frame}, 0, nil
	case KindXLSX:
		return r.readXLSX(ctx, f)
	case KindParquet:
		frame, err := r.readParquet(ctx, f)
		if err != nil || frame == nil {
			return nil, 0, err
		}
		return []*model.Frame{frame}, 0, nil
	default:
		return nil, 0, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, f.Name, f.MIMEType)
	}
}

// readSheet enumerates a native spreadsheet's tabs, skipping aggregation
// tabs and tabs without a header plus at least one data row.
func (r *sourceReader) readSheet(ctx context.Context, f RemoteFile) ([]*model.Frame, int, error) {
	tabs, err := r.store.SheetTabs(ctx, f.ID)
	if err != nil {
		return nil, 0, err
	}

	var frames []*model.Frame
	skipped := 0
	for _, tab := range tabs {
		if aggregatedTabPattern.MatchString(strings.TrimSpace(tab)) {
			skipped++
			r.logger.Debug("skipping aggregation tab", zap.String("file", f.Name), zap.String("tab", tab))
			continue
		}
		rows, err := r.store.SheetValues(ctx, f.ID, tab)
		if err != nil {
			return nil, skipped, fmt.Errorf("tab %q: %w", tab, err)
		}
		if len(rows) < 2 {
			r.logger.Debug("skipping tab without data rows", zap.String("file", f.Name), zap.String("tab", tab))
			continue
		}
		frame := model.FrameFromRows(rows[0], rows[1:])
		frames = append(frames, r.finishFrame(frame, f.Name, tab))
	}
	return frames, skipped, nil
}

// readCSV downloads, decompresses and parses a delimited-text file with a
// sniffed dialect.
func (r *sourceReader) readCSV(ctx context.Context, f RemoteFile) (*model.Frame, error) {
	data, err := r.store.DownloadBytes(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	if data, err = decompressPayload(f.Name, data); err != nil {
		return nil, fmt.Errorf("decompress %s: %w", f.Name, err)
	}

	delimiter, sniffed := sniffDelimiter(data)
	if !sniffed {
		r.logger.Warn("could not sniff delimiter, assuming comma", zap.String("file", f.Name))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Name, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	frame := model.FrameFromRows(records[0], records[1:])
	// The delimiter implies the decimal convention: comma means period
	// decimals with comma grouping, semicolon the reverse. Ungroup the
	// thousands before the locale rule sees the values.
	if delimiter == ',' {
		ungroupThousands(frame, commaGroupedPattern, ",")
	} else {
		ungroupThousands(frame, periodGroupedPattern, ".")
	}
	return r.finishFrame(frame, f.Name, ""), nil
}

// sniffDelimiter picks the delimiter from {',', ';'} by counting occurrences
// in the leading sample. ok is false when neither candidate appears.
func sniffDelimiter(data []byte) (delim rune, ok bool) {
	sample := data
	if len(sample) > csvSniffSample {
		sample = sample[:csvSniffSample]
	}
	commas := bytes.Count(sample, []byte{','})
	semis := bytes.Count(sample, []byte{';'})
	switch {
	case semis > commas:
		return ';', true
	case commas > 0:
		return ',', true
	default:
		return ',', false
	}
}

// ungroupThousands removes the grouping separator from values matching the
// dialect's grouped-number shape, so the locale rule in CleanNumeric does
// not misread grouping as a decimal mark (or as a 1.234-style fraction).
func ungroupThousands(f *model.Frame, grouped *regexp.Regexp, sep string) {
	for _, name := range f.Columns() {
		col := f.Col(name)
		if col.Kind != model.KindText {
			continue
		}
		for i, v := range col.Text {
			if grouped.MatchString(strings.TrimSpace(v)) {
				col.Text[i] = strings.ReplaceAll(strings.TrimSpace(v), sep, "")
			}
		}
	}
}

// readXLSX downloads and decodes an Excel workbook. A decoder failure marks
// the file unsupported rather than failing ingestion.
func (r *sourceReader) readXLSX(ctx context.Context, f RemoteFile) ([]*model.Frame, int, error) {
	data, err := r.store.DownloadBytes(ctx, f.ID)
	if err != nil {
		return nil, 0, err
	}
	if data, err = decompressPayload(f.Name, data); err != nil {
		return nil, 0, fmt.Errorf("decompress %s: %w", f.Name, err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrUnsupportedWorkbook, f.Name, err)
	}
	defer func() { _ = book.Close() }()

	var frames []*model.Frame
	skipped := 0
	for _, sheet := range book.GetSheetList() {
		if aggregatedTabPattern.MatchString(strings.TrimSpace(sheet)) {
			skipped++
			r.logger.Debug("skipping aggregation sheet", zap.String("file", f.Name), zap.String("sheet", sheet))
			continue
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, skipped, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}
		frame := model.FrameFromRows(rows[0], rows[1:])
		frames = append(frames, r.finishFrame(frame, f.Name, sheet))
	}
	return frames, skipped, nil
}

// readParquet downloads and decodes a Parquet file. Parquet needs random
// access, so the payload stays in memory.
func (r *sourceReader) readParquet(ctx context.Context, f RemoteFile) (*model.Frame, error) {
	data, err := r.store.DownloadBytes(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parquet %s: %w", f.Name, err)
	}
	defer func() { _ = pqReader.Close() }()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return nil, fmt.Errorf("parquet %s: %w", f.Name, err)
	}
	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("parquet %s: %w", f.Name, err)
	}
	defer table.Release()

	if table.NumRows() == 0 {
		return nil, nil
	}

	schema := table.Schema()
	header := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}

	tableReader := array.NewTableReader(table, 0)
	defer tableReader.Release()

	var rows [][]string
	for tableReader.Next() {
		batch := tableReader.Record()
		for i := range int(batch.NumRows()) {
			row := make([]string, batch.NumCols())
			for j, col := range batch.Columns() {
				row[j] = arrowValue(col, i)
			}
			rows = append(rows, row)
		}
	}
	if err := tableReader.Err(); err != nil {
		return nil, fmt.Errorf("parquet %s: %w", f.Name, err)
	}

	return r.finishFrame(model.FrameFromRows(header, rows), f.Name, ""), nil
}

// arrowValue renders one arrow cell as text for the string-based pipeline.
func arrowValue(col arrow.Array, i int) string {
	if col.IsNull(i) {
		return ""
	}
	switch a := col.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Int8:
		return strconv.FormatInt(int64(a.Value(i)), 10)
	case *array.Int16:
		return strconv.FormatInt(int64(a.Value(i)), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(i)), 10)
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10)
	case *array.Uint8:
		return strconv.FormatUint(uint64(a.Value(i)), 10)
	case *array.Uint16:
		return strconv.FormatUint(uint64(a.Value(i)), 10)
	case *array.Uint32:
		return strconv.FormatUint(uint64(a.Value(i)), 10)
	case *array.Uint64:
		return strconv.FormatUint(a.Value(i), 10)
	case *array.Float32:
		return strconv.FormatFloat(float64(a.Value(i)), 'f', -1, 32)
	case *array.Float64:
		return strconv.FormatFloat(a.Value(i), 'f', -1, 64)
	case *array.Boolean:
		return strconv.FormatBool(a.Value(i))
	case *array.Date32:
		return a.Value(i).ToTime().Format(model.DateLayout)
	case *array.Date64:
		return a.Value(i).ToTime().Format(model.DateLayout)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(i))
	}
}

// finishFrame runs the shared per-frame pipeline: normalize column names,
// drop total rows, adopt and coerce a date column, clean the canonical
// metric columns, then tag provenance.
func (r *sourceReader) finishFrame(frame *model.Frame, fileName, sheetName string) *model.Frame {
	frame = model.NormalizeColumns(frame)
	frame = model.DropTotalRows(frame)
	frame = model.EnsureDateColumn(frame)
	for _, name := range model.CanonicalMetricColumns {
		if col := frame.Col(name); col != nil && col.Kind == model.KindText {
			frame.SetCol(model.CleanNumeric(col))
		}
	}

	tagColumn(frame, model.ColSourceFile, fileName)
	if sheetName != "" {
		tagColumn(frame, model.ColSourceSheet, sheetName)
	}
	return frame
}

func tagColumn(f *model.Frame, name, value string) {
	values := make([]string, f.Len())
	for i := range values {
		values[i] = value
	}
	f.SetCol(model.NewTextSeries(name, values))
}
