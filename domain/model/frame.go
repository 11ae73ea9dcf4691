// Package model provides the domain model for salesbot: the columnar
// Frame/Series dataset, column normalization, type coercion, row
// sanitizing, the data catalog and the query plan.
package model

import (
	"math"
	"strconv"
	"time"
)

// Kind represents the storage type of a Series.
type Kind int

const (
	// KindText stores raw string values.
	KindText Kind = iota
	// KindNumber stores float64 values, NaN marking missing cells.
	KindNumber
	// KindDate stores calendar dates with a per-row validity mask.
	KindDate
)

// String returns the dtype name used in catalogs.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// DateLayout is the ISO layout used whenever dates are rendered as text.
const DateLayout = "2006-01-02"

// Series is a single named column. Exactly one of Text, Nums or Dates is
// populated depending on Kind; Valid is the validity mask for KindDate.
type Series struct {
	Name  string
	Kind  Kind
	Text  []string
	Nums  []float64
	Dates []time.Time
	Valid []bool
}

// NewTextSeries creates a text column.
func NewTextSeries(name string, values []string) *Series {
	return &Series{Name: name, Kind: KindText, Text: values}
}

// NewNumberSeries creates a numeric column. Missing values are NaN.
func NewNumberSeries(name string, values []float64) *Series {
	return &Series{Name: name, Kind: KindNumber, Nums: values}
}

// NewDateSeries creates a date column with a validity mask.
func NewDateSeries(name string, dates []time.Time, valid []bool) *Series {
	return &Series{Name: name, Kind: KindDate, Dates: dates, Valid: valid}
}

// Len returns the number of rows in the series.
func (s *Series) Len() int {
	switch s.Kind {
	case KindNumber:
		return len(s.Nums)
	case KindDate:
		return len(s.Dates)
	default:
		return len(s.Text)
	}
}

// IsNull reports whether the cell at row i carries no usable value.
func (s *Series) IsNull(i int) bool {
	switch s.Kind {
	case KindNumber:
		return math.IsNaN(s.Nums[i])
	case KindDate:
		return !s.Valid[i]
	default:
		return s.Text[i] == ""
	}
}

// ValueAt renders the cell at row i as a string. Numbers use the shortest
// round-trip representation, dates use DateLayout, nulls render empty.
func (s *Series) ValueAt(i int) string {
	switch s.Kind {
	case KindNumber:
		if math.IsNaN(s.Nums[i]) {
			return ""
		}
		return strconv.FormatFloat(s.Nums[i], 'f', -1, 64)
	case KindDate:
		if !s.Valid[i] {
			return ""
		}
		return s.Dates[i].Format(DateLayout)
	default:
		return s.Text[i]
	}
}

// Take returns a new series containing the rows at the given indices.
func (s *Series) Take(idx []int) *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case KindNumber:
		out.Nums = make([]float64, len(idx))
		for j, i := range idx {
			out.Nums[j] = s.Nums[i]
		}
	case KindDate:
		out.Dates = make([]time.Time, len(idx))
		out.Valid = make([]bool, len(idx))
		for j, i := range idx {
			out.Dates[j] = s.Dates[i]
			out.Valid[j] = s.Valid[i]
		}
	default:
		out.Text = make([]string, len(idx))
		for j, i := range idx {
			out.Text[j] = s.Text[i]
		}
	}
	return out
}

// Frame is an ordered collection of equal-length columns. The zero value
// and nil are both usable as an empty frame.
type Frame struct {
	cols []*Series
}

// NewFrame creates a frame from the given columns. All columns must have
// the same length; this is the caller's invariant.
func NewFrame(cols ...*Series) *Frame {
	return &Frame{cols: cols}
}

// FrameFromRows builds an all-text frame from a header row and data rows.
// Rows shorter than the header are padded with empty strings, longer rows
// are truncated, matching how the source readers treat ragged input.
func FrameFromRows(header []string, rows [][]string) *Frame {
	cols := make([]*Series, len(header))
	for c, name := range header {
		values := make([]string, len(rows))
		for r, row := range rows {
			if c < len(row) {
				values[r] = row[c]
			}
		}
		cols[c] = NewTextSeries(name, values)
	}
	return NewFrame(cols...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil || len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// NumColumns returns the number of columns.
func (f *Frame) NumColumns() int {
	if f == nil {
		return 0
	}
	return len(f.cols)
}

// Columns returns column names in order.
func (f *Frame) Columns() []string {
	if f == nil {
		return nil
	}
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Col returns the named column, or nil when absent.
func (f *Frame) Col(name string) *Series {
	if f == nil {
		return nil
	}
	for _, c := range f.cols {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	return f.Col(name) != nil
}

// SetCol replaces the column with the same name, or appends it.
func (f *Frame) SetCol(s *Series) {
	for i, c := range f.cols {
		if c.Name == s.Name {
			f.cols[i] = s
			return
		}
	}
	f.cols = append(f.cols, s)
}

// ShallowClone returns a frame with its own column list over the same
// series. Adding or replacing columns on the clone leaves the receiver
// untouched; cell data is still shared.
func (f *Frame) ShallowClone() *Frame {
	if f == nil {
		return NewFrame()
	}
	return &Frame{cols: append([]*Series(nil), f.cols...)}
}

// RenameColumn renames a column in place. A rename whose target already
// exists is skipped so canonical columns are never clobbered.
func (f *Frame) RenameColumn(from, to string) {
	if f == nil || from == to || f.HasColumn(to) {
		return
	}
	if c := f.Col(from); c != nil {
		c.Name = to
	}
}

// DropColumn removes the named column if present.
func (f *Frame) DropColumn(name string) {
	if f == nil {
		return
	}
	for i, c := range f.cols {
		if c.Name == name {
			f.cols = append(f.cols[:i], f.cols[i+1:]...)
			return
		}
	}
}

// Take returns a new frame containing the rows at the given indices,
// preserving their order.
func (f *Frame) Take(idx []int) *Frame {
	if f == nil {
		return nil
	}
	cols := make([]*Series, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Take(idx)
	}
	return NewFrame(cols...)
}

// Head returns the first n rows (all rows when n exceeds the length).
func (f *Frame) Head(n int) *Frame {
	if f == nil {
		return nil
	}
	if n > f.Len() {
		n = f.Len()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.Take(idx)
}

// Row renders row i as strings in column order.
func (f *Frame) Row(i int) []string {
	out := make([]string, len(f.cols))
	for c, col := range f.cols {
		out[c] = col.ValueAt(i)
	}
	return out
}

// ConcatFrames concatenates frames row-wise over the union of their
// columns, in first-seen column order. A column missing from a frame is
// filled with nulls for that frame's rows. Columns whose kinds disagree
// across frames degrade to text; the consolidator re-coerces globally.
func ConcatFrames(frames []*Frame) *Frame {
	var order []string
	kinds := make(map[string]Kind)
	seen := make(map[string]bool)
	mixed := make(map[string]bool)
	total := 0
	for _, f := range frames {
		if f == nil {
			continue
		}
		total += f.Len()
		for _, c := range f.cols {
			if !seen[c.Name] {
				seen[c.Name] = true
				kinds[c.Name] = c.Kind
				order = append(order, c.Name)
			} else if kinds[c.Name] != c.Kind {
				mixed[c.Name] = true
			}
		}
	}
	if len(order) == 0 {
		return NewFrame()
	}

	cols := make([]*Series, 0, len(order))
	for _, name := range order {
		kind := kinds[name]
		if mixed[name] {
			kind = KindText
		}
		cols = append(cols, concatColumn(name, kind, frames, total))
	}
	return NewFrame(cols...)
}

func concatColumn(name string, kind Kind, frames []*Frame, total int) *Series {
	out := &Series{Name: name, Kind: kind}
	switch kind {
	case KindNumber:
		out.Nums = make([]float64, 0, total)
	case KindDate:
		out.Dates = make([]time.Time, 0, total)
		out.Valid = make([]bool, 0, total)
	default:
		out.Text = make([]string, 0, total)
	}
	for _, f := range frames {
		if f == nil {
			continue
		}
		n := f.Len()
		src := f.Col(name)
		for i := 0; i < n; i++ {
			switch kind {
			case KindNumber:
				if src == nil {
					out.Nums = append(out.Nums, math.NaN())
				} else {
					out.Nums = append(out.Nums, src.Nums[i])
				}
			case KindDate:
				if src == nil {
					out.Dates = append(out.Dates, time.Time{})
					out.Valid = append(out.Valid, false)
				} else {
					out.Dates = append(out.Dates, src.Dates[i])
					out.Valid = append(out.Valid, src.Valid[i])
				}
			default:
				if src == nil {
					out.Text = append(out.Text, "")
				} else {
					out.Text = append(out.Text, src.ValueAt(i))
				}
			}
		}
	}
	return out
}
