package model

import (
	"math"
	"testing"
	"time"
)

func TestCoerceDates(t *testing.T) {
	t.Parallel()

	t.Run("day-first textual dates", func(t *testing.T) {
		t.Parallel()
		s := NewTextSeries("date", []string{"31/12/2023", "01/02/2024", "2024-03-15"})
		out := CoerceDates(s)
		want := []time.Time{
			time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), // day-first: Feb 1st, not Jan 2nd
			time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		}
		for i, w := range want {
			if !out.Valid[i] {
				t.Fatalf("row %d should be valid", i)
			}
			if !out.Dates[i].Equal(w) {
				t.Errorf("row %d = %v, want %v", i, out.Dates[i], w)
			}
		}
	})

	t.Run("excel serial merge", func(t *testing.T) {
		t.Parallel()
		s := NewTextSeries("date", []string{"45292", "45293", "nonsense"})
		out := CoerceDates(s)
		if !out.Valid[0] {
			t.Fatal("serial 45292 should parse")
		}
		// 45292 days after 1899-12-30 lands on 2024-01-01.
		if got := out.Dates[0].Year(); got < 2023 || got > 2024 {
			t.Errorf("serial 45292 parsed to year %d, want 2023-2024", got)
		}
		if out.Valid[2] {
			t.Error("unparseable value should stay null")
		}
	})

	t.Run("serials outside plausible range stay null", func(t *testing.T) {
		t.Parallel()
		s := NewTextSeries("date", []string{"5", "100000", "12"})
		out := CoerceDates(s)
		for i := range out.Valid {
			if out.Valid[i] {
				t.Errorf("row %d should be null", i)
			}
		}
	})

	t.Run("empty input returns empty typed series", func(t *testing.T) {
		t.Parallel()
		out := CoerceDates(NewTextSeries("date", nil))
		if out.Kind != KindDate || out.Len() != 0 {
			t.Errorf("got kind=%v len=%d, want empty date series", out.Kind, out.Len())
		}
	})

	t.Run("already coerced passes through", func(t *testing.T) {
		t.Parallel()
		dates := NewDateSeries("date", []time.Time{time.Now()}, []bool{true})
		if got := CoerceDates(dates); got != dates {
			t.Error("date series should pass through unchanged")
		}
	})
}

func TestEnsureDateColumn(t *testing.T) {
	t.Parallel()

	t.Run("adopts best candidate above threshold", func(t *testing.T) {
		t.Parallel()
		f := FrameFromRows(
			[]string{"emitted", "product"},
			[][]string{
				{"01/01/2024", "A"},
				{"02/01/2024", "B"},
				{"03/01/2024", "C"},
			},
		)
		EnsureDateColumn(f)
		c := f.Col(ColDate)
		if c == nil {
			t.Fatal("date column should have been adopted")
		}
		if c.Kind != KindDate || !c.Valid[0] {
			t.Errorf("adopted column not coerced: kind=%v", c.Kind)
		}
	})

	t.Run("no adoption below threshold", func(t *testing.T) {
		t.Parallel()
		f := FrameFromRows(
			[]string{"product", "notes"},
			[][]string{
				{"A", "x"},
				{"B", "y"},
			},
		)
		EnsureDateColumn(f)
		if f.HasColumn(ColDate) {
			t.Error("no column should have been adopted")
		}
	})
}

func TestCleanNumeric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "brazilian currency", input: "R$ 1.234,56", expected: 1234.56},
		{name: "comma decimal", input: "5,50", expected: 5.5},
		{name: "plain period decimal", input: "1234.56", expected: 1234.56},
		{name: "integer", input: "42", expected: 42},
		{name: "negative", input: "-3,25", expected: -3.25},
		{name: "percent stripped", input: "12,5%", expected: 12.5},
		{name: "spaces and nbsp stripped", input: "1 234,5", expected: 1234.5},
		// Comma implies decimal: thousands-comma input in the
		// international convention misparses on purpose (documented
		// locale bias).
		{name: "international thousands comma", input: "1,234.56", expected: 1.23456},
		{name: "bare thousands comma", input: "1,234", expected: 1.234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := CleanNumeric(NewTextSeries("v", []string{tt.input}))
			if math.Abs(out.Nums[0]-tt.expected) > 1e-9 {
				t.Errorf("CleanNumeric(%q) = %v, want %v", tt.input, out.Nums[0], tt.expected)
			}
		})
	}

	t.Run("sentinels become NaN", func(t *testing.T) {
		t.Parallel()
		out := CleanNumeric(NewTextSeries("v", []string{"", "N/A", "NULL", "none", "-", "abc"}))
		for i := range out.Nums {
			if !math.IsNaN(out.Nums[i]) {
				t.Errorf("row %d = %v, want NaN", i, out.Nums[i])
			}
		}
	})

	t.Run("numeric series is a fixed point", func(t *testing.T) {
		t.Parallel()
		s := NewNumberSeries("v", []float64{1.5, 2.5})
		if got := CleanNumeric(s); got != s {
			t.Error("already-numeric series should pass through unchanged")
		}
	})
}
