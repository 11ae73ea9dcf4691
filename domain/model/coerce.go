package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date coercion thresholds. Parsing stops as soon as the null rate drops
// below acceptNullRate; a stage whose null rate stays above retryNullRate
// hands over to the next strategy.
const (
	acceptNullRate = 0.10
	retryNullRate  = 0.50
)

// Excel serial date handling: day counts with epoch 1899-12-30, restricted
// to a plausible range (20000 ~ 1954, 80000 ~ 2119) so stray numerics are
// not misread as dates.
const (
	serialDateMin = 20000
	serialDateMax = 80000
)

var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// dayFirstLayouts is the ordered layout chain for the first parsing pass.
// Day-first layouts come before month-first so regional DD/MM input wins
// on ambiguous values.
var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	time.RFC3339,
}

// explicitLayouts is the retry format list evaluated one layout at a time,
// keeping whichever single layout yields the fewest nulls.
var explicitLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
}

// dateParse is one strategy's outcome over a whole series.
type dateParse struct {
	dates []time.Time
	valid []bool
}

func (p dateParse) nullRate() float64 {
	if len(p.valid) == 0 {
		return 1.0
	}
	nulls := 0
	for _, ok := range p.valid {
		if !ok {
			nulls++
		}
	}
	return float64(nulls) / float64(len(p.valid))
}

// merge fills still-null positions from other. Resolved values are never
// overwritten.
func (p dateParse) merge(other dateParse) dateParse {
	for i := range p.valid {
		if !p.valid[i] && other.valid[i] {
			p.dates[i] = other.dates[i]
			p.valid[i] = other.valid[i]
		}
	}
	return p
}

// dateStrategy is a named, ordered parsing step. The chain is a
// first-class slice so each step can be exercised on its own.
type dateStrategy struct {
	name  string
	parse func(values []string, prev dateParse) dateParse
}

var dateStrategies = []dateStrategy{
	{name: "day-first", parse: parseDayFirst},
	{name: "explicit-format", parse: parseBestExplicitLayout},
	{name: "excel-serial", parse: parseSerialMerge},
}

func parseDayFirst(values []string, _ dateParse) dateParse {
	out := dateParse{dates: make([]time.Time, len(values)), valid: make([]bool, len(values))}
	for i, v := range values {
		if d, ok := parseDateValue(v); ok {
			out.dates[i] = d
			out.valid[i] = true
		}
	}
	return out
}

// parseBestExplicitLayout tries each explicit layout across the whole
// series and keeps the single best one, but only when it improves on the
// previous stage.
func parseBestExplicitLayout(values []string, prev dateParse) dateParse {
	best := prev
	bestRate := prev.nullRate()
	for _, layout := range explicitLayouts {
		candidate := dateParse{dates: make([]time.Time, len(values)), valid: make([]bool, len(values))}
		for i, v := range values {
			if d, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				candidate.dates[i] = dateOnly(d)
				candidate.valid[i] = true
			}
		}
		if rate := candidate.nullRate(); rate < bestRate {
			best = candidate
			bestRate = rate
		}
	}
	return best
}

// parseSerialMerge parses plausible spreadsheet serial numbers and merges
// them into positions the earlier stages left null.
func parseSerialMerge(values []string, prev dateParse) dateParse {
	serial := dateParse{dates: make([]time.Time, len(values)), valid: make([]bool, len(values))}
	any := false
	for i, v := range values {
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || n < serialDateMin || n > serialDateMax {
			continue
		}
		serial.dates[i] = dateOnly(serialEpoch.Add(time.Duration(n * 24 * float64(time.Hour))))
		serial.valid[i] = true
		any = true
	}
	if !any {
		return prev
	}
	return prev.merge(serial)
}

// parseDateValue parses a single textual date with day-first preference.
func parseDateValue(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return dateOnly(d), true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CoerceDates converts a series to calendar dates, running the strategy
// chain in order and stopping once the null rate is acceptable. Values no
// strategy resolves stay null. An already-coerced date series and empty
// input pass through unchanged.
func CoerceDates(s *Series) *Series {
	if s == nil {
		return nil
	}
	if s.Kind == KindDate {
		return s
	}
	n := s.Len()
	if n == 0 {
		return NewDateSeries(s.Name, nil, nil)
	}
	values := make([]string, n)
	for i := 0; i < n; i++ {
		values[i] = s.ValueAt(i)
	}

	result := dateParse{dates: make([]time.Time, n), valid: make([]bool, n)}
	for i, strategy := range dateStrategies {
		if i > 0 && result.nullRate() <= retryNullRate {
			break
		}
		result = strategy.parse(values, result)
		if result.nullRate() < acceptNullRate {
			break
		}
	}
	return NewDateSeries(s.Name, result.dates, result.valid)
}

// dateAdoptThreshold is the minimum parse success rate for promoting a
// non-canonical column to the date column.
const dateAdoptThreshold = 0.6

// EnsureDateColumn coerces the canonical date column when present;
// otherwise it evaluates every column's parse success rate and adopts the
// best candidate as a new date column when the rate reaches the adoption
// threshold. A frame with no viable candidate simply has no date column.
func EnsureDateColumn(f *Frame) *Frame {
	if f == nil || f.Len() == 0 {
		return f
	}
	if c := f.Col(ColDate); c != nil {
		f.SetCol(CoerceDates(c))
		return f
	}
	var bestCol *Series
	bestRate := 0.0
	for _, name := range f.Columns() {
		parsed := CoerceDates(f.Col(name))
		rate := 1.0 - dateParse{dates: parsed.Dates, valid: parsed.Valid}.nullRate()
		if rate > bestRate {
			bestRate = rate
			bestCol = parsed
		}
	}
	if bestCol != nil && bestRate >= dateAdoptThreshold {
		adopted := &Series{Name: ColDate, Kind: KindDate, Dates: bestCol.Dates, Valid: bestCol.Valid}
		f.SetCol(adopted)
	}
	return f
}

// nonNumericChars strips everything that cannot be part of a number,
// keeping digits, comma, period and minus.
var nonNumericChars = regexp.MustCompile(`[^0-9,.\-]`)

// numericSentinels are treated as missing before any stripping happens.
var numericSentinels = map[string]bool{
	"": true, "-": true, ".": true, ",": true,
	"na": true, "n/a": true, "null": true, "none": true, "nan": true,
}

// CleanNumeric converts a series to floats, NaN where unparseable. An
// already-numeric series passes through unchanged. When a comma is
// present the value is read in the comma-decimal convention: periods are
// stripped as thousands separators and the comma becomes the decimal
// point. A value like "1,234" therefore parses as 1.234, a deliberate
// locale bias carried over from the source data, not a bug to fix here.
func CleanNumeric(s *Series) *Series {
	if s == nil || s.Kind == KindNumber {
		return s
	}
	n := s.Len()
	nums := make([]float64, n)
	for i := 0; i < n; i++ {
		nums[i] = parseNumericValue(s.ValueAt(i))
	}
	return NewNumberSeries(s.Name, nums)
}

func parseNumericValue(value string) float64 {
	value = strings.TrimSpace(value)
	if numericSentinels[strings.ToLower(value)] {
		return math.NaN()
	}
	value = nonNumericChars.ReplaceAllString(value, "")
	if numericSentinels[value] {
		return math.NaN()
	}
	if strings.Contains(value, ",") {
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// DateParseSuccessRate reports the fraction of values in a series that the
// date strategy chain resolves. Used by source readers for diagnostics.
func DateParseSuccessRate(s *Series) float64 {
	parsed := CoerceDates(s)
	if parsed == nil || parsed.Len() == 0 {
		return 0
	}
	return 1.0 - dateParse{dates: parsed.Dates, valid: parsed.Valid}.nullRate()
}
