package model

import "testing"

func TestFormatBRL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value float64
		want  string
	}{
		{0, "R$ 0,00"},
		{5, "R$ 5,00"},
		{1234.56, "R$ 1.234,56"},
		{999.999, "R$ 1.000,00"},
		{1000000, "R$ 1.000.000,00"},
		{-42.5, "R$ -42,50"},
		{0.1, "R$ 0,10"},
	}
	for _, tt := range tests {
		if got := FormatBRL(tt.value); got != tt.want {
			t.Errorf("FormatBRL(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
