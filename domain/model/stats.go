package model

import (
	"fmt"
	"strings"
	"time"
)

// LoadStats records the outcome of one ingestion run. Held in memory for
// the session and recomputed on cache clear.
type LoadStats struct {
	// FileCount is the number of supported files discovered, loadable or
	// not.
	FileCount int
	// RowCount is the consolidated row count after sanitizing.
	RowCount int
	// LoadDuration is wall-clock ingestion time.
	LoadDuration time.Duration
	// RowsBeforeDedup and DedupRemoved describe the deduplication pass.
	RowsBeforeDedup int
	DedupRemoved    int
	// AggregatedTabsSkipped counts sheet tabs excluded as pre-aggregated
	// summaries.
	AggregatedTabsSkipped int
}

// FileInfo describes one loaded source file.
type FileInfo struct {
	ID       string
	Name     string
	MIMEType string
	Rows     int
}

// SourceSummary carries per-folder diagnostics: what was discovered and
// what could not be used. It distinguishes "no files found" from "files
// found but unusable".
type SourceSummary struct {
	FolderID     string
	CountsByMIME map[string]int
	Unsupported  []string
}

// FormatBRL renders a value as Brazilian currency, e.g. "R$ 1.234,56".
func FormatBRL(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := int64(v)
	cents := int64(v*100+0.5) - whole*100
	if cents >= 100 {
		whole++
		cents -= 100
	}
	digits := fmt.Sprintf("%d", whole)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("R$ %s%s,%02d", sign, strings.Join(groups, "."), cents)
}
