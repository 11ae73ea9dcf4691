package salesbot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alpha-insights/salesbot/domain/model"
)

// Loader ingests a remote folder into one consolidated dataset. Reads are
// sequential in discovery order; a failing file is logged and skipped, a
// failing listing yields an empty dataset rather than an error.
type Loader struct {
	store  RemoteStore
	reader *sourceReader
	logger *zap.Logger
}

// NewLoader builds a loader over the given remote store.
func NewLoader(store RemoteStore, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		store:  store,
		reader: newSourceReader(store, logger),
		logger: logger,
	}
}

// LoadDataset lists the folder, reads every supported file, concatenates
// all frames and applies the global sanitizing pass. The returned summary
// distinguishes "no files found" from "files found but unusable"; neither
// case is an error to the caller.
func (l *Loader) LoadDataset(ctx context.Context, folderID string) (*model.Frame, []model.FileInfo, model.LoadStats, model.SourceSummary) {
	start := time.Now()
	stats := model.LoadStats{}
	summary := model.SourceSummary{FolderID: folderID, CountsByMIME: map[string]int{}}

	listed, err := l.store.ListFolder(ctx, folderID)
	if err != nil {
		l.logger.Error("folder listing failed", zap.String("folder", folderID), zap.Error(err))
		stats.LoadDuration = time.Since(start)
		return model.NewFrame(), nil, stats, model.SourceSummary{CountsByMIME: map[string]int{}}
	}

	var supported []RemoteFile
	for _, f := range listed {
		summary.CountsByMIME[f.MIMEType]++
		if isSupportedFile(f.Name, f.MIMEType) {
			supported = append(supported, f)
		} else {
			summary.Unsupported = append(summary.Unsupported, f.Name)
		}
	}
	stats.FileCount = len(supported)
	if len(supported) == 0 {
		l.logger.Warn("no supported files in folder",
			zap.String("folder", folderID), zap.Int("discovered", len(listed)))
		stats.LoadDuration = time.Since(start)
		return model.NewFrame(), nil, stats, summary
	}

	var frames []*model.Frame
	var files []model.FileInfo
	for _, f := range supported {
		fileFrames, skipped, err := l.reader.readFile(ctx, f)
		stats.AggregatedTabsSkipped += skipped
		if err != nil {
			l.logger.Warn("skipping unreadable file",
				zap.String("file", f.Name), zap.String("mime", f.MIMEType), zap.Error(err))
			continue
		}
		rows := 0
		for _, frame := range fileFrames {
			rows += frame.Len()
		}
		frames = append(frames, fileFrames...)
		files = append(files, model.FileInfo{ID: f.ID, Name: f.Name, MIMEType: f.MIMEType, Rows: rows})
	}

	dataset := l.consolidate(model.ConcatFrames(frames), &stats)
	stats.RowCount = dataset.Len()
	stats.LoadDuration = time.Since(start)
	l.logger.Info("dataset loaded",
		zap.String("folder", folderID),
		zap.Int("files", stats.FileCount),
		zap.Int("rows", stats.RowCount),
		zap.Int("dedup_removed", stats.DedupRemoved),
		zap.Duration("elapsed", stats.LoadDuration))
	return dataset, files, stats, summary
}

// consolidate re-applies the per-frame pipeline globally. Normalization and
// coercion are idempotent, so re-running them only fixes columns that were
// unified by the concat (e.g. a text-degraded mixed column).
func (l *Loader) consolidate(dataset *model.Frame, stats *model.LoadStats) *model.Frame {
	dataset = model.NormalizeColumns(dataset)
	dataset = model.EnsureDateColumn(dataset)
	for _, name := range model.CanonicalMetricColumns {
		if col := dataset.Col(name); col != nil && col.Kind == model.KindText {
			dataset.SetCol(model.CleanNumeric(col))
		}
	}
	dataset = model.DeriveRevenue(dataset)
	// Consolidation-level renaming can surface total rows the per-file pass
	// could not recognize.
	dataset = model.DropTotalRows(dataset)

	stats.RowsBeforeDedup = dataset.Len()
	dataset, removed := model.Deduplicate(dataset)
	stats.DedupRemoved = removed
	return dataset
}
