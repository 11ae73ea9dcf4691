package salesbot

import "errors"

// Sentinel errors for the ingestion and query pipeline.
var (
	// ErrNoFiles indicates the source folder contains no supported files.
	ErrNoFiles = errors.New("salesbot: no supported files in folder")

	// ErrEmptyDataset indicates files were found but none yielded usable rows.
	ErrEmptyDataset = errors.New("salesbot: dataset is empty")

	// ErrPlanUnusable indicates the planner produced no executable plan.
	ErrPlanUnusable = errors.New("salesbot: plan is unusable")

	// ErrUnsupportedWorkbook indicates a workbook that could be listed but
	// not parsed.
	ErrUnsupportedWorkbook = errors.New("salesbot: unsupported workbook")

	// ErrUnsupportedFormat indicates a file format the reader cannot handle.
	ErrUnsupportedFormat = errors.New("salesbot: unsupported file format")

	// ErrMissingConfig indicates a required configuration value is absent.
	ErrMissingConfig = errors.New("salesbot: missing configuration")

	// ErrNoModels indicates the model listing returned nothing usable.
	ErrNoModels = errors.New("salesbot: no generative models available")
)
