package salesbot

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/alpha-insights/salesbot/domain/model"
)

// SQLTableName is the table OpenSQL materializes the dataset into.
const SQLTableName = "sales"

// OpenSQL materializes the dataset into an in-memory SQLite database as the
// "sales" table, for ad-hoc SQL beyond what plans express. Text columns map
// to TEXT, numeric to REAL, dates to TEXT in ISO form; nulls stay NULL. The
// caller owns the returned handle.
func OpenSQL(ctx context.Context, dataset *model.Frame) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("salesbot: open sql workspace: %w", err)
	}
	if err := loadSQLTable(ctx, db, dataset); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func loadSQLTable(ctx context.Context, db *sql.DB, dataset *model.Frame) error {
	if dataset == nil {
		dataset = model.NewFrame()
	}

	columns := make([]string, 0, dataset.NumColumns())
	for _, name := range dataset.Columns() {
		columns = append(columns, fmt.Sprintf(`"%s" %s`, name, sqlColumnType(dataset.Col(name))))
	}
	if len(columns) == 0 {
		columns = append(columns, `"empty" TEXT`)
	}
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (%s)`, SQLTableName, strings.Join(columns, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("salesbot: create sales table: %w", err)
	}
	if dataset.Len() == 0 {
		return nil
	}

	placeholders := make([]string, dataset.NumColumns())
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmt, err := db.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO "%s" VALUES (%s)`, SQLTableName, strings.Join(placeholders, ", ")))
	if err != nil {
		return fmt.Errorf("salesbot: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	names := dataset.Columns()
	for i := 0; i < dataset.Len(); i++ {
		values := make([]any, len(names))
		for j, name := range names {
			values[j] = sqlValue(dataset.Col(name), i)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("salesbot: insert row %d: %w", i, err)
		}
	}
	return nil
}

func sqlColumnType(col *model.Series) string {
	if col != nil && col.Kind == model.KindNumber {
		return "REAL"
	}
	return "TEXT"
}

func sqlValue(col *model.Series, i int) any {
	if col == nil || col.IsNull(i) {
		return nil
	}
	if col.Kind == model.KindNumber {
		if math.IsNaN(col.Nums[i]) {
			return nil
		}
		return col.Nums[i]
	}
	return col.ValueAt(i)
}
