package salesbot

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-insights/salesbot/domain/model"
)

func TestOpenSQL(t *testing.T) {
	t.Parallel()

	dataset := model.NewFrame(
		model.NewTextSeries(model.ColRegion, []string{"Sul", "Norte", "Sul"}),
		model.NewNumberSeries(model.ColRevenue, []float64{100, math.NaN(), 60}),
	)

	ctx := context.Background()
	db, err := OpenSQL(ctx, dataset)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var rows int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "sales"`).Scan(&rows))
	assert.Equal(t, 3, rows)

	var total float64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT SUM(revenue) FROM "sales" WHERE region = 'Sul'`).Scan(&total))
	assert.InDelta(t, 160.0, total, 1e-9)

	var nulls int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM "sales" WHERE revenue IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls, "NaN materializes as SQL NULL")
}

func TestOpenSQLEmptyDataset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenSQL(ctx, model.NewFrame())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var rows int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "sales"`).Scan(&rows))
	assert.Zero(t, rows)
}
