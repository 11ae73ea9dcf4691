package salesbot_test

import (
	"context"
	"fmt"
	"log"

	"github.com/alpha-insights/salesbot"
	"github.com/alpha-insights/salesbot/domain/model"
)

// ExampleOpenSQL shows ad-hoc SQL over an already consolidated dataset: the
// frame becomes a "sales" table inside an in-memory SQLite database.
func ExampleOpenSQL() {
	dataset := model.NewFrame(
		model.NewTextSeries(model.ColRegion, []string{"Sul", "Norte", "Sul"}),
		model.NewNumberSeries(model.ColRevenue, []float64{100, 40, 60}),
	)

	ctx := context.Background()
	db, err := salesbot.OpenSQL(ctx, dataset)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var total float64
	row := db.QueryRowContext(ctx, `SELECT SUM(revenue) FROM "sales" WHERE region = 'Sul'`)
	if err := row.Scan(&total); err != nil {
		log.Fatal(err)
	}
	fmt.Println(model.FormatBRL(total))
	// Output: R$ 160,00
}

// ExampleCSVBytes renders a dataset the way exports and LLM prompt samples
// see it: ISO dates, plain numbers, empty cells for nulls.
func ExampleCSVBytes() {
	dataset := model.NewFrame(
		model.NewTextSeries(model.ColProduct, []string{"Caneta", "Lapis"}),
		model.NewNumberSeries(model.ColQuantity, []float64{10, 4}),
	)

	data, err := salesbot.CSVBytes(dataset)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(string(data))
	// Output:
	// product,quantity
	// Caneta,10
	// Lapis,4
}

// ExampleRowCapacityFor shows the size guard consulted before any
// full-dataset prompt is sent.
func ExampleRowCapacityFor() {
	fmt.Println(salesbot.RowCapacityFor(nil, "models/gemini-1.5-flash"))
	fmt.Println(salesbot.RowCapacityFor(nil, "some-unknown-model"))
	// Output:
	// 25000
	// 10000
}
