package dataset

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"checkrecon/internal/records"
	"checkrecon/internal/services"
)

var (
	seedFrom = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	seedTo   = time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Fictitious returns n generated records. The same seed always yields the
// same records.
func Fictitious(n int, seed int64) []records.NewRecord {
	faker := gofakeit.New(seed)
	out := make([]records.NewRecord, 0, n)
	for i := 0; i < n; i++ {
		issued := calendarDate(faker.DateRange(seedFrom, seedTo))
		item := records.NewRecord{
			AccountNumber: faker.Numerify("######"),
			CheckNumber:   faker.Numerify("####"),
			Amount:        decimal.NewNullDecimal(decimal.NewFromFloat(faker.Price(100, 1100)).Round(2)),
			IssueDate:     &issued,
			Payee1:        faker.Name(),
		}
		if faker.Number(1, 5) == 1 {
			item.Payee2 = faker.Company()
		}
		out = append(out, item)
	}
	return out
}

// Seed inserts n fictitious records. Generated account and check pairs that
// collide with stored records are skipped.
func Seed(ctx context.Context, store Inserter, n int, seed int64) (Result, error) {
	if store == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "dataset", "seed", "record store unavailable", nil)
	}
	if n <= 0 {
		return Result{}, services.Wrap(services.ErrValidation, "dataset", "seed", "count must be positive", nil)
	}
	items := Fictitious(n, seed)
	inserted, skipped, err := store.InsertRecords(ctx, items)
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: len(items), Inserted: inserted, Skipped: skipped}, nil
}
