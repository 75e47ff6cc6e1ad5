package finance

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// History timeframes.
const (
	TimeframeYear  = "year"
	TimeframeMonth = "month"
)

// Bucket is one point of a history chart. Day is zero for year timeframes.
type Bucket struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Day     int             `json:"day,omitempty"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Periods returns the years that have history, oldest first. A caller
// without any history gets the current year.
func (s *Service) Periods(ctx context.Context, userID string) ([]int, error) {
	totals, err := s.stores.History.YearTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return []int{s.Now().Year()}, nil
	}
	years := make([]int, 0, len(totals))
	for _, t := range totals {
		years = append(years, t.Year)
	}
	return years, nil
}

// History returns a dense series: 12 month buckets for a year, or one
// bucket per day for a month (1-12). Buckets without activity are zero.
func (s *Service) History(ctx context.Context, userID, timeframe string, year, month int) ([]Bucket, error) {
	if year < 1 {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid year %d", year)
	}
	switch timeframe {
	case TimeframeYear:
		stored, err := s.stores.History.YearBuckets(ctx, userID, year)
		if err != nil {
			return nil, err
		}
		out := make([]Bucket, 12)
		for i := range out {
			out[i] = Bucket{Year: year, Month: i + 1, Income: decimal.Zero, Expense: decimal.Zero}
		}
		for _, b := range stored {
			if b.Month >= 1 && b.Month <= 12 {
				out[b.Month-1].Income = data.FromDecimal128(b.Income)
				out[b.Month-1].Expense = data.FromDecimal128(b.Expense)
			}
		}
		return out, nil

	case TimeframeMonth:
		if month < 1 || month > 12 {
			return nil, errors.Wrapf(ErrInvalidInput, "invalid month %d", month)
		}
		stored, err := s.stores.History.MonthBuckets(ctx, userID, year, month)
		if err != nil {
			return nil, err
		}
		days := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		out := make([]Bucket, days)
		for i := range out {
			out[i] = Bucket{Year: year, Month: month, Day: i + 1, Income: decimal.Zero, Expense: decimal.Zero}
		}
		for _, b := range stored {
			if b.Day >= 1 && b.Day <= days {
				out[b.Day-1].Income = data.FromDecimal128(b.Income)
				out[b.Day-1].Expense = data.FromDecimal128(b.Expense)
			}
		}
		return out, nil

	default:
		return nil, errors.Wrapf(ErrInvalidInput, "timeframe must be year or month, got %q", timeframe)
	}
}
