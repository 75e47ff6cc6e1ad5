package finance

import (
	"fmt"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/normalize"
	"github.com/pkg/errors"
)

// MaxDateRangeDays is the widest range accepted by listing and stats.
const MaxDateRangeDays = 90

// DateRange is an inclusive range of calendar days in UTC. To is the last
// instant of its day.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange validates from and to (both truncated to their day).
func NewDateRange(from, to time.Time) (DateRange, error) {
	from, to = normalize.Day(from), normalize.Day(to)
	if from.After(to) {
		return DateRange{}, errors.Wrapf(ErrInvalidRange, "from %s is after to %s",
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	if days := int(to.Sub(from).Hours() / 24); days > MaxDateRangeDays {
		return DateRange{}, errors.Wrap(ErrInvalidRange,
			fmt.Sprintf("range of %d days exceeds %d", days, MaxDateRangeDays))
	}
	return DateRange{From: from, To: to.Add(24*time.Hour - time.Nanosecond)}, nil
}

// ParseDateRange parses optional from/to query values. Missing from defaults
// to the first day of now's month, missing to defaults to now's day.
func ParseDateRange(from, to string, now time.Time) (DateRange, error) {
	today := normalize.Day(now)
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := today

	var err error
	if from != "" {
		if start, err = normalize.Date(from); err != nil {
			return DateRange{}, errors.Wrap(ErrInvalidRange, err.Error())
		}
	}
	if to != "" {
		if end, err = normalize.Date(to); err != nil {
			return DateRange{}, errors.Wrap(ErrInvalidRange, err.Error())
		}
	}
	return NewDateRange(start, end)
}
