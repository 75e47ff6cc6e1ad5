package data

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// HistoryStore maintains the per-day (month_history) and per-month
// (year_history) aggregates that back the history charts.
type HistoryStore struct {
	month *mongo.Collection
	year  *mongo.Collection
}

// NewHistoryStore returns a HistoryStore over both aggregate collections.
func NewHistoryStore(month, year *mongo.Collection) *HistoryStore {
	return &HistoryStore{month: month, year: year}
}

// YearTotal is the income and expense of one calendar year.
type YearTotal struct {
	Year int
	Totals
}

// ApplyTransaction adds delta to the bucket of typ on the day and month of
// date (UTC). Pass a negated amount to undo a transaction.
//
// The two buckets are separate writes, not one atomic update. When the month
// write fails the day write is reverted before returning the error; if the
// revert fails too, the day bucket keeps delta and the error says so.
func (s *HistoryStore) ApplyTransaction(ctx context.Context, userID string, date time.Time, typ TransactionType, delta decimal.Decimal) error {
	if !typ.Valid() {
		return errors.Errorf("unknown transaction type %q", typ)
	}
	inc, err := ToDecimal128(delta)
	if err != nil {
		return err
	}
	zero, _ := ToDecimal128(decimal.Zero)

	other := Expense
	if typ == Expense {
		other = Income
	}
	update := bson.M{
		"$inc":         bson.M{string(typ): inc},
		"$setOnInsert": bson.M{string(other): zero},
	}
	opts := options.UpdateOne().SetUpsert(true)

	d := date.UTC()
	dayFilter := bson.M{"user_id": userID, "year": d.Year(), "month": int(d.Month()), "day": d.Day()}
	if _, err := s.month.UpdateOne(ctx, dayFilter, update, opts); err != nil {
		return errors.Wrap(err, "update month history")
	}
	monthFilter := bson.M{"user_id": userID, "year": d.Year(), "month": int(d.Month())}
	if _, err := s.year.UpdateOne(ctx, monthFilter, update, opts); err != nil {
		err = errors.Wrap(err, "update year history")
		neg, _ := ToDecimal128(delta.Neg())
		revert := bson.M{"$inc": bson.M{string(typ): neg}}
		if _, rbErr := s.month.UpdateOne(context.WithoutCancel(ctx), dayFilter, revert); rbErr != nil {
			return errors.Wrapf(err, "revert month history failed (%v)", rbErr)
		}
		return err
	}
	return nil
}

// MonthBuckets returns the stored day buckets of one month, ordered by day.
// Days without activity are absent.
func (s *HistoryStore) MonthBuckets(ctx context.Context, userID string, year, month int) ([]*MonthHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "day", Value: 1}})
	cur, err := s.month.Find(ctx, bson.M{"user_id": userID, "year": year, "month": month}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find month history")
	}
	var out []*MonthHistory
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode month history")
	}
	return out, nil
}

// YearBuckets returns the stored month buckets of one year, ordered by month.
func (s *HistoryStore) YearBuckets(ctx context.Context, userID string, year int) ([]*YearHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "month", Value: 1}})
	cur, err := s.year.Find(ctx, bson.M{"user_id": userID, "year": year}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find year history")
	}
	var out []*YearHistory
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode year history")
	}
	return out, nil
}

// YearTotals sums the month buckets per year, oldest year first.
func (s *HistoryStore) YearTotals(ctx context.Context, userID string) ([]YearTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$year"},
			{Key: "income", Value: bson.D{{Key: "$sum", Value: "$income"}}},
			{Key: "expense", Value: bson.D{{Key: "$sum", Value: "$expense"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cur, err := s.year.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate year totals")
	}
	var rows []struct {
		Year    int             `bson:"_id"`
		Income  bson.Decimal128 `bson:"income"`
		Expense bson.Decimal128 `bson:"expense"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode year totals")
	}

	out := make([]YearTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, YearTotal{
			Year:   r.Year,
			Totals: Totals{Income: FromDecimal128(r.Income), Expense: FromDecimal128(r.Expense)},
		})
	}
	return out, nil
}
