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

// TransactionsStore performs transaction DB operations. History buckets are
// maintained separately by HistoryStore.
type TransactionsStore struct {
	coll *mongo.Collection
}

// NewTransactionsStore returns a TransactionsStore using the provided collection.
func NewTransactionsStore(coll *mongo.Collection) *TransactionsStore {
	return &TransactionsStore{coll: coll}
}

// Totals is income and expense over some range.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Balance is income minus expense.
func (t Totals) Balance() decimal.Decimal { return t.Income.Sub(t.Expense) }

// CategoryTotal is the sum of one category's transactions.
type CategoryTotal struct {
	Type     TransactionType
	Category string
	Icon     string
	Amount   decimal.Decimal
}

// CreateTransaction inserts a transaction.
func (s *TransactionsStore) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	res, err := s.coll.InsertOne(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "insert transaction")
	}
	tx.ID = res.InsertedID.(bson.ObjectID)
	return nil
}

// DeleteTransaction removes one of the user's transactions and returns it so
// the caller can roll back its history contribution.
func (s *TransactionsStore) DeleteTransaction(ctx context.Context, userID string, id bson.ObjectID) (*Transaction, error) {
	var tx Transaction
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "transaction %s", id.Hex())
		}
		return nil, errors.Wrap(err, "delete transaction")
	}
	return &tx, nil
}

// ListTransactions returns the user's transactions dated within [from, to],
// newest first.
func (s *TransactionsStore) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]*Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	return s.find(ctx, rangeFilter(userID, from, to), opts)
}

// RecentTransactions returns at most limit of the user's newest transactions.
func (s *TransactionsStore) RecentTransactions(ctx context.Context, userID string, limit int64) ([]*Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, bson.M{"user_id": userID}, opts)
}

// CountTransactions returns how many transactions the user has.
func (s *TransactionsStore) CountTransactions(ctx context.Context, userID string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, errors.Wrap(err, "count transactions")
	}
	return n, nil
}

func (s *TransactionsStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*Transaction, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find transactions")
	}
	var txs []*Transaction
	if err := cur.All(ctx, &txs); err != nil {
		return nil, errors.Wrap(err, "decode transactions")
	}
	return txs, nil
}

// RangeTotals sums income and expense dated within [from, to].
func (s *TransactionsStore) RangeTotals(ctx context.Context, userID string, from, to time.Time) (Totals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: rangeFilter(userID, from, to)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$type"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return Totals{}, errors.Wrap(err, "aggregate totals")
	}
	var rows []struct {
		Type  TransactionType `bson:"_id"`
		Total bson.Decimal128 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return Totals{}, errors.Wrap(err, "decode totals")
	}

	out := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, r := range rows {
		switch r.Type {
		case Income:
			out.Income = FromDecimal128(r.Total)
		case Expense:
			out.Expense = FromDecimal128(r.Total)
		}
	}
	return out, nil
}

// CategoryTotals sums transactions dated within [from, to] per type and
// category, largest first.
func (s *TransactionsStore) CategoryTotals(ctx context.Context, userID string, from, to time.Time) ([]CategoryTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: rangeFilter(userID, from, to)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "type", Value: "$type"}, {Key: "category", Value: "$category"}}},
			{Key: "icon", Value: bson.D{{Key: "$first", Value: "$category_icon"}}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id.category", Value: 1}}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate category totals")
	}
	var rows []struct {
		ID struct {
			Type     TransactionType `bson:"type"`
			Category string          `bson:"category"`
		} `bson:"_id"`
		Icon  string          `bson:"icon"`
		Total bson.Decimal128 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode category totals")
	}

	out := make([]CategoryTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryTotal{
			Type:     r.ID.Type,
			Category: r.ID.Category,
			Icon:     r.Icon,
			Amount:   FromDecimal128(r.Total),
		})
	}
	return out, nil
}

func rangeFilter(userID string, from, to time.Time) bson.M {
	return bson.M{
		"user_id": userID,
		"date":    bson.M{"$gte": from, "$lte": to},
	}
}
