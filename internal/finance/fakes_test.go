package finance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// memStore is an in-memory implementation of every store Service uses.
type memStore struct {
	mu         sync.Mutex
	categories []*data.Category
	txs        []*data.Transaction
	history    map[string]map[[3]int]data.Totals // user -> (year, month, day)
	currency   map[string]string

	failHistory  bool
	failCreateTx bool
}

func newMemStore() *memStore {
	return &memStore{history: map[string]map[[3]int]data.Totals{}, currency: map[string]string{}}
}

func (m *memStore) stores() Stores {
	return Stores{Categories: m, Transactions: m, History: m, Settings: m}
}

func (m *memStore) CreateCategory(_ context.Context, cat *data.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.UserID == cat.UserID && c.Name == cat.Name && c.Type == cat.Type {
			return data.ErrDuplicate
		}
	}
	cat.ID = bson.NewObjectID()
	m.categories = append(m.categories, cat)
	return nil
}

func (m *memStore) GetCategory(_ context.Context, userID, name string, typ data.TransactionType) (*data.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.UserID == userID && c.Name == name && c.Type == typ {
			return c, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *memStore) ListCategories(_ context.Context, userID string, typ data.TransactionType) ([]*data.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Category
	for _, c := range m.categories {
		if c.UserID == userID && (typ == "" || c.Type == typ) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) DeleteCategory(_ context.Context, userID, name string, typ data.TransactionType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.categories {
		if c.UserID == userID && c.Name == name && c.Type == typ {
			m.categories = append(m.categories[:i], m.categories[i+1:]...)
			return nil
		}
	}
	return data.ErrNotFound
}

func (m *memStore) CreateTransaction(_ context.Context, tx *data.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateTx {
		return errors.New("ledger unavailable")
	}
	if tx.ID.IsZero() {
		tx.ID = bson.NewObjectID()
	}
	m.txs = append(m.txs, tx)
	return nil
}

func (m *memStore) DeleteTransaction(_ context.Context, userID string, id bson.ObjectID) (*data.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tx := range m.txs {
		if tx.ID == id && tx.UserID == userID {
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			return tx, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *memStore) userTxs(userID string) []*data.Transaction {
	var out []*data.Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (m *memStore) ListTransactions(_ context.Context, userID string, from, to time.Time) ([]*data.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Transaction
	for _, tx := range m.userTxs(userID) {
		if !tx.Date.Before(from) && !tx.Date.After(to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memStore) RecentTransactions(_ context.Context, userID string, limit int64) ([]*data.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.userTxs(userID)
	if int64(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) CountTransactions(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.userTxs(userID))), nil
}

func (m *memStore) RangeTotals(ctx context.Context, userID string, from, to time.Time) (data.Totals, error) {
	txs, _ := m.ListTransactions(ctx, userID, from, to)
	out := data.Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range txs {
		if tx.Type == data.Income {
			out.Income = out.Income.Add(tx.AmountDecimal())
		} else {
			out.Expense = out.Expense.Add(tx.AmountDecimal())
		}
	}
	return out, nil
}

func (m *memStore) CategoryTotals(ctx context.Context, userID string, from, to time.Time) ([]data.CategoryTotal, error) {
	txs, _ := m.ListTransactions(ctx, userID, from, to)
	idx := map[string]int{}
	var out []data.CategoryTotal
	for _, tx := range txs {
		key := string(tx.Type) + "/" + tx.Category
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, data.CategoryTotal{Type: tx.Type, Category: tx.Category, Icon: tx.CategoryIcon, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(tx.AmountDecimal())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	return out, nil
}

func (m *memStore) ApplyTransaction(_ context.Context, userID string, date time.Time, typ data.TransactionType, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failHistory {
		return errors.New("history unavailable")
	}
	if m.history[userID] == nil {
		m.history[userID] = map[[3]int]data.Totals{}
	}
	key := [3]int{date.Year(), int(date.Month()), date.Day()}
	t := m.history[userID][key]
	if typ == data.Income {
		t.Income = t.Income.Add(delta)
	} else {
		t.Expense = t.Expense.Add(delta)
	}
	m.history[userID][key] = t
	return nil
}

func dec128(d decimal.Decimal) bson.Decimal128 {
	v, _ := data.ToDecimal128(d)
	return v
}

func (m *memStore) MonthBuckets(_ context.Context, userID string, year, month int) ([]*data.MonthHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.MonthHistory
	for k, t := range m.history[userID] {
		if k[0] == year && k[1] == month {
			out = append(out, &data.MonthHistory{UserID: userID, Year: year, Month: month, Day: k[2], Income: dec128(t.Income), Expense: dec128(t.Expense)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (m *memStore) YearBuckets(_ context.Context, userID string, year int) ([]*data.YearHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byMonth := map[int]data.Totals{}
	for k, t := range m.history[userID] {
		if k[0] == year {
			cur := byMonth[k[1]]
			byMonth[k[1]] = data.Totals{Income: cur.Income.Add(t.Income), Expense: cur.Expense.Add(t.Expense)}
		}
	}
	var out []*data.YearHistory
	for month, t := range byMonth {
		out = append(out, &data.YearHistory{UserID: userID, Year: year, Month: month, Income: dec128(t.Income), Expense: dec128(t.Expense)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (m *memStore) YearTotals(_ context.Context, userID string) ([]data.YearTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byYear := map[int]data.Totals{}
	for k, t := range m.history[userID] {
		cur := byYear[k[0]]
		byYear[k[0]] = data.Totals{Income: cur.Income.Add(t.Income), Expense: cur.Expense.Add(t.Expense)}
	}
	var out []data.YearTotal
	for y, t := range byYear {
		out = append(out, data.YearTotal{Year: y, Totals: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (m *memStore) GetSettings(_ context.Context, userID string) (*data.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.currency[userID]
	if !ok {
		c = data.DefaultCurrency
		m.currency[userID] = c
	}
	return &data.Settings{UserID: userID, Currency: c}, nil
}

func (m *memStore) UpdateCurrency(_ context.Context, userID, currency string) (*data.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currency[userID] = currency
	return &data.Settings{UserID: userID, Currency: currency}, nil
}
