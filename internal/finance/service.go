// Package finance implements the ledger: categories, transactions, the
// aggregate history, user settings and the snapshot handed to the chat
// assistant.
package finance

import (
	"context"
	"strings"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// DefaultSnapshotMaxTransactions caps the transactions rendered into a snapshot.
const DefaultSnapshotMaxTransactions = 200

// CategoryStore is the category persistence used by Service.
type CategoryStore interface {
	CreateCategory(ctx context.Context, cat *data.Category) error
	GetCategory(ctx context.Context, userID, name string, typ data.TransactionType) (*data.Category, error)
	ListCategories(ctx context.Context, userID string, typ data.TransactionType) ([]*data.Category, error)
	DeleteCategory(ctx context.Context, userID, name string, typ data.TransactionType) error
}

// TransactionStore is the transaction persistence used by Service.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *data.Transaction) error
	DeleteTransaction(ctx context.Context, userID string, id bson.ObjectID) (*data.Transaction, error)
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]*data.Transaction, error)
	RecentTransactions(ctx context.Context, userID string, limit int64) ([]*data.Transaction, error)
	CountTransactions(ctx context.Context, userID string) (int64, error)
	RangeTotals(ctx context.Context, userID string, from, to time.Time) (data.Totals, error)
	CategoryTotals(ctx context.Context, userID string, from, to time.Time) ([]data.CategoryTotal, error)
}

// HistoryStore is the aggregate persistence used by Service.
type HistoryStore interface {
	ApplyTransaction(ctx context.Context, userID string, date time.Time, typ data.TransactionType, delta decimal.Decimal) error
	MonthBuckets(ctx context.Context, userID string, year, month int) ([]*data.MonthHistory, error)
	YearBuckets(ctx context.Context, userID string, year int) ([]*data.YearHistory, error)
	YearTotals(ctx context.Context, userID string) ([]data.YearTotal, error)
}

// SettingsStore is the settings persistence used by Service.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (*data.Settings, error)
	UpdateCurrency(ctx context.Context, userID, currency string) (*data.Settings, error)
}

// Stores groups the persistence Service needs.
type Stores struct {
	Categories   CategoryStore
	Transactions TransactionStore
	History      HistoryStore
	Settings     SettingsStore
}

// Service implements the finance operations for one caller at a time; every
// method takes the caller's user id explicitly.
type Service struct {
	stores      Stores
	snapshotMax int64
	now         func() time.Time
}

// NewService returns a Service. snapshotMax <= 0 selects the default cap.
func NewService(stores Stores, snapshotMax int) *Service {
	if snapshotMax <= 0 {
		snapshotMax = DefaultSnapshotMaxTransactions
	}
	return &Service{stores: stores, snapshotMax: int64(snapshotMax), now: time.Now}
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time { return s.now().UTC() }

func parseType(typ string, allowEmpty bool) (data.TransactionType, error) {
	t := data.TransactionType(strings.ToLower(strings.TrimSpace(typ)))
	if t == "" && allowEmpty {
		return "", nil
	}
	if !t.Valid() {
		return "", errors.Wrapf(ErrInvalidInput, "type must be income or expense, got %q", typ)
	}
	return t, nil
}

// ListCategories returns the caller's categories, optionally of one type.
func (s *Service) ListCategories(ctx context.Context, userID, typ string) ([]*data.Category, error) {
	t, err := parseType(typ, true)
	if err != nil {
		return nil, err
	}
	return s.stores.Categories.ListCategories(ctx, userID, t)
}

// CreateCategory adds a category; data.ErrDuplicate when it already exists.
func (s *Service) CreateCategory(ctx context.Context, userID, name, icon, typ string) (*data.Category, error) {
	t, err := parseType(typ, false)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(ErrInvalidInput, "name is required")
	}
	cat := &data.Category{UserID: userID, Name: name, Icon: strings.TrimSpace(icon), Type: t}
	if err := s.stores.Categories.CreateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// DeleteCategory removes a category; data.ErrNotFound when absent.
func (s *Service) DeleteCategory(ctx context.Context, userID, name, typ string) error {
	t, err := parseType(typ, false)
	if err != nil {
		return err
	}
	return s.stores.Categories.DeleteCategory(ctx, userID, name, t)
}

// NewTransaction is the input of CreateTransaction.
type NewTransaction struct {
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	Category    string
	Type        string
}

// CreateTransaction records a transaction in an existing category and adds
// it to the history buckets.
func (s *Service) CreateTransaction(ctx context.Context, userID string, in NewTransaction) (*data.Transaction, error) {
	t, err := parseType(in.Type, false)
	if err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, errors.Wrap(ErrInvalidInput, "amount must be greater than zero")
	}
	if in.Date.IsZero() {
		return nil, errors.Wrap(ErrInvalidInput, "date is required")
	}
	cat, err := s.stores.Categories.GetCategory(ctx, userID, in.Category, t)
	if err != nil {
		return nil, err
	}
	amount, err := data.ToDecimal128(in.Amount)
	if err != nil {
		return nil, err
	}

	tx := &data.Transaction{
		UserID:       userID,
		Amount:       amount,
		Description:  strings.TrimSpace(in.Description),
		Date:         in.Date.UTC(),
		Type:         t,
		Category:     cat.Name,
		CategoryIcon: cat.Icon,
	}
	if err := s.stores.Transactions.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.stores.History.ApplyTransaction(ctx, userID, tx.Date, t, in.Amount); err != nil {
		// keep ledger and history consistent: drop the transaction again
		if _, rbErr := s.stores.Transactions.DeleteTransaction(context.WithoutCancel(ctx), userID, tx.ID); rbErr != nil {
			return nil, errors.Wrapf(err, "history update failed and rollback failed (%v)", rbErr)
		}
		return nil, err
	}
	return tx, nil
}

// DeleteTransaction removes one of the caller's transactions and subtracts
// it from the history buckets.
func (s *Service) DeleteTransaction(ctx context.Context, userID string, id bson.ObjectID) error {
	tx, err := s.stores.Transactions.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.stores.History.ApplyTransaction(ctx, userID, tx.Date, tx.Type, tx.AmountDecimal().Neg()); err != nil {
		// put the transaction back under its id so a retry can find it
		if rbErr := s.stores.Transactions.CreateTransaction(context.WithoutCancel(ctx), tx); rbErr != nil {
			return errors.Wrapf(err, "history update failed and restore failed (%v)", rbErr)
		}
		return err
	}
	return nil
}

// TransactionView is a transaction as returned to clients.
type TransactionView struct {
	ID              string               `json:"id"`
	Amount          decimal.Decimal      `json:"amount"`
	FormattedAmount string               `json:"formattedAmount"`
	Description     string               `json:"description"`
	Date            time.Time            `json:"date"`
	Type            data.TransactionType `json:"type"`
	Category        string               `json:"category"`
	CategoryIcon    string               `json:"categoryIcon"`
}

// ListTransactions returns the caller's transactions in r, newest first,
// formatted in the caller's currency.
func (s *Service) ListTransactions(ctx context.Context, userID string, r DateRange) ([]TransactionView, error) {
	money, err := s.money(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := s.stores.Transactions.ListTransactions(ctx, userID, r.From, r.To)
	if err != nil {
		return nil, err
	}
	out := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, viewOf(tx, money))
	}
	return out, nil
}

// View converts a stored transaction for clients using the caller's currency.
func (s *Service) View(ctx context.Context, userID string, tx *data.Transaction) (TransactionView, error) {
	money, err := s.money(ctx, userID)
	if err != nil {
		return TransactionView{}, err
	}
	return viewOf(tx, money), nil
}

func viewOf(tx *data.Transaction, money Money) TransactionView {
	amount := tx.AmountDecimal()
	return TransactionView{
		ID:              tx.ID.Hex(),
		Amount:          amount,
		FormattedAmount: money.Format(amount),
		Description:     tx.Description,
		Date:            tx.Date,
		Type:            tx.Type,
		Category:        tx.Category,
		CategoryIcon:    tx.CategoryIcon,
	}
}

// BalanceView is the overview of one range.
type BalanceView struct {
	Income           decimal.Decimal `json:"income"`
	Expense          decimal.Decimal `json:"expense"`
	Balance          decimal.Decimal `json:"balance"`
	FormattedIncome  string          `json:"formattedIncome"`
	FormattedExpense string          `json:"formattedExpense"`
	FormattedBalance string          `json:"formattedBalance"`
}

// Balance sums the caller's income and expense in r.
func (s *Service) Balance(ctx context.Context, userID string, r DateRange) (BalanceView, error) {
	money, err := s.money(ctx, userID)
	if err != nil {
		return BalanceView{}, err
	}
	t, err := s.stores.Transactions.RangeTotals(ctx, userID, r.From, r.To)
	if err != nil {
		return BalanceView{}, err
	}
	return BalanceView{
		Income:           t.Income,
		Expense:          t.Expense,
		Balance:          t.Balance(),
		FormattedIncome:  money.Format(t.Income),
		FormattedExpense: money.Format(t.Expense),
		FormattedBalance: money.Format(t.Balance()),
	}, nil
}

// CategoryStat is one row of the per-category overview.
type CategoryStat struct {
	Type            data.TransactionType `json:"type"`
	Category        string               `json:"category"`
	CategoryIcon    string               `json:"categoryIcon"`
	Amount          decimal.Decimal      `json:"amount"`
	FormattedAmount string               `json:"formattedAmount"`
}

// CategoryStats returns per (type, category) totals in r, largest first.
func (s *Service) CategoryStats(ctx context.Context, userID string, r DateRange) ([]CategoryStat, error) {
	money, err := s.money(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.stores.Transactions.CategoryTotals(ctx, userID, r.From, r.To)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategoryStat{
			Type:            row.Type,
			Category:        row.Category,
			CategoryIcon:    row.Icon,
			Amount:          row.Amount,
			FormattedAmount: money.Format(row.Amount),
		})
	}
	return out, nil
}

// Settings returns the caller's settings, created with defaults on first use.
func (s *Service) Settings(ctx context.Context, userID string) (*data.Settings, error) {
	return s.stores.Settings.GetSettings(ctx, userID)
}

// UpdateCurrency changes the caller's currency.
func (s *Service) UpdateCurrency(ctx context.Context, userID, code string) (*data.Settings, error) {
	if !SupportedCurrency(code) {
		return nil, errors.Wrapf(ErrInvalidInput, "unsupported currency %q", code)
	}
	return s.stores.Settings.UpdateCurrency(ctx, userID, code)
}

func (s *Service) money(ctx context.Context, userID string) (Money, error) {
	st, err := s.stores.Settings.GetSettings(ctx, userID)
	if err != nil {
		return Money{}, err
	}
	return MustMoney(st.Currency), nil
}
