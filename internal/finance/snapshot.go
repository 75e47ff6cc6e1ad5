package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"golang.org/x/sync/errgroup"
)

// SnapshotData is everything a snapshot is rendered from.
type SnapshotData struct {
	Currency     string
	Categories   []*data.Category
	Transactions []*data.Transaction // newest first, already capped
	Total        int64               // transactions the user has overall
	Year         int
	Months       []*data.YearHistory
	Years        []data.YearTotal
}

// Snapshot loads the caller's financial data concurrently and renders it as
// plain text for the assistant's system prompt.
func (s *Service) Snapshot(ctx context.Context, userID string) (string, error) {
	in := SnapshotData{Year: s.Now().Year()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.stores.Settings.GetSettings(gctx, userID)
		if err != nil {
			return err
		}
		in.Currency = st.Currency
		return nil
	})
	g.Go(func() (err error) {
		in.Categories, err = s.stores.Categories.ListCategories(gctx, userID, "")
		return err
	})
	g.Go(func() (err error) {
		in.Transactions, err = s.stores.Transactions.RecentTransactions(gctx, userID, s.snapshotMax)
		return err
	})
	g.Go(func() (err error) {
		in.Total, err = s.stores.Transactions.CountTransactions(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		in.Months, err = s.stores.History.YearBuckets(gctx, userID, in.Year)
		return err
	})
	g.Go(func() (err error) {
		in.Years, err = s.stores.History.YearTotals(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return RenderSnapshot(in), nil
}

// RenderSnapshot renders in as the text block sent to the assistant.
func RenderSnapshot(in SnapshotData) string {
	money := MustMoney(in.Currency)
	var b strings.Builder

	fmt.Fprintf(&b, "Currency: %s\n", money.Code())

	b.WriteString("\nCategories:\n")
	if len(in.Categories) == 0 {
		b.WriteString("- none\n")
	}
	for _, c := range in.Categories {
		fmt.Fprintf(&b, "- %s (%s)", c.Name, c.Type)
		if c.Icon != "" {
			fmt.Fprintf(&b, " %s", c.Icon)
		}
		b.WriteByte('\n')
	}

	shown := int64(len(in.Transactions))
	fmt.Fprintf(&b, "\nTransactions, newest first (%d of %d):\n", shown, max(in.Total, shown))
	if shown == 0 {
		b.WriteString("- none\n")
	}
	for _, tx := range in.Transactions {
		fmt.Fprintf(&b, "- %s %s %s: %s", tx.Date.UTC().Format(time.DateOnly), tx.Type, tx.Category, money.Format(tx.AmountDecimal()))
		if tx.Description != "" {
			fmt.Fprintf(&b, " %q", tx.Description)
		}
		b.WriteByte('\n')
	}
	if omitted := in.Total - shown; omitted > 0 {
		fmt.Fprintf(&b, "(%d older transactions omitted)\n", omitted)
	}

	fmt.Fprintf(&b, "\nMonthly totals %d:\n", in.Year)
	if len(in.Months) == 0 {
		b.WriteString("- none\n")
	}
	for _, m := range in.Months {
		fmt.Fprintf(&b, "- %d-%02d: income %s, expense %s\n", m.Year, m.Month,
			money.Format(data.FromDecimal128(m.Income)), money.Format(data.FromDecimal128(m.Expense)))
	}

	b.WriteString("\nYearly totals:\n")
	if len(in.Years) == 0 {
		b.WriteString("- none\n")
	}
	for _, y := range in.Years {
		fmt.Fprintf(&b, "- %d: income %s, expense %s, balance %s\n", y.Year,
			money.Format(y.Income), money.Format(y.Expense), money.Format(y.Balance()))
	}
	return b.String()
}
