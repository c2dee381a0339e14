package main

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const recentTransactionLimit = 5

// Fallback metadata for uncategorized or unknown categories in the breakdown.
const (
	otherCategoryName  = "Other"
	otherCategoryColor = "#9E9E9E"
	otherCategoryIcon  = "help_outline"
)

var hundred = decimal.NewFromInt(100)

// TransactionStore returns a user's transactions, newest first.
type TransactionStore interface {
	ListTransactions(ctx context.Context, userID int64) ([]Transaction, error)
	// ListTransactionsInRange is inclusive on both ends.
	ListTransactionsInRange(ctx context.Context, userID int64, start, end time.Time) ([]Transaction, error)
}

// BudgetStore returns a user's budgets in no particular order.
type BudgetStore interface {
	ListBudgets(ctx context.Context, userID int64) ([]Budget, error)
}

// CategoryStore returns the global category list.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]Category, error)
}

// DashboardAggregator computes dashboard snapshots from the stores it is given.
// It holds no state of its own and never writes.
type DashboardAggregator struct {
	transactions TransactionStore
	budgets      BudgetStore
	categories   CategoryStore
}

func NewDashboardAggregator(transactions TransactionStore, budgets BudgetStore, categories CategoryStore) *DashboardAggregator {
	return &DashboardAggregator{
		transactions: transactions,
		budgets:      budgets,
		categories:   categories,
	}
}

// Summarize computes the dashboard for userID as of now. Monthly figures cover
// the first day of now's month through now; the balance covers all time.
// Store errors are returned unchanged and no partial summary is produced.
func (a *DashboardAggregator) Summarize(ctx context.Context, userID int64, now time.Time) (DashboardSummary, error) {
	var (
		monthly    []Transaction
		all        []Transaction
		budgets    []Budget
		categories []Category
	)

	// The reads are independent; skew between them is tolerated.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		monthly, err = a.transactions.ListTransactionsInRange(gctx, userID, firstDayOfMonth(now), now)
		return err
	})
	g.Go(func() error {
		var err error
		all, err = a.transactions.ListTransactions(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = a.budgets.ListBudgets(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = a.categories.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardSummary{}, err
	}

	income, expenses := sumByDirection(monthly)
	totalIncome, totalExpenses := sumByDirection(all)

	recent := monthly
	if len(recent) > recentTransactionLimit {
		recent = recent[:recentTransactionLimit]
	}

	rollups := RollupBudgets(budgets, monthly)
	remaining := decimal.Zero
	for _, r := range rollups {
		remaining = remaining.Add(r.Remaining)
	}

	return DashboardSummary{
		Balance:            totalIncome.Sub(totalExpenses),
		MonthlyIncome:      income,
		MonthlyExpenses:    expenses,
		BudgetRemaining:    remaining,
		RecentTransactions: append([]Transaction{}, recent...),
		BudgetSummary:      rollups,
		CategoryBreakdown:  BreakdownByCategory(monthly, categories),
	}, nil
}

// RollupBudgets computes spent, remaining and percent used for each budget
// against the given transactions. Only expenses count, and a budget without a
// category only matches uncategorized expenses.
func RollupBudgets(budgets []Budget, txs []Transaction) []BudgetRollup {
	rollups := make([]BudgetRollup, 0, len(budgets))
	for _, b := range budgets {
		spent := decimal.Zero
		for _, t := range txs {
			if t.IsIncome || !sameCategory(t.CategoryID, b.CategoryID) {
				continue
			}
			spent = spent.Add(t.Amount)
		}
		rollups = append(rollups, BudgetRollup{
			Budget:      b,
			Spent:       spent,
			Remaining:   b.Amount.Sub(spent),
			PercentUsed: percentOf(spent, b.Amount),
		})
	}
	return rollups
}

// BreakdownByCategory groups the expenses in txs by category. Entries are
// ordered by amount descending then category id, with the uncategorized
// group last.
func BreakdownByCategory(txs []Transaction, categories []Category) []CategoryBreakdownEntry {
	byID := make(map[int64]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	totals := make(map[int64]decimal.Decimal)
	uncategorized := decimal.Zero
	hasUncategorized := false
	total := decimal.Zero
	for _, t := range txs {
		if t.IsIncome {
			continue
		}
		total = total.Add(t.Amount)
		if t.CategoryID == nil {
			uncategorized = uncategorized.Add(t.Amount)
			hasUncategorized = true
			continue
		}
		totals[*t.CategoryID] = totals[*t.CategoryID].Add(t.Amount)
	}

	entries := make([]CategoryBreakdownEntry, 0, len(totals)+1)
	for id, amount := range totals {
		entry := CategoryBreakdownEntry{
			CategoryID: &id,
			Name:       otherCategoryName,
			Color:      otherCategoryColor,
			Icon:       otherCategoryIcon,
			Amount:     amount,
			Percentage: percentOf(amount, total),
		}
		if c, ok := byID[id]; ok {
			entry.Name, entry.Color, entry.Icon = c.Name, c.Color, c.Icon
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if cmp := entries[i].Amount.Cmp(entries[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return *entries[i].CategoryID < *entries[j].CategoryID
	})

	if hasUncategorized {
		entries = append(entries, CategoryBreakdownEntry{
			Name:       otherCategoryName,
			Color:      otherCategoryColor,
			Icon:       otherCategoryIcon,
			Amount:     uncategorized,
			Percentage: percentOf(uncategorized, total),
		})
	}
	return entries
}

func sumByDirection(txs []Transaction) (income, expenses decimal.Decimal) {
	income, expenses = decimal.Zero, decimal.Zero
	for _, t := range txs {
		if t.IsIncome {
			income = income.Add(t.Amount)
		} else {
			expenses = expenses.Add(t.Amount)
		}
	}
	return income, expenses
}

// percentOf returns round(part / whole * 100), or 0 when whole is not positive.
func percentOf(part, whole decimal.Decimal) int64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Mul(hundred).Div(whole).Round(0).IntPart()
}

func sameCategory(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func firstDayOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
