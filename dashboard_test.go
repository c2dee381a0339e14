package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func int64p(v int64) *int64 { return &v }

// fakeFinanceStore serves fixed data and optional per-method errors.
type fakeFinanceStore struct {
	transactions []Transaction
	budgets      []Budget
	categories   []Category

	rangeErr      error
	allErr        error
	budgetsErr    error
	categoriesErr error
}

func (f *fakeFinanceStore) ListTransactions(_ context.Context, userID int64) ([]Transaction, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	out := make([]Transaction, 0)
	for _, t := range f.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeFinanceStore) ListTransactionsInRange(_ context.Context, userID int64, start, end time.Time) ([]Transaction, error) {
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	out := make([]Transaction, 0)
	for _, t := range f.transactions {
		if t.UserID == userID && !t.Date.Before(start) && !t.Date.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeFinanceStore) ListBudgets(_ context.Context, userID int64) ([]Budget, error) {
	if f.budgetsErr != nil {
		return nil, f.budgetsErr
	}
	out := make([]Budget, 0)
	for _, b := range f.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeFinanceStore) ListCategories(context.Context) ([]Category, error) {
	if f.categoriesErr != nil {
		return nil, f.categoriesErr
	}
	return f.categories, nil
}

var testCategories = []Category{
	{ID: 1, Name: "Groceries", Color: "#e74c3c", Icon: "shopping_cart"},
	{ID: 2, Name: "Rent", Color: "#e67e22", Icon: "home"},
	{ID: 3, Name: "Salary", Color: "#27ae60", Icon: "payments"},
}

func summarize(t *testing.T, f *fakeFinanceStore, userID int64) DashboardSummary {
	t.Helper()
	summary, err := NewDashboardAggregator(f, f, f).Summarize(context.Background(), userID, testNow)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	return summary
}

func TestSummarizeEmptyUser(t *testing.T) {
	summary := summarize(t, &fakeFinanceStore{categories: testCategories}, 1)

	for name, v := range map[string]decimal.Decimal{
		"balance":         summary.Balance,
		"monthlyIncome":   summary.MonthlyIncome,
		"monthlyExpenses": summary.MonthlyExpenses,
		"budgetRemaining": summary.BudgetRemaining,
	} {
		if !v.IsZero() {
			t.Errorf("%s = %s, want 0", name, v)
		}
	}
	if len(summary.RecentTransactions) != 0 || len(summary.BudgetSummary) != 0 || len(summary.CategoryBreakdown) != 0 {
		t.Errorf("expected empty lists, got %+v", summary)
	}

	data, err := json.Marshal(summary)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"recentTransactions":[]`, `"budgetSummary":[]`, `"categoryBreakdown":[]`} {
		if !bytes.Contains(data, []byte(field)) {
			t.Errorf("JSON %s does not contain %s", data, field)
		}
	}
}

func TestSummarizeSingleMonth(t *testing.T) {
	f := &fakeFinanceStore{
		categories: testCategories,
		transactions: []Transaction{
			{ID: 2, UserID: 1, CategoryID: int64p(1), Amount: dec("200"), Description: "Groceries", Date: testNow.AddDate(0, 0, -2)},
			{ID: 1, UserID: 1, CategoryID: int64p(3), Amount: dec("500"), Description: "Salary", Date: testNow.AddDate(0, 0, -5), IsIncome: true},
		},
		budgets: []Budget{
			{ID: 1, UserID: 1, CategoryID: int64p(1), Amount: dec("300"), Period: PeriodMonthly, StartDate: firstDayOfMonth(testNow)},
		},
	}
	summary := summarize(t, f, 1)

	if !summary.Balance.Equal(dec("300")) {
		t.Errorf("balance = %s, want 300", summary.Balance)
	}
	if !summary.MonthlyIncome.Equal(dec("500")) || !summary.MonthlyExpenses.Equal(dec("200")) {
		t.Errorf("monthly income/expenses = %s/%s, want 500/200", summary.MonthlyIncome, summary.MonthlyExpenses)
	}
	if !summary.BudgetRemaining.Equal(dec("100")) {
		t.Errorf("budgetRemaining = %s, want 100", summary.BudgetRemaining)
	}

	if len(summary.BudgetSummary) != 1 {
		t.Fatalf("budgetSummary has %d entries, want 1", len(summary.BudgetSummary))
	}
	rollup := summary.BudgetSummary[0]
	if !rollup.Spent.Equal(dec("200")) || !rollup.Remaining.Equal(dec("100")) || rollup.PercentUsed != 67 {
		t.Errorf("rollup = spent %s remaining %s percent %d, want 200/100/67", rollup.Spent, rollup.Remaining, rollup.PercentUsed)
	}

	if len(summary.CategoryBreakdown) != 1 {
		t.Fatalf("categoryBreakdown has %d entries, want 1", len(summary.CategoryBreakdown))
	}
	entry := summary.CategoryBreakdown[0]
	if entry.Name != "Groceries" || entry.Color != "#e74c3c" || entry.Icon != "shopping_cart" {
		t.Errorf("entry metadata = %+v", entry)
	}
	if !entry.Amount.Equal(dec("200")) || entry.Percentage != 100 {
		t.Errorf("entry amount/percentage = %s/%d, want 200/100", entry.Amount, entry.Percentage)
	}

	if len(summary.RecentTransactions) != 2 || summary.RecentTransactions[0].ID != 2 {
		t.Errorf("recentTransactions = %+v", summary.RecentTransactions)
	}
}

func TestSummarizeBalanceCoversAllTime(t *testing.T) {
	lastMonth := firstDayOfMonth(testNow).Add(-time.Second)
	f := &fakeFinanceStore{
		categories: testCategories,
		transactions: []Transaction{
			{ID: 1, UserID: 1, Amount: dec("1000"), Date: lastMonth.AddDate(0, 0, -3), IsIncome: true},
			{ID: 2, UserID: 1, Amount: dec("150.25"), Date: lastMonth},
			{ID: 3, UserID: 1, Amount: dec("40"), Date: testNow.AddDate(0, 0, -1)},
			{ID: 4, UserID: 2, Amount: dec("9999"), Date: testNow, IsIncome: true},
		},
	}
	summary := summarize(t, f, 1)

	if !summary.Balance.Equal(dec("809.75")) {
		t.Errorf("balance = %s, want 809.75", summary.Balance)
	}
	if !summary.MonthlyIncome.IsZero() || !summary.MonthlyExpenses.Equal(dec("40")) {
		t.Errorf("monthly income/expenses = %s/%s, want 0/40", summary.MonthlyIncome, summary.MonthlyExpenses)
	}
	if len(summary.RecentTransactions) != 1 || summary.RecentTransactions[0].ID != 3 {
		t.Errorf("recentTransactions = %+v, want only the current month", summary.RecentTransactions)
	}
}

func TestSummarizeMonthWindowBoundaries(t *testing.T) {
	start := firstDayOfMonth(testNow)
	f := &fakeFinanceStore{
		transactions: []Transaction{
			{ID: 1, UserID: 1, Amount: dec("1"), Date: start.Add(-time.Nanosecond)},
			{ID: 2, UserID: 1, Amount: dec("2"), Date: start},
			{ID: 3, UserID: 1, Amount: dec("4"), Date: testNow},
			{ID: 4, UserID: 1, Amount: dec("8"), Date: testNow.Add(time.Second)},
		},
	}
	summary := summarize(t, f, 1)

	if !summary.MonthlyExpenses.Equal(dec("6")) {
		t.Errorf("monthlyExpenses = %s, want 6 (start and now inclusive)", summary.MonthlyExpenses)
	}
	if !summary.Balance.Equal(dec("-15")) {
		t.Errorf("balance = %s, want -15", summary.Balance)
	}
}

func TestSummarizeRecentTransactionsLimit(t *testing.T) {
	f := &fakeFinanceStore{}
	// newest first, as the store contract requires
	for i := 0; i < 7; i++ {
		f.transactions = append(f.transactions, Transaction{
			ID: int64(10 - i), UserID: 1, Amount: dec("1"), Date: testNow.Add(-time.Duration(i) * time.Hour),
		})
	}
	summary := summarize(t, f, 1)

	if len(summary.RecentTransactions) != recentTransactionLimit {
		t.Fatalf("got %d recent transactions, want %d", len(summary.RecentTransactions), recentTransactionLimit)
	}
	for i, tx := range summary.RecentTransactions {
		if tx.ID != f.transactions[i].ID {
			t.Errorf("recent[%d] = %d, want %d", i, tx.ID, f.transactions[i].ID)
		}
	}
}

func TestRollupBudgets(t *testing.T) {
	txs := []Transaction{
		{CategoryID: int64p(1), Amount: dec("70")},
		{CategoryID: int64p(1), Amount: dec("50")},
		{CategoryID: int64p(1), Amount: dec("999"), IsIncome: true},
		{CategoryID: int64p(2), Amount: dec("30")},
		{Amount: dec("12.50")},
	}

	tests := []struct {
		name          string
		budget        Budget
		wantSpent     string
		wantRemaining string
		wantPercent   int64
	}{
		{"overspent", Budget{CategoryID: int64p(1), Amount: dec("100")}, "120", "-20", 120},
		{"partially used", Budget{CategoryID: int64p(2), Amount: dec("90")}, "30", "60", 33},
		{"untouched", Budget{CategoryID: int64p(3), Amount: dec("50")}, "0", "50", 0},
		{"uncategorized only matches uncategorized", Budget{Amount: dec("25")}, "12.50", "12.50", 50},
		{"zero amount", Budget{CategoryID: int64p(1), Amount: decimal.Zero}, "120", "-120", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rollups := RollupBudgets([]Budget{tt.budget}, txs)
			if len(rollups) != 1 {
				t.Fatalf("got %d rollups", len(rollups))
			}
			r := rollups[0]
			if !r.Spent.Equal(dec(tt.wantSpent)) {
				t.Errorf("spent = %s, want %s", r.Spent, tt.wantSpent)
			}
			if !r.Remaining.Equal(dec(tt.wantRemaining)) {
				t.Errorf("remaining = %s, want %s", r.Remaining, tt.wantRemaining)
			}
			if r.PercentUsed != tt.wantPercent {
				t.Errorf("percentUsed = %d, want %d", r.PercentUsed, tt.wantPercent)
			}
		})
	}
}

func TestBreakdownByCategory(t *testing.T) {
	txs := []Transaction{
		{CategoryID: int64p(2), Amount: dec("100")},
		{CategoryID: int64p(1), Amount: dec("60")},
		{CategoryID: int64p(1), Amount: dec("40")},
		{CategoryID: int64p(42), Amount: dec("50")},
		{Amount: dec("25")},
		{Amount: dec("25")},
		{CategoryID: int64p(3), Amount: dec("5000"), IsIncome: true},
	}
	entries := BreakdownByCategory(txs, testCategories)

	want := []struct {
		id      *int64
		name    string
		amount  string
		percent int64
	}{
		{int64p(1), "Groceries", "100", 33},
		{int64p(2), "Rent", "100", 33},
		{int64p(42), otherCategoryName, "50", 17},
		{nil, otherCategoryName, "50", 17},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		e := entries[i]
		if !sameCategory(e.CategoryID, w.id) {
			t.Errorf("entry %d categoryId = %v, want %v", i, e.CategoryID, w.id)
		}
		if e.Name != w.name || !e.Amount.Equal(dec(w.amount)) || e.Percentage != w.percent {
			t.Errorf("entry %d = %s %s %d%%, want %s %s %d%%", i, e.Name, e.Amount, e.Percentage, w.name, w.amount, w.percent)
		}
	}
	last := entries[len(entries)-1]
	if last.Color != otherCategoryColor || last.Icon != otherCategoryIcon {
		t.Errorf("uncategorized entry metadata = %s/%s", last.Color, last.Icon)
	}
}

func TestBreakdownMatchesMonthlyExpenses(t *testing.T) {
	f := &fakeFinanceStore{categories: testCategories}
	amounts := []string{"10.10", "20.20", "33.33", "7", "0.01", "99.99"}
	for i, a := range amounts {
		var cat *int64
		if i%3 != 0 {
			cat = int64p(int64(i%3 + 1))
		}
		f.transactions = append(f.transactions, Transaction{
			ID: int64(i + 1), UserID: 1, CategoryID: cat, Amount: dec(a), Date: testNow.AddDate(0, 0, -i),
		})
	}
	summary := summarize(t, f, 1)

	total := decimal.Zero
	var percentages int64
	for _, e := range summary.CategoryBreakdown {
		total = total.Add(e.Amount)
		percentages += e.Percentage
	}
	if !total.Equal(summary.MonthlyExpenses) {
		t.Errorf("breakdown total %s != monthlyExpenses %s", total, summary.MonthlyExpenses)
	}
	if diff := percentages - 100; diff > int64(len(summary.CategoryBreakdown)) || -diff > int64(len(summary.CategoryBreakdown)) {
		t.Errorf("percentages sum to %d, want about 100", percentages)
	}
}

func TestBreakdownZeroExpenses(t *testing.T) {
	entries := BreakdownByCategory([]Transaction{
		{CategoryID: int64p(1), Amount: decimal.Zero},
		{Amount: decimal.Zero},
	}, testCategories)
	for _, e := range entries {
		if e.Percentage != 0 {
			t.Errorf("%s percentage = %d, want 0", e.Name, e.Percentage)
		}
	}
}

func TestSummarizeIsIdempotent(t *testing.T) {
	f := &fakeFinanceStore{
		categories: testCategories,
		transactions: []Transaction{
			{ID: 1, UserID: 1, CategoryID: int64p(1), Amount: dec("12.34"), Date: testNow.AddDate(0, 0, -1)},
			{ID: 2, UserID: 1, CategoryID: int64p(2), Amount: dec("12.34"), Date: testNow.AddDate(0, 0, -2)},
			{ID: 3, UserID: 1, Amount: dec("5"), Date: testNow.AddDate(0, 0, -3)},
			{ID: 4, UserID: 1, Amount: dec("100"), Date: testNow.AddDate(0, 0, -4), IsIncome: true},
		},
		budgets: []Budget{{ID: 1, UserID: 1, CategoryID: int64p(1), Amount: dec("50")}},
	}

	first, err := json.Marshal(summarize(t, f, 1))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(summarize(t, f, 1))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("summary changed between calls:\n%s\n%s", first, again)
		}
	}
}

func TestSummarizePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		store *fakeFinanceStore
	}{
		{"range", &fakeFinanceStore{rangeErr: boom}},
		{"all", &fakeFinanceStore{allErr: boom}},
		{"budgets", &fakeFinanceStore{budgetsErr: boom}},
		{"categories", &fakeFinanceStore{categoriesErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := NewDashboardAggregator(tt.store, tt.store, tt.store).Summarize(context.Background(), 1, testNow)
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v, want %v", err, boom)
			}
			if summary.RecentTransactions != nil || summary.BudgetSummary != nil {
				t.Errorf("expected zero summary on error, got %+v", summary)
			}
		})
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		part, whole string
		want        int64
	}{
		{"200", "300", 67},
		{"1", "3", 33},
		{"1", "8", 13},
		{"120", "100", 120},
		{"50", "0", 0},
		{"50", "-10", 0},
		{"0", "100", 0},
	}
	for _, tt := range tests {
		if got := percentOf(dec(tt.part), dec(tt.whole)); got != tt.want {
			t.Errorf("percentOf(%s, %s) = %d, want %d", tt.part, tt.whole, got, tt.want)
		}
	}
}
