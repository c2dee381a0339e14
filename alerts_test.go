package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestEvaluator(t *testing.T) (*BudgetAlertEvaluator, *MemoryStore, int64) {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()
	user, err := store.CreateUser(ctx, User{Username: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.CreateBudget(ctx, Budget{UserID: user.ID, CategoryID: int64p(1), Amount: dec("100"), Period: PeriodMonthly, StartDate: firstDayOfMonth(testNow)})
	if err != nil {
		t.Fatal(err)
	}

	e := NewBudgetAlertEvaluator(store, NewDashboardAggregator(store, store, store), 80, discardLogger())
	e.now = func() time.Time { return testNow }
	return e, store, user.ID
}

func spend(t *testing.T, store *MemoryStore, userID int64, amount string) {
	t.Helper()
	_, err := store.CreateTransaction(context.Background(), Transaction{
		UserID: userID, CategoryID: int64p(1), Amount: dec(amount), Description: "Groceries", Date: testNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBudgetAlertEvaluator(t *testing.T) {
	ctx := context.Background()
	e, store, userID := newTestEvaluator(t)

	spend(t, store, userID, "50")
	created, err := e.Evaluate(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Fatalf("50%% used should not alert, got %+v", created)
	}

	spend(t, store, userID, "35")
	created, err = e.Evaluate(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 || created[0].Type != AlertBudgetThreshold {
		t.Fatalf("85%% used: got %+v, want one threshold alert", created)
	}
	if !strings.Contains(created[0].Message, "Groceries") || !strings.Contains(created[0].Message, "October 2026") {
		t.Errorf("message %q should name the category and month", created[0].Message)
	}

	created, err = e.Evaluate(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Fatalf("re-evaluation should not duplicate alerts, got %+v", created)
	}

	spend(t, store, userID, "20")
	created, err = e.Evaluate(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 || created[0].Type != AlertBudgetExceeded {
		t.Fatalf("105%% used: got %+v, want one exceeded alert", created)
	}

	alerts, err := store.ListAlerts(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Errorf("stored %d alerts, want 2", len(alerts))
	}
}

func TestBudgetAlertEvaluatorIgnoresIncome(t *testing.T) {
	ctx := context.Background()
	e, store, userID := newTestEvaluator(t)

	_, err := store.CreateTransaction(ctx, Transaction{
		UserID: userID, CategoryID: int64p(1), Amount: dec("500"), Description: "Refund", Date: testNow.Add(-time.Hour), IsIncome: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	created, err := e.Evaluate(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Errorf("income should not count toward budgets, got %+v", created)
	}
}

func TestInlinePublisherRunsHandler(t *testing.T) {
	var (
		mu  sync.Mutex
		got []TransactionsChanged
	)
	p := newInlinePublisher(func(_ context.Context, ev TransactionsChanged) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
		if ev.Reason == "fail" {
			return errors.New("handler failed")
		}
		return nil
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	for _, reason := range []string{"created", "fail", "deleted"} {
		if err := p.PublishTransactionsChanged(ctx, 42, reason); err != nil {
			t.Fatal(err)
		}
	}
	// handlers outlive the publishing request
	cancel()
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("handled %d events, want 3", len(got))
	}
	for _, ev := range got {
		if ev.UserID != 42 || ev.Timestamp.IsZero() {
			t.Errorf("event = %+v", ev)
		}
	}
}
