package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var defaultCategories = []Category{
	{Name: "Groceries", Color: "#e74c3c", Icon: "shopping_cart"},
	{Name: "Rent", Color: "#e67e22", Icon: "home"},
	{Name: "Utilities", Color: "#f39c12", Icon: "bolt"},
	{Name: "Transportation", Color: "#3498db", Icon: "directions_car"},
	{Name: "Entertainment", Color: "#9b59b6", Icon: "movie"},
	{Name: "Dining", Color: "#1abc9c", Icon: "restaurant"},
	{Name: "Health", Color: "#2ecc71", Icon: "favorite"},
	{Name: "Salary", Color: "#27ae60", Icon: "payments"},
	{Name: "Freelance", Color: "#16a085", Icon: "work"},
}

func seedDefaultCategories(ctx context.Context, db *sql.DB) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var inserted int64
	for _, c := range defaultCategories {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, color, icon) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
			c.Name, c.Color, c.Icon)
		if err != nil {
			return 0, fmt.Errorf("failed to seed categories: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return inserted, nil
}

const (
	demoUsername = "demo"
	demoPassword = "demo1234"
)

type demoTransaction struct {
	daysAgo     int
	description string
	amount      string
	category    string
	isIncome    bool
}

var demoTransactions = []demoTransaction{
	{28, "Monthly Salary", "3200.00", "Salary", true},
	{25, "Freelance: Landing Page", "850.00", "Freelance", true},
	{24, "Rent - Apartment", "1500.00", "Rent", false},
	{22, "Utilities - Electricity", "120.45", "Utilities", false},
	{20, "Groceries - Whole Foods", "96.72", "Groceries", false},
	{19, "Subway Pass", "45.00", "Transportation", false},
	{16, "Movie Night", "28.50", "Entertainment", false},
	{14, "Groceries - Trader Joes", "64.11", "Groceries", false},
	{13, "Freelance: Dashboard Charts", "600.00", "Freelance", true},
	{11, "Utilities - Internet", "60.00", "Utilities", false},
	{8, "Concert Tickets", "140.00", "Entertainment", false},
	{6, "Groceries - Costco", "132.39", "Groceries", false},
	{4, "Rideshare", "22.30", "Transportation", false},
	{2, "Pharmacy", "18.90", "", false},
	{1, "Dinner Out", "54.80", "Dining", false},
}

var demoBudgets = []struct{ category, amount string }{
	{"Groceries", "400.00"},
	{"Entertainment", "200.00"},
	{"Transportation", "150.00"},
	{"Dining", "100.00"},
}

// seedDemoData creates a demo user with a month of transactions and a few
// budgets. It does nothing when the demo user already exists.
func seedDemoData(ctx context.Context, store Store, now time.Time) error {
	if _, err := store.GetUserByUsername(ctx, demoUsername); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("checking demo user: %w", err)
	}

	hash, err := hashPassword(demoPassword)
	if err != nil {
		return err
	}
	user, err := store.CreateUser(ctx, User{
		Username:     demoUsername,
		PasswordHash: hash,
		Email:        "demo@smartspend.local",
		FullName:     "Demo User",
	})
	if err != nil {
		return fmt.Errorf("creating demo user: %w", err)
	}

	categories, err := store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("listing categories: %w", err)
	}
	byName := make(map[string]int64, len(categories))
	for _, c := range categories {
		byName[c.Name] = c.ID
	}

	txs := make([]Transaction, 0, len(demoTransactions))
	for _, d := range demoTransactions {
		t := Transaction{
			UserID:      user.ID,
			Amount:      decimal.RequireFromString(d.amount),
			Description: d.description,
			Date:        now.AddDate(0, 0, -d.daysAgo),
			IsIncome:    d.isIncome,
		}
		if id, ok := byName[d.category]; ok {
			t.CategoryID = &id
		}
		txs = append(txs, t)
	}
	if _, err := store.CreateTransactions(ctx, txs); err != nil {
		return fmt.Errorf("seeding demo transactions: %w", err)
	}

	for _, d := range demoBudgets {
		id, ok := byName[d.category]
		if !ok {
			continue
		}
		_, err := store.CreateBudget(ctx, Budget{
			UserID:     user.ID,
			CategoryID: &id,
			Amount:     decimal.RequireFromString(d.amount),
			Period:     PeriodMonthly,
			StartDate:  firstDayOfMonth(now),
		})
		if err != nil {
			return fmt.Errorf("seeding demo budgets: %w", err)
		}
	}
	return nil
}
