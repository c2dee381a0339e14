package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account holder. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Category is a global transaction category.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Transaction represents a financial transaction. Amount is never negative;
// the direction of the cash flow is carried by IsIncome.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	CategoryID  *int64          `json:"categoryId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	IsIncome    bool            `json:"isIncome"`
}

// BudgetPeriod is the cadence a budget applies to.
type BudgetPeriod string

const (
	PeriodWeekly    BudgetPeriod = "weekly"
	PeriodMonthly   BudgetPeriod = "monthly"
	PeriodQuarterly BudgetPeriod = "quarterly"
	PeriodYearly    BudgetPeriod = "yearly"
)

// IsValid reports whether p is one of the supported periods.
func (p BudgetPeriod) IsValid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	default:
		return false
	}
}

// Budget caps spending for a category. A nil EndDate means open-ended.
type Budget struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"userId"`
	CategoryID *int64          `json:"categoryId"`
	Amount     decimal.Decimal `json:"amount"`
	Period     BudgetPeriod    `json:"period"`
	StartDate  time.Time       `json:"startDate"`
	EndDate    *time.Time      `json:"endDate"`
}

// CommunityTip is a user-submitted money saving tip.
type CommunityTip struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	IsApproved bool      `json:"isApproved"`
	Likes      int       `json:"likes"`
}

// Deal is a local offer shown on the community page.
type Deal struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	ValidUntil  *time.Time `json:"validUntil"`
	Link        *string    `json:"link"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Alert types
const (
	AlertBudgetThreshold = "budget_threshold"
	AlertBudgetExceeded  = "budget_exceeded"
)

// Alert is a per-user financial notification.
type Alert struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// BudgetRollup is a budget merged with its spend figures for the current month.
type BudgetRollup struct {
	Budget
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed int64           `json:"percentUsed"`
}

// CategoryBreakdownEntry is one slice of the monthly expense breakdown.
type CategoryBreakdownEntry struct {
	CategoryID *int64          `json:"categoryId"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	Icon       string          `json:"icon"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage int64           `json:"percentage"`
}

// DashboardSummary contains all dashboard data for one user
type DashboardSummary struct {
	Balance            decimal.Decimal          `json:"balance"`
	MonthlyIncome      decimal.Decimal          `json:"monthlyIncome"`
	MonthlyExpenses    decimal.Decimal          `json:"monthlyExpenses"`
	BudgetRemaining    decimal.Decimal          `json:"budgetRemaining"`
	RecentTransactions []Transaction            `json:"recentTransactions"`
	BudgetSummary      []BudgetRollup           `json:"budgetSummary"`
	CategoryBreakdown  []CategoryBreakdownEntry `json:"categoryBreakdown"`
}
