package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// BudgetAlertEvaluator raises alerts when a budget's current-month spend
// crosses the configured threshold or the budget itself.
type BudgetAlertEvaluator struct {
	store     Store
	dashboard *DashboardAggregator
	threshold int64
	now       func() time.Time
	logger    *slog.Logger
}

func NewBudgetAlertEvaluator(store Store, dashboard *DashboardAggregator, threshold int64, logger *slog.Logger) *BudgetAlertEvaluator {
	return &BudgetAlertEvaluator{
		store:     store,
		dashboard: dashboard,
		threshold: threshold,
		now:       time.Now,
		logger:    logger.With("component", "alerts"),
	}
}

// HandleEvent is an EventHandler.
func (e *BudgetAlertEvaluator) HandleEvent(ctx context.Context, ev TransactionsChanged) error {
	_, err := e.Evaluate(ctx, ev.UserID)
	return err
}

// Evaluate checks every budget of userID and returns the alerts it created.
// An alert already raised for the same budget category and month is not
// raised again.
func (e *BudgetAlertEvaluator) Evaluate(ctx context.Context, userID int64) ([]Alert, error) {
	now := e.now()
	summary, err := e.dashboard.Summarize(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	if len(summary.BudgetSummary) == 0 {
		return nil, nil
	}

	categories, err := e.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	month := now.Format("January 2006")
	var created []Alert
	for _, r := range summary.BudgetSummary {
		if r.PercentUsed < e.threshold {
			continue
		}

		name := "uncategorized"
		if r.CategoryID != nil {
			name = names[*r.CategoryID]
			if name == "" {
				name = otherCategoryName
			}
		}

		alert := Alert{UserID: userID, Type: AlertBudgetThreshold}
		if r.PercentUsed >= 100 {
			alert.Type = AlertBudgetExceeded
			alert.Message = fmt.Sprintf("You have exceeded your %s budget for %s", name, month)
		} else {
			alert.Message = fmt.Sprintf("You have used %d%% of your %s budget for %s", e.threshold, name, month)
		}

		inserted, err := e.store.CreateAlertOnce(ctx, alert)
		if err != nil {
			return created, fmt.Errorf("create alert: %w", err)
		}
		if inserted {
			e.logger.Info("Budget alert raised", "user_id", userID, "budget_id", r.ID, "type", alert.Type, "percent_used", r.PercentUsed)
			created = append(created, alert)
		}
	}
	return created, nil
}
