package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func validateBudget(b Budget) error {
	if !b.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if !b.Period.IsValid() {
		return fmt.Errorf("invalid period %q: must be one of weekly, monthly, quarterly, yearly", b.Period)
	}
	if b.StartDate.IsZero() {
		return errors.New("startDate is required")
	}
	if b.EndDate != nil && b.EndDate.Before(b.StartDate) {
		return errors.New("endDate must not be before startDate")
	}
	return nil
}

func (s *Server) getBudgets(c *gin.Context) {
	budgets, err := s.store.ListBudgets(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, budgets)
}

// getBudgetSummary returns each budget with its spend for the current month.
func (s *Server) getBudgetSummary(c *gin.Context) {
	summary, err := s.dashboard.Summarize(c.Request.Context(), currentUser(c).ID, s.now())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary.BudgetSummary)
}

type budgetRequest struct {
	CategoryID *int64           `json:"categoryId"`
	Amount     *decimal.Decimal `json:"amount" binding:"required"`
	Period     BudgetPeriod     `json:"period"`
	StartDate  string           `json:"startDate" binding:"required"`
	EndDate    *string          `json:"endDate"`
}

func (s *Server) addBudget(c *gin.Context) {
	var req budgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid budget data", err)
		return
	}

	b := Budget{
		UserID:     currentUser(c).ID,
		CategoryID: req.CategoryID,
		Amount:     *req.Amount,
		Period:     req.Period,
	}
	if b.Period == "" {
		b.Period = PeriodMonthly
	}

	start, _, err := parseDate(req.StartDate)
	if err != nil {
		badRequest(c, "Invalid budget data", err)
		return
	}
	b.StartDate = start
	if req.EndDate != nil && *req.EndDate != "" {
		end, _, err := parseDate(*req.EndDate)
		if err != nil {
			badRequest(c, "Invalid budget data", err)
			return
		}
		b.EndDate = &end
	}

	if err := validateBudget(b); err != nil {
		badRequest(c, "Invalid budget data", err)
		return
	}
	if !s.checkCategory(c, b.CategoryID) {
		return
	}

	created, err := s.store.CreateBudget(c.Request.Context(), b)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type budgetUpdateRequest struct {
	CategoryID optional[int64]  `json:"categoryId"`
	Amount     *decimal.Decimal `json:"amount"`
	Period     *BudgetPeriod    `json:"period"`
	StartDate  *string          `json:"startDate"`
	EndDate    optional[string] `json:"endDate"`
}

func (s *Server) updateBudget(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	existing, err := s.store.GetBudget(ctx, id)
	if !s.checkOwner(c, "Budget", existing.UserID, err) {
		return
	}

	var req budgetUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid budget data", err)
		return
	}

	patch := BudgetPatch{Amount: req.Amount, Period: req.Period}
	if req.CategoryID.Set {
		patch.CategoryID = req.CategoryID.Value
		patch.ClearCategory = req.CategoryID.Value == nil
		if !s.checkCategory(c, patch.CategoryID) {
			return
		}
	}
	if req.StartDate != nil {
		start, _, err := parseDate(*req.StartDate)
		if err != nil {
			badRequest(c, "Invalid budget data", err)
			return
		}
		patch.StartDate = &start
	}
	if req.EndDate.Set {
		if req.EndDate.Value == nil || *req.EndDate.Value == "" {
			patch.ClearEndDate = true
		} else {
			end, _, err := parseDate(*req.EndDate.Value)
			if err != nil {
				badRequest(c, "Invalid budget data", err)
				return
			}
			patch.EndDate = &end
		}
	}

	merged := existing
	patch.apply(&merged)
	if err := validateBudget(merged); err != nil {
		badRequest(c, "Invalid budget data", err)
		return
	}

	updated, err := s.store.UpdateBudget(ctx, id, patch)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Budget not found"})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteBudget(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	existing, err := s.store.GetBudget(ctx, id)
	if !s.checkOwner(c, "Budget", existing.UserID, err) {
		return
	}
	if err := s.store.DeleteBudget(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		s.internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
