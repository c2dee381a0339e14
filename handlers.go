package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// optional distinguishes a JSON field that was omitted from one set to null.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// parseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates. dateOnly
// reports which form was given.
func parseDate(raw string) (t time.Time, dateOnly bool, err error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", raw)
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message, "errors": err.Error()})
}

func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	s.logger.ErrorContext(c.Request.Context(), "Request failed",
		"component", "http", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid id"})
		return 0, false
	}
	return id, true
}

// checkOwner writes the 404, 403 or 500 response for a lookup and reports
// whether the handler may continue.
func (s *Server) checkOwner(c *gin.Context, resource string, ownerID int64, err error) bool {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": resource + " not found"})
		return false
	}
	if err != nil {
		s.internalError(c, err)
		return false
	}
	if ownerID != currentUser(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
		return false
	}
	return true
}

// checkCategory verifies an optional category id exists.
func (s *Server) checkCategory(c *gin.Context, id *int64) bool {
	if id == nil {
		return true
	}
	_, err := s.store.GetCategory(c.Request.Context(), *id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid category", "errors": fmt.Sprintf("category %d does not exist", *id)})
		return false
	}
	if err != nil {
		s.internalError(c, err)
		return false
	}
	return true
}

func (s *Server) publishChange(c *gin.Context, userID int64, reason string) {
	if err := s.events.PublishTransactionsChanged(c.Request.Context(), userID, reason); err != nil {
		s.logger.Warn("Failed to publish transactions changed event",
			"component", "events", "user_id", userID, "reason", reason, "error", err)
	}
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
	})
}

// getTransactions lists the user's transactions, optionally limited to the
// startDate..endDate range.
func (s *Server) getTransactions(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	startRaw, endRaw := c.Query("startDate"), c.Query("endDate")
	if startRaw == "" || endRaw == "" {
		transactions, err := s.store.ListTransactions(ctx, user.ID)
		if err != nil {
			s.internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, transactions)
		return
	}

	start, _, err := parseDate(startRaw)
	if err != nil {
		badRequest(c, "Invalid startDate", err)
		return
	}
	end, dateOnly, err := parseDate(endRaw)
	if err != nil {
		badRequest(c, "Invalid endDate", err)
		return
	}
	if dateOnly {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "endDate must not be before startDate"})
		return
	}

	transactions, err := s.store.ListTransactionsInRange(ctx, user.ID, start, end)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

type transactionRequest struct {
	CategoryID  *int64           `json:"categoryId"`
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
	Description string           `json:"description" binding:"required,max=255"`
	Date        string           `json:"date"`
	IsIncome    bool             `json:"isIncome"`
}

// addTransaction creates a new transaction
func (s *Server) addTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid transaction data", err)
		return
	}
	if req.Amount.IsNegative() {
		badRequest(c, "Invalid transaction data", errors.New("amount must not be negative"))
		return
	}

	t := Transaction{
		UserID:      currentUser(c).ID,
		CategoryID:  req.CategoryID,
		Amount:      *req.Amount,
		Description: req.Description,
		Date:        s.now(),
		IsIncome:    req.IsIncome,
	}
	if req.Date != "" {
		date, _, err := parseDate(req.Date)
		if err != nil {
			badRequest(c, "Invalid transaction data", err)
			return
		}
		t.Date = date
	}
	if !s.checkCategory(c, t.CategoryID) {
		return
	}

	created, err := s.store.CreateTransaction(c.Request.Context(), t)
	if err != nil {
		s.internalError(c, err)
		return
	}

	s.publishChange(c, created.UserID, "created")
	c.JSON(http.StatusCreated, created)
}

type transactionUpdateRequest struct {
	CategoryID  optional[int64]  `json:"categoryId"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description" binding:"omitempty,min=1,max=255"`
	Date        *string          `json:"date"`
	IsIncome    *bool            `json:"isIncome"`
}

func (s *Server) updateTransaction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	existing, err := s.store.GetTransaction(ctx, id)
	if !s.checkOwner(c, "Transaction", existing.UserID, err) {
		return
	}

	var req transactionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid transaction data", err)
		return
	}
	if req.Amount != nil && req.Amount.IsNegative() {
		badRequest(c, "Invalid transaction data", errors.New("amount must not be negative"))
		return
	}

	patch := TransactionPatch{
		Amount:      req.Amount,
		Description: req.Description,
		IsIncome:    req.IsIncome,
	}
	if req.CategoryID.Set {
		patch.CategoryID = req.CategoryID.Value
		patch.ClearCategory = req.CategoryID.Value == nil
		if !s.checkCategory(c, patch.CategoryID) {
			return
		}
	}
	if req.Date != nil {
		date, _, err := parseDate(*req.Date)
		if err != nil {
			badRequest(c, "Invalid transaction data", err)
			return
		}
		patch.Date = &date
	}

	updated, err := s.store.UpdateTransaction(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Transaction not found"})
			return
		}
		s.internalError(c, err)
		return
	}

	s.publishChange(c, updated.UserID, "updated")
	c.JSON(http.StatusOK, updated)
}

// deleteTransaction removes a transaction by ID
func (s *Server) deleteTransaction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	existing, err := s.store.GetTransaction(ctx, id)
	if !s.checkOwner(c, "Transaction", existing.UserID, err) {
		return
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		s.internalError(c, err)
		return
	}

	s.publishChange(c, existing.UserID, "deleted")
	c.Status(http.StatusNoContent)
}

// uploadTransactions imports a CSV file of transactions. The file is kept in
// the blob store and every row is inserted or none.
func (s *Server) uploadTransactions(c *gin.Context) {
	maxBytes := s.cfg.MaxUploadBytes
	if c.Request.ContentLength > maxBytes+(1<<20) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+(1<<20))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded"})
		return
	}
	if fileHeader.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File too large"})
		return
	}
	if !isCSVUpload(fileHeader.Filename, fileHeader.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only CSV files are allowed"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.internalError(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.internalError(c, err)
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)

	fileURL, err := s.blobs.Put(ctx, fileHeader.Filename, data)
	if err != nil {
		s.internalError(c, err)
		return
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	known := make(map[int64]bool, len(categories))
	for _, cat := range categories {
		known[cat.ID] = true
	}

	transactions, err := parseTransactionsCSV(bytes.NewReader(data), user.ID, s.now(), func(id int64) bool { return known[id] })
	if err != nil {
		if delErr := s.blobs.Delete(ctx, fileURL); delErr != nil {
			s.logger.Warn("Failed to remove rejected upload", "component", "blobstore", "ref", fileURL, "error", delErr)
		}
		badRequest(c, "Invalid CSV file", err)
		return
	}

	created, err := s.store.CreateTransactions(ctx, transactions)
	if err != nil {
		s.internalError(c, err)
		return
	}

	s.logger.Info("Transactions imported", "component", "import", "user_id", user.ID, "count", len(created), "file", fileURL)
	s.publishChange(c, user.ID, "imported")
	c.JSON(http.StatusCreated, gin.H{
		"message":      fmt.Sprintf("Successfully imported %d transactions", len(created)),
		"fileUrl":      fileURL,
		"transactions": created,
	})
}

func isCSVUpload(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(mediaType) == "text/csv"
}

// getCategories retrieves all categories
func (s *Server) getCategories(c *gin.Context) {
	categories, err := cached(c.Request.Context(), s.cache, cacheKeyCategories, categoriesTTL, s.store.ListCategories)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

type categoryRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
	Icon  string `json:"icon" binding:"max=64"`
}

func (s *Server) addCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid category data", err)
		return
	}

	category := Category{Name: req.Name, Color: req.Color, Icon: req.Icon}
	if category.Color == "" {
		category.Color = "#667eea"
	}
	if category.Icon == "" {
		category.Icon = "category"
	}

	ctx := c.Request.Context()
	created, err := s.store.CreateCategory(ctx, category)
	if errors.Is(err, ErrCategoryExists) {
		c.JSON(http.StatusConflict, gin.H{"message": "Category already exists"})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}

	// Invalidate cache
	s.cache.Delete(ctx, cacheKeyCategories)
	c.JSON(http.StatusCreated, created)
}
