package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var csvColumns = []string{"date", "description", "amount", "categoryId", "isIncome"}

// RowError reports a CSV row that could not be imported. Row is the line
// number in the file, the header being line 1.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// parseTransactionsCSV reads transactions for userID from a CSV with a header
// row. Columns are matched by name, case-insensitively; only description and
// amount are required. A missing date means now. knownCategory reports
// whether a category id exists.
func parseTransactionsCSV(r io.Reader, userID int64, now time.Time, knownCategory func(int64) bool) ([]Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, &RowError{Row: 1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		for _, col := range csvColumns {
			if strings.EqualFold(name, col) {
				index[col] = i
			}
		}
	}
	for _, required := range []string{"description", "amount"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	transactions := make([]Transaction, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &RowError{Row: parseErr.Line, Err: parseErr.Err}
			}
			return nil, err
		}
		if isBlankRecord(record) {
			continue
		}
		row, _ := reader.FieldPos(0)

		field := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		t, err := transactionFromRecord(field, userID, now, knownCategory)
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		transactions = append(transactions, t)
	}

	if len(transactions) == 0 {
		return nil, errors.New("file contains no transactions")
	}
	return transactions, nil
}

func transactionFromRecord(field func(string) string, userID int64, now time.Time, knownCategory func(int64) bool) (Transaction, error) {
	t := Transaction{UserID: userID, Date: now}

	t.Description = field("description")
	if t.Description == "" {
		return Transaction{}, errors.New("description is required")
	}

	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid amount %q", field("amount"))
	}
	if amount.IsNegative() {
		return Transaction{}, errors.New("amount must not be negative")
	}
	t.Amount = amount

	if raw := field("date"); raw != "" {
		date, _, err := parseDate(raw)
		if err != nil {
			return Transaction{}, err
		}
		t.Date = date
	}

	if raw := field("categoryId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Transaction{}, fmt.Errorf("invalid categoryId %q", raw)
		}
		if !knownCategory(id) {
			return Transaction{}, fmt.Errorf("unknown categoryId %d", id)
		}
		t.CategoryID = &id
	}

	switch strings.ToLower(field("isIncome")) {
	case "true", "1", "yes":
		t.IsIncome = true
	}
	return t, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
