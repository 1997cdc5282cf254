package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitEqual is the only split type currently supported.
const SplitEqual = "equal"

// Expense is an amount paid on behalf of a group. Every expense owns one
// settlement per group member, created together with it.
type Expense struct {
	ID         int64
	Amount     decimal.Decimal
	CategoryID int64
	SplitType  string
	Date       time.Time
	ReceiptURL string
	CreatedBy  int64
	GroupID    int64
	CreatedAt  time.Time
}
