package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
)

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentCompleted
}

// Settlement is one member's share of an expense.
type Settlement struct {
	ID               int64
	ExpenseID        int64
	Amount           decimal.Decimal
	PaymentStatus    PaymentStatus
	SettlementMethod string
	DueDate          time.Time
	UserID           int64
	GroupID          int64
	CreatedAt        time.Time
}
