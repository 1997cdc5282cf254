package repository

import (
	"context"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
)

// ExpenseRepository persists expenses.
type ExpenseRepository interface {
	Create(ctx context.Context, e *entity.Expense) error
	ListByGroup(ctx context.Context, groupID int64) ([]*entity.Expense, error)
}

// SettlementRepository persists settlements.
type SettlementRepository interface {
	// CreateBatch inserts all settlements or none.
	CreateBatch(ctx context.Context, settlements []*entity.Settlement) error
	// GetForUser returns ErrNotFound when the settlement does not exist or is owned by someone else.
	GetForUser(ctx context.Context, id, userID int64) (*entity.Settlement, error)
	UpdateStatus(ctx context.Context, id int64, status entity.PaymentStatus) error
	ListByUser(ctx context.Context, userID int64) ([]*entity.Settlement, error)
	ListByExpense(ctx context.Context, expenseID int64) ([]*entity.Settlement, error)
}

// Transactor runs fn inside a single unit of work. Repositories called with the
// ctx handed to fn take part in the same transaction; a returned error rolls it back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
