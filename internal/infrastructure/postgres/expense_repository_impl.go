package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

type ExpenseRepository struct {
	pool *pgxpool.Pool
}

func NewExpenseRepository(pool *pgxpool.Pool) *ExpenseRepository {
	return &ExpenseRepository{pool: pool}
}

func (r *ExpenseRepository) Create(ctx context.Context, e *entity.Expense) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO expenses (amount, category_id, split_type, date, receipt_url, created_by, group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, e.Amount, e.CategoryID, e.SplitType, e.Date, e.ReceiptURL, e.CreatedBy, e.GroupID)
	return mapErr(row.Scan(&e.ID, &e.CreatedAt))
}

func (r *ExpenseRepository) ListByGroup(ctx context.Context, groupID int64) ([]*entity.Expense, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, amount, category_id, split_type, date, receipt_url, created_by, group_id, created_at
		FROM expenses
		WHERE group_id = $1
		ORDER BY date DESC, id DESC
	`, groupID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*entity.Expense
	for rows.Next() {
		e := &entity.Expense{}
		if err := rows.Scan(&e.ID, &e.Amount, &e.CategoryID, &e.SplitType, &e.Date, &e.ReceiptURL,
			&e.CreatedBy, &e.GroupID, &e.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err())
}

type SettlementRepository struct {
	pool *pgxpool.Pool
}

func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{pool: pool}
}

const settlementColumns = `id, expense_id, amount, payment_status, settlement_method, due_date,
	user_id, group_id, created_at`

func scanSettlement(row pgx.Row) (*entity.Settlement, error) {
	s := &entity.Settlement{}
	var status string
	if err := row.Scan(&s.ID, &s.ExpenseID, &s.Amount, &status, &s.SettlementMethod, &s.DueDate,
		&s.UserID, &s.GroupID, &s.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	s.PaymentStatus = entity.PaymentStatus(status)
	return s, nil
}

// CreateBatch queues every insert on one pgx batch inside a transaction, so
// either all rows land or none do.
func (r *SettlementRepository) CreateBatch(ctx context.Context, settlements []*entity.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}
	return NewTransactor(r.pool).WithinTx(ctx, func(ctx context.Context) error {
		tx := ctx.Value(txKey{}).(pgx.Tx)
		batch := &pgx.Batch{}
		for _, s := range settlements {
			batch.Queue(`
				INSERT INTO settlements (expense_id, amount, payment_status, settlement_method, due_date, user_id, group_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id, created_at
			`, s.ExpenseID, s.Amount, string(s.PaymentStatus), s.SettlementMethod, s.DueDate, s.UserID, s.GroupID)
		}
		br := tx.SendBatch(ctx, batch)
		for _, s := range settlements {
			if err := br.QueryRow().Scan(&s.ID, &s.CreatedAt); err != nil {
				_ = br.Close()
				return mapErr(err)
			}
		}
		return mapErr(br.Close())
	})
}

func (r *SettlementRepository) GetForUser(ctx context.Context, id, userID int64) (*entity.Settlement, error) {
	return scanSettlement(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *SettlementRepository) UpdateStatus(ctx context.Context, id int64, status entity.PaymentStatus) error {
	res, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE settlements SET payment_status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SettlementRepository) ListByUser(ctx context.Context, userID int64) ([]*entity.Settlement, error) {
	return r.list(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE user_id = $1 ORDER BY due_date, id`, userID)
}

func (r *SettlementRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.Settlement, error) {
	return r.list(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE expense_id = $1 ORDER BY id`, expenseID)
}

func (r *SettlementRepository) list(ctx context.Context, query string, arg int64) ([]*entity.Settlement, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*entity.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}

var (
	_ repository.ExpenseRepository    = (*ExpenseRepository)(nil)
	_ repository.SettlementRepository = (*SettlementRepository)(nil)
)
