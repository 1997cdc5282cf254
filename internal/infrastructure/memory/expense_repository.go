package memory

import (
	"context"
	"sort"
	"time"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

type ExpenseRepository struct {
	s *Store
}

func (r *ExpenseRepository) Create(ctx context.Context, e *entity.Expense) error {
	defer r.s.write(ctx)()
	if _, ok := r.s.st.groups[e.GroupID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.st.categories[e.CategoryID]; !ok {
		return repository.ErrNotFound
	}
	e.ID = r.s.nextID()
	e.CreatedAt = time.Now().UTC()
	r.s.st.expenses[e.ID] = *e
	return nil
}

func (r *ExpenseRepository) ListByGroup(ctx context.Context, groupID int64) ([]*entity.Expense, error) {
	defer r.s.read(ctx)()
	var out []*entity.Expense
	for _, e := range r.s.st.expenses {
		if e.GroupID == groupID {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type SettlementRepository struct {
	s *Store
}

func (r *SettlementRepository) CreateBatch(ctx context.Context, settlements []*entity.Settlement) error {
	defer r.s.write(ctx)()
	for _, st := range settlements {
		if _, ok := r.s.st.expenses[st.ExpenseID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := r.s.st.users[st.UserID]; !ok {
			return repository.ErrNotFound
		}
	}
	now := time.Now().UTC()
	for _, st := range settlements {
		st.ID = r.s.nextID()
		st.CreatedAt = now
		r.s.st.settlements[st.ID] = *st
	}
	return nil
}

func (r *SettlementRepository) GetForUser(ctx context.Context, id, userID int64) (*entity.Settlement, error) {
	defer r.s.read(ctx)()
	st, ok := r.s.st.settlements[id]
	if !ok || st.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (r *SettlementRepository) UpdateStatus(ctx context.Context, id int64, status entity.PaymentStatus) error {
	defer r.s.write(ctx)()
	st, ok := r.s.st.settlements[id]
	if !ok {
		return repository.ErrNotFound
	}
	st.PaymentStatus = status
	r.s.st.settlements[id] = st
	return nil
}

func (r *SettlementRepository) ListByUser(ctx context.Context, userID int64) ([]*entity.Settlement, error) {
	out := r.filter(ctx, func(st entity.Settlement) bool { return st.UserID == userID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *SettlementRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.Settlement, error) {
	out := r.filter(ctx, func(st entity.Settlement) bool { return st.ExpenseID == expenseID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SettlementRepository) filter(ctx context.Context, match func(entity.Settlement) bool) []*entity.Settlement {
	defer r.s.read(ctx)()
	var out []*entity.Settlement
	for _, st := range r.s.st.settlements {
		if match(st) {
			out = append(out, &st)
		}
	}
	return out
}

var (
	_ repository.ExpenseRepository    = (*ExpenseRepository)(nil)
	_ repository.SettlementRepository = (*SettlementRepository)(nil)
)
