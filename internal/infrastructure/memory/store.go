// Package memory keeps every repository in process memory. It backs the
// service tests and STORAGE_DRIVER=memory runs; nothing survives a restart.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

type membership struct {
	groupID int64
	userID  int64
}

type memberRow struct {
	entity.Member
	order int64
}

type state struct {
	users       map[int64]entity.User
	groups      map[int64]entity.Group
	members     map[membership]memberRow
	categories  map[int64]entity.Category
	expenses    map[int64]entity.Expense
	settlements map[int64]entity.Settlement
	seq         int64
}

func (s state) clone() state {
	return state{
		users:       maps.Clone(s.users),
		groups:      maps.Clone(s.groups),
		members:     maps.Clone(s.members),
		categories:  maps.Clone(s.categories),
		expenses:    maps.Clone(s.expenses),
		settlements: maps.Clone(s.settlements),
		seq:         s.seq,
	}
}

// Store owns the data shared by the memory repositories. A transaction holds
// txMu exclusively for its whole run; every other operation holds it shared,
// so nothing outside the transaction can observe or interleave with it.
type Store struct {
	mu   sync.RWMutex
	txMu sync.RWMutex
	st   state
}

// DefaultCategories mirrors the rows seeded by the initial migration.
var DefaultCategories = []string{"Food", "Travel", "Rent", "Utilities", "Entertainment", "Other"}

func NewStore() *Store {
	s := &Store{st: state{
		users:       map[int64]entity.User{},
		groups:      map[int64]entity.Group{},
		members:     map[membership]memberRow{},
		categories:  map[int64]entity.Category{},
		expenses:    map[int64]entity.Expense{},
		settlements: map[int64]entity.Settlement{},
	}}
	for _, name := range DefaultCategories {
		id := s.nextID()
		s.st.categories[id] = entity.Category{ID: id, Name: name}
	}
	return s
}

// nextID must be called with mu held for writing.
func (s *Store) nextID() int64 {
	s.st.seq++
	return s.st.seq
}

type txKey struct{}

func inTx(ctx context.Context) bool { return ctx.Value(txKey{}) != nil }

// read locks the state for reading and returns the matching unlock.
func (s *Store) read(ctx context.Context) func() {
	if inTx(ctx) {
		s.mu.RLock()
		return s.mu.RUnlock
	}
	s.txMu.RLock()
	s.mu.RLock()
	return func() {
		s.mu.RUnlock()
		s.txMu.RUnlock()
	}
}

// write locks the state for writing and returns the matching unlock.
func (s *Store) write(ctx context.Context) func() {
	if inTx(ctx) {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.RLock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.RUnlock()
	}
}

// WithinTx runs fn with exclusive access to the store and restores the
// pre-transaction state when fn fails. Repository calls inside fn must use
// the context it receives.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Users() *UserRepository             { return &UserRepository{s: s} }
func (s *Store) Groups() *GroupRepository           { return &GroupRepository{s: s} }
func (s *Store) Categories() *CategoryRepository    { return &CategoryRepository{s: s} }
func (s *Store) Expenses() *ExpenseRepository       { return &ExpenseRepository{s: s} }
func (s *Store) Settlements() *SettlementRepository { return &SettlementRepository{s: s} }

var _ repository.Transactor = (*Store)(nil)
