package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

func newUser(t *testing.T, s *Store, name string) *entity.User {
	t.Helper()
	u := &entity.User{Username: name, Email: name + "@x.com", College: "MIT", Semester: 1}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func TestWithinTxRollsBack(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := newUser(t, s, "alice")

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		g := &entity.Group{Name: "Trip", CreatedBy: u.ID}
		require.NoError(t, s.Groups().Create(ctx, g))
		require.NoError(t, s.Groups().AddMember(ctx, g.ID, u.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	groups, err := s.Groups().ListByMemberUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestWithinTxKeepsWritesFromOutside(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := newUser(t, s, "alice")

	done := make(chan error, 1)
	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Groups().Create(ctx, &entity.Group{Name: "Trip", CreatedBy: alice.ID}))
		go func() {
			done <- s.Users().Create(context.Background(), &entity.User{Username: "bob", Email: "bob@x.com"})
		}()
		select {
		case err := <-done:
			t.Errorf("write outside the transaction finished while it was open: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write outside the transaction never completed")
	}
	bob, err := s.Users().GetByUsername(ctx, "bob")
	require.NoError(t, err, "signup committed beside a failed transaction must survive its rollback")
	assert.NotZero(t, bob.ID)

	groups, err := s.Groups().ListByMemberUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestVerificationCodeIsUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	a := &entity.User{Username: "alice", Email: "a@x.com"}
	a.SetVerificationCode("123456", now)
	require.NoError(t, s.Users().Create(ctx, a))

	b := &entity.User{Username: "bob", Email: "b@x.com"}
	b.SetVerificationCode("123456", now)
	assert.ErrorIs(t, s.Users().Create(ctx, b), repository.ErrCodeInUse)

	b.SetVerificationCode("654321", now)
	require.NoError(t, s.Users().Create(ctx, b))
	b.SetVerificationCode("123456", now)
	assert.ErrorIs(t, s.Users().Update(ctx, b), repository.ErrCodeInUse)

	a.MarkVerified()
	require.NoError(t, s.Users().Update(ctx, a))
	require.NoError(t, s.Users().Update(ctx, b))
}

func TestUniqueness(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := newUser(t, s, "alice")

	assert.ErrorIs(t, s.Users().Create(ctx, &entity.User{Username: "alice", Email: "other@x.com"}), repository.ErrDuplicate)

	g := &entity.Group{Name: "Trip", CreatedBy: u.ID}
	require.NoError(t, s.Groups().Create(ctx, g))
	assert.ErrorIs(t, s.Groups().Create(ctx, &entity.Group{Name: "Trip", CreatedBy: u.ID}), repository.ErrDuplicate)

	require.NoError(t, s.Groups().AddMember(ctx, g.ID, u.ID))
	assert.ErrorIs(t, s.Groups().AddMember(ctx, g.ID, u.ID), repository.ErrDuplicate)
}

func TestDeleteUserCascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")

	g := &entity.Group{Name: "Trip", CreatedBy: alice.ID}
	require.NoError(t, s.Groups().Create(ctx, g))
	require.NoError(t, s.Groups().AddMember(ctx, g.ID, alice.ID))
	require.NoError(t, s.Groups().AddMember(ctx, g.ID, bob.ID))

	cats, err := s.Categories().List(ctx)
	require.NoError(t, err)
	e := &entity.Expense{Amount: decimal.NewFromInt(10), CategoryID: cats[0].ID, SplitType: entity.SplitEqual, GroupID: g.ID, CreatedBy: alice.ID}
	require.NoError(t, s.Expenses().Create(ctx, e))
	require.NoError(t, s.Settlements().CreateBatch(ctx, []*entity.Settlement{
		{ExpenseID: e.ID, Amount: decimal.NewFromInt(5), PaymentStatus: entity.PaymentPending, UserID: alice.ID, GroupID: g.ID},
		{ExpenseID: e.ID, Amount: decimal.NewFromInt(5), PaymentStatus: entity.PaymentPending, UserID: bob.ID, GroupID: g.ID},
	}))

	require.NoError(t, s.Users().Delete(ctx, alice.ID))

	_, err = s.Groups().GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	settlements, err := s.Settlements().ListByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, settlements)
}

func TestStoredUserIsDetached(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := &entity.User{Username: "alice", Email: "a@x.com"}
	u.SetVerificationCode("123456", u.CreatedAt)
	require.NoError(t, s.Users().Create(ctx, u))

	*u.VerificationCode = "999999"
	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "123456", *got.VerificationCode)

	inUse, err := s.Users().VerificationCodeInUse(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestDeleteUserRemovesTheirExpensesElsewhere(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")

	g := &entity.Group{Name: "Flat", CreatedBy: alice.ID}
	require.NoError(t, s.Groups().Create(ctx, g))
	require.NoError(t, s.Groups().AddMember(ctx, g.ID, alice.ID))
	require.NoError(t, s.Groups().AddMember(ctx, g.ID, bob.ID))

	cats, err := s.Categories().List(ctx)
	require.NoError(t, err)
	e := &entity.Expense{Amount: decimal.NewFromInt(10), CategoryID: cats[0].ID, SplitType: entity.SplitEqual, GroupID: g.ID, CreatedBy: bob.ID}
	require.NoError(t, s.Expenses().Create(ctx, e))
	require.NoError(t, s.Settlements().CreateBatch(ctx, []*entity.Settlement{
		{ExpenseID: e.ID, Amount: decimal.NewFromInt(5), PaymentStatus: entity.PaymentPending, UserID: alice.ID, GroupID: g.ID},
		{ExpenseID: e.ID, Amount: decimal.NewFromInt(5), PaymentStatus: entity.PaymentPending, UserID: bob.ID, GroupID: g.ID},
	}))

	require.NoError(t, s.Users().Delete(ctx, bob.ID))

	_, err = s.Groups().GetByID(ctx, g.ID)
	require.NoError(t, err)
	expenses, err := s.Expenses().ListByGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, expenses)
	settlements, err := s.Settlements().ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, settlements)
}
