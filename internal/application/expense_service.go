package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

// NUMERIC(10,2) holds values below 10^8.
var maxAmount = decimal.New(1, 8)

const receiptCleanupTimeout = 10 * time.Second

var errReceiptStorageDisabled = errors.New("receipt storage is not configured")

// ExpenseService records expenses and manages the settlements they generate.
type ExpenseService struct {
	Groups      repository.GroupRepository
	Categories  repository.CategoryRepository
	Expenses    repository.ExpenseRepository
	Settlements repository.SettlementRepository
	Tx          repository.Transactor
	Receipts    ReceiptStore
	Logger      *logrus.Logger

	Now func() time.Time
}

func NewExpenseService(
	groups repository.GroupRepository,
	categories repository.CategoryRepository,
	expenses repository.ExpenseRepository,
	settlements repository.SettlementRepository,
	tx repository.Transactor,
	receipts ReceiptStore,
	logger *logrus.Logger,
) *ExpenseService {
	return &ExpenseService{
		Groups:      groups,
		Categories:  categories,
		Expenses:    expenses,
		Settlements: settlements,
		Tx:          tx,
		Receipts:    receipts,
		Logger:      logger,
		Now:         time.Now,
	}
}

// Receipt is an uploaded attachment waiting to be stored.
type Receipt struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type AddExpenseInput struct {
	Amount           string
	CategoryID       int64
	SplitType        string
	Date             *time.Time
	DueDate          *time.Time
	SettlementMethod string
	Receipt          *Receipt
}

// ExpenseResult is a created expense with its settlements in member join order.
type ExpenseResult struct {
	Expense     *entity.Expense
	Settlements []*entity.Settlement
}

// AddExpense records an expense and splits it across the group's members in
// one transaction. Nothing is persisted unless every settlement is.
func (s *ExpenseService) AddExpense(ctx context.Context, actor *AuthenticatedUser, groupID int64, in AddExpenseInput) (*ExpenseResult, error) {
	g, err := s.Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "group not found")
		}
		return nil, fmt.Errorf("load group: %w", err)
	}
	member, err := s.Groups.IsMember(ctx, g.ID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, newError(ErrForbidden, "you are not a member of this group")
	}

	amount, verr := s.validate(ctx, &in)
	if verr != nil {
		return nil, verr
	}

	now := s.Now().UTC()
	e := &entity.Expense{
		Amount:     amount,
		CategoryID: in.CategoryID,
		SplitType:  in.SplitType,
		Date:       dateOnly(now),
		CreatedBy:  actor.ID,
		GroupID:    g.ID,
	}
	if in.Date != nil {
		e.Date = dateOnly(*in.Date)
	}
	dueDate := dateOnly(now.AddDate(0, 1, 0))
	if in.DueDate != nil {
		dueDate = dateOnly(*in.DueDate)
	}

	if in.Receipt != nil {
		url, err := s.storeReceipt(ctx, g.ID, in.Receipt)
		if err != nil {
			return nil, err
		}
		e.ReceiptURL = url
	}

	var settlements []*entity.Settlement
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Expenses.Create(ctx, e); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		var ferr error
		settlements, ferr = s.fanOut(ctx, e, dueDate, in.SettlementMethod)
		return ferr
	})
	if err != nil {
		if e.ReceiptURL != "" {
			s.dropReceipt(ctx, e.ReceiptURL)
		}
		var appErr *Error
		if errors.As(err, &appErr) {
			s.Logger.WithError(err).WithFields(logrus.Fields{"group_id": g.ID, "user_id": actor.ID}).Warn("expense rolled back")
			return nil, appErr
		}
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"expense_id":  e.ID,
		"group_id":    g.ID,
		"settlements": len(settlements),
	}).Info("expense recorded")
	return &ExpenseResult{Expense: e, Settlements: settlements}, nil
}

func (s *ExpenseService) validate(ctx context.Context, in *AddExpenseInput) (decimal.Decimal, *Error) {
	fields := map[string]string{}

	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	switch {
	case strings.TrimSpace(in.Amount) == "":
		fields["amount"] = "is required"
	case err != nil:
		fields["amount"] = "must be a decimal number"
	case !amount.IsPositive():
		fields["amount"] = "must be greater than zero"
	case !amount.Shift(2).Equal(amount.Shift(2).Truncate(0)):
		fields["amount"] = "must have at most 2 decimal places"
	case amount.GreaterThanOrEqual(maxAmount):
		fields["amount"] = "must have at most 10 digits"
	}

	in.SplitType = strings.ToLower(strings.TrimSpace(in.SplitType))
	if in.SplitType == "" {
		in.SplitType = entity.SplitEqual
	}
	if in.SplitType != entity.SplitEqual {
		fields["split_type"] = "unsupported split type"
	}

	if in.CategoryID <= 0 {
		fields["category"] = "is required"
	} else if _, err := s.Categories.GetByID(ctx, in.CategoryID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.Logger.WithError(err).Error("load category failed")
		}
		fields["category"] = "unknown category"
	}

	if len(fields) > 0 {
		return decimal.Decimal{}, invalidFields(fields)
	}
	return amount, nil
}

func (s *ExpenseService) storeReceipt(ctx context.Context, groupID int64, r *Receipt) (string, error) {
	if s.Receipts == nil {
		return "", &Error{Kind: ErrInvalidInput, Message: errReceiptStorageDisabled.Error(),
			Fields: map[string]string{"receipt": "uploads are disabled"}}
	}
	url, err := s.Receipts.Save(ctx, groupID, r.Filename, r.ContentType, r.Body)
	if err != nil {
		return "", fmt.Errorf("store receipt: %w", err)
	}
	return url, nil
}

// dropReceipt removes a receipt whose expense was rolled back.
func (s *ExpenseService) dropReceipt(ctx context.Context, url string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptCleanupTimeout)
	defer cancel()
	if err := s.Receipts.Delete(ctx, url); err != nil {
		s.Logger.WithError(err).WithField("receipt_url", url).Warn("orphaned receipt left in storage")
	}
}

// fanOut creates one Pending settlement per member. Runs inside the expense transaction.
func (s *ExpenseService) fanOut(ctx context.Context, e *entity.Expense, dueDate time.Time, method string) ([]*entity.Settlement, error) {
	members, err := s.Groups.ListMembers(ctx, e.GroupID)
	if err != nil {
		return nil, &Error{Kind: ErrSplitFailed, Message: "could not load group members"}
	}
	if len(members) == 0 {
		return nil, newError(ErrInvalidState, "group has no members to split the expense between")
	}
	shares, err := SplitEqual(e.Amount, len(members))
	if err != nil {
		return nil, newError(ErrSplitFailed, "could not split expense: %v", err)
	}
	out := make([]*entity.Settlement, len(members))
	for i, m := range members {
		out[i] = &entity.Settlement{
			ExpenseID:        e.ID,
			Amount:           shares[i],
			PaymentStatus:    entity.PaymentPending,
			SettlementMethod: strings.TrimSpace(method),
			DueDate:          dueDate,
			UserID:           m.UserID,
			GroupID:          e.GroupID,
		}
	}
	if err := s.Settlements.CreateBatch(ctx, out); err != nil {
		s.Logger.WithError(err).WithField("expense_id", e.ID).Error("create settlements failed")
		return nil, newError(ErrSplitFailed, "could not create settlements")
	}
	return out, nil
}

// UpdateSettlementStatus overwrites the status of one of the actor's settlements.
// Any status may follow any other.
func (s *ExpenseService) UpdateSettlementStatus(ctx context.Context, actor *AuthenticatedUser, settlementID int64, status string) (*entity.Settlement, error) {
	st, err := s.Settlements.GetForUser(ctx, settlementID, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "settlement not found")
		}
		return nil, fmt.Errorf("load settlement: %w", err)
	}
	ps := entity.PaymentStatus(status)
	if !ps.Valid() {
		return nil, &Error{Kind: ErrInvalidInput, Message: "invalid payment status",
			Fields: map[string]string{"payment_status": "must be Pending or Completed"}}
	}
	if err := s.Settlements.UpdateStatus(ctx, st.ID, ps); err != nil {
		return nil, fmt.Errorf("update settlement: %w", err)
	}
	st.PaymentStatus = ps
	return st, nil
}

// SettlementView is a settlement annotated with its group's display name.
type SettlementView struct {
	*entity.Settlement
	GroupName string
}

const unknownGroupName = "Unknown"

func (s *ExpenseService) ListSettlements(ctx context.Context, actor *AuthenticatedUser) ([]SettlementView, error) {
	settlements, err := s.Settlements.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	ids := make([]int64, 0, len(settlements))
	seen := map[int64]bool{}
	for _, st := range settlements {
		if !seen[st.GroupID] {
			seen[st.GroupID] = true
			ids = append(ids, st.GroupID)
		}
	}
	names, err := s.Groups.NamesByIDs(ctx, ids)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", actor.ID).Warn("resolve group names failed")
		names = map[int64]string{}
	}
	out := make([]SettlementView, len(settlements))
	for i, st := range settlements {
		name, ok := names[st.GroupID]
		if !ok {
			name = unknownGroupName
		}
		out[i] = SettlementView{Settlement: st, GroupName: name}
	}
	return out, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
