package handlers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// flexInt accepts either a JSON number or a numeric string, as sent by HTML forms.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexID is an identifier that may arrive as a number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	var n flexInt
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

// flexAmount keeps the literal text of a JSON number or string so money is
// never routed through float64.
type flexAmount string

func (f *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexAmount(n.String())
	return nil
}

type groupDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func toGroupDTO(g *entity.Group) groupDTO {
	return groupDTO{ID: g.ID, Name: g.Name, CreatedBy: g.CreatedBy, CreatedAt: g.CreatedAt}
}

type memberDTO struct {
	Username string `json:"username"`
}

type expenseDTO struct {
	ID         int64     `json:"id"`
	Amount     string    `json:"amount"`
	CategoryID int64     `json:"category"`
	SplitType  string    `json:"split_type"`
	Date       string    `json:"date"`
	ReceiptURL string    `json:"receipt_image,omitempty"`
	CreatedBy  int64     `json:"created_by"`
	GroupID    int64     `json:"group_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func toExpenseDTO(e *entity.Expense) expenseDTO {
	return expenseDTO{
		ID:         e.ID,
		Amount:     e.Amount.StringFixed(2),
		CategoryID: e.CategoryID,
		SplitType:  e.SplitType,
		Date:       e.Date.Format(dateLayout),
		ReceiptURL: e.ReceiptURL,
		CreatedBy:  e.CreatedBy,
		GroupID:    e.GroupID,
		CreatedAt:  e.CreatedAt,
	}
}

type settlementDTO struct {
	ID               int64  `json:"id"`
	ExpenseID        int64  `json:"expense_id"`
	Amount           string `json:"amount"`
	PaymentStatus    string `json:"payment_status"`
	SettlementMethod string `json:"settlement_method"`
	DueDate          string `json:"due_date"`
	UserID           int64  `json:"user"`
	GroupID          int64  `json:"group"`
	GroupName        string `json:"group_name,omitempty"`
}

func toSettlementDTO(st *entity.Settlement) settlementDTO {
	return settlementDTO{
		ID:               st.ID,
		ExpenseID:        st.ExpenseID,
		Amount:           st.Amount.StringFixed(2),
		PaymentStatus:    string(st.PaymentStatus),
		SettlementMethod: st.SettlementMethod,
		DueDate:          st.DueDate.Format(dateLayout),
		UserID:           st.UserID,
		GroupID:          st.GroupID,
	}
}

func toSettlementViewDTO(v application.SettlementView) settlementDTO {
	d := toSettlementDTO(v.Settlement)
	d.GroupName = v.GroupName
	return d
}

type categoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
