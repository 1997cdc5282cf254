package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
	"github.com/oksasatya/go-expense-split/pkg/response"
)

// MaxReceiptBytes caps multipart expense uploads.
const MaxReceiptBytes = 10 << 20

type ExpenseHandler struct {
	Svc    *application.ExpenseService
	Logger *logrus.Logger
}

func NewExpenseHandler(svc *application.ExpenseService, logger *logrus.Logger) *ExpenseHandler {
	return &ExpenseHandler{Svc: svc, Logger: logger}
}

type addExpenseRequest struct {
	Amount           flexAmount `json:"amount"`
	Category         flexID     `json:"category"`
	SplitType        string     `json:"split_type"`
	Date             string     `json:"date"`
	DueDate          string     `json:"due_date"`
	SettlementMethod string     `json:"settlement_method"`
}

type updateSettlementRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required,paystatus"`
}

// Add POST /api/expenses/:groupId
// Accepts a JSON body, or multipart/form-data with an optional "receipt" file.
func (h *ExpenseHandler) Add(c *gin.Context) {
	groupID, ok := pathID(c, "groupId")
	if !ok {
		return
	}

	var req addExpenseRequest
	var receipt *application.Receipt
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxReceiptBytes)
		if err := c.Request.ParseMultipartForm(MaxReceiptBytes); err != nil {
			response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"payload": "invalid multipart form"})
			return
		}
		req.Amount = flexAmount(c.PostForm("amount"))
		if v := strings.TrimSpace(c.PostForm("category")); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				response.Error[any](c, http.StatusBadRequest, "validation failed", map[string]string{"category": "must be an integer"})
				return
			}
			req.Category = flexID(id)
		}
		req.SplitType = c.PostForm("split_type")
		req.Date = c.PostForm("date")
		req.DueDate = c.PostForm("due_date")
		req.SettlementMethod = c.PostForm("settlement_method")

		if fh, err := c.FormFile("receipt"); err == nil {
			f, err := fh.Open()
			if err != nil {
				writeError(c, h.Logger, err)
				return
			}
			defer f.Close()
			receipt = &application.Receipt{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Body:        f,
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	in := application.AddExpenseInput{
		Amount:           string(req.Amount),
		CategoryID:       int64(req.Category),
		SplitType:        req.SplitType,
		SettlementMethod: req.SettlementMethod,
		Receipt:          receipt,
	}
	fields := map[string]string{}
	in.Date = parseDate(req.Date, "date", fields)
	in.DueDate = parseDate(req.DueDate, "due_date", fields)
	if len(fields) > 0 {
		response.Error[any](c, http.StatusBadRequest, "validation failed", fields)
		return
	}

	res, err := h.Svc.AddExpense(c.Request.Context(), middleware.CurrentUser(c), groupID, in)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	settlements := make([]settlementDTO, len(res.Settlements))
	for i, st := range res.Settlements {
		settlements[i] = toSettlementDTO(st)
	}
	response.Success(c, http.StatusCreated, gin.H{
		"expense":     toExpenseDTO(res.Expense),
		"settlements": settlements,
	}, "expense added", nil)
}

// UpdateSettlement PATCH /api/settlements/:id
func (h *ExpenseHandler) UpdateSettlement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	st, err := h.Svc.UpdateSettlementStatus(c.Request.Context(), middleware.CurrentUser(c), id, req.PaymentStatus)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toSettlementDTO(st), "settlement updated", nil)
}

// ListSettlements GET /api/settlements/:username
// Callers may only list their own settlements.
func (h *ExpenseHandler) ListSettlements(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	if c.Param("username") != actor.Username {
		response.Error[any](c, http.StatusForbidden, "you can only view your own settlements", nil)
		return
	}
	views, err := h.Svc.ListSettlements(c.Request.Context(), actor)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	out := make([]settlementDTO, len(views))
	for i, v := range views {
		out[i] = toSettlementViewDTO(v)
	}
	response.Success(c, http.StatusOK, gin.H{"settlements": out}, "settlements", nil)
}

// parseDate returns nil for an empty value and records a field error for a malformed one.
func parseDate(v, field string, fields map[string]string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		fields[field] = "must match datetime format: " + dateLayout
		return nil
	}
	return &t
}
