package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
	"github.com/oksasatya/go-expense-split/pkg/response"
)

// UsernameHeader names the caller on group routes.
const UsernameHeader = "X-Username"

type GroupHandler struct {
	Svc    *application.GroupService
	Logger *logrus.Logger
}

func NewGroupHandler(svc *application.GroupService, logger *logrus.Logger) *GroupHandler {
	return &GroupHandler{Svc: svc, Logger: logger}
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type addMemberRequest struct {
	Username string `json:"username" binding:"omitempty,username"`
}

// List GET /api/groups
// The member is taken from the X-Username header.
func (h *GroupHandler) List(c *gin.Context) {
	username := strings.TrimSpace(c.GetHeader(UsernameHeader))
	if username == "" {
		response.Error[any](c, http.StatusUnauthorized, "authentication required to fetch groups", nil)
		return
	}
	groups, err := h.Svc.ListUserGroups(c.Request.Context(), username)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	out := make([]groupDTO, len(groups))
	for i, g := range groups {
		out[i] = toGroupDTO(g)
	}
	msg := "groups"
	if len(out) == 0 {
		msg = "you are not a member of any group"
	}
	response.Success(c, http.StatusOK, gin.H{"groups": out}, msg, nil)
}

// Create POST /api/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	g, err := h.Svc.CreateGroup(c.Request.Context(), middleware.CurrentUser(c), req.Name)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toGroupDTO(g), "group created", nil)
}

// Details GET /api/groups/:id
// When X-Username is sent it must name the authenticated user.
func (h *GroupHandler) Details(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	if username, ok := c.Request.Header[UsernameHeader]; ok && (len(username) == 0 || username[0] != actor.Username) {
		response.Error[any](c, http.StatusForbidden, "invalid username for the authenticated user", nil)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.Svc.GetGroupDetails(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}

	group := struct {
		groupDTO
		Members []memberDTO `json:"members"`
	}{groupDTO: toGroupDTO(d.Group), Members: make([]memberDTO, len(d.Members))}
	for i, m := range d.Members {
		group.Members[i] = memberDTO{Username: m.Username}
	}
	expenses := make([]expenseDTO, len(d.Expenses))
	for i, e := range d.Expenses {
		expenses[i] = toExpenseDTO(e)
	}
	available := make([]memberDTO, len(d.AvailableMembers))
	for i, u := range d.AvailableMembers {
		available[i] = memberDTO{Username: u.Username}
	}
	response.Success(c, http.StatusOK, gin.H{
		"group":             group,
		"expenses":          expenses,
		"available_members": available,
	}, "group details", nil)
}

// AddMember POST /api/groups/:id/add_member
func (h *GroupHandler) AddMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	u, err := h.Svc.AddMember(c.Request.Context(), middleware.CurrentUser(c), id, req.Username)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, memberDTO{Username: u.Username}, u.Username+" added to the group", nil)
}

// Categories GET /api/categories
func (h *GroupHandler) Categories(c *gin.Context) {
	cats, err := h.Svc.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	out := make([]categoryDTO, len(cats))
	for i, ct := range cats {
		out[i] = categoryDTO{ID: ct.ID, Name: ct.Name}
	}
	response.Success(c, http.StatusOK, out, "categories", nil)
}

// pathID parses a positive integer path parameter, writing 400 on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error[any](c, http.StatusBadRequest, "invalid "+name, map[string]string{name: "must be a positive integer"})
		return 0, false
	}
	return id, true
}
