package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

// GroupService manages groups and their membership.
type GroupService struct {
	Groups     repository.GroupRepository
	Users      repository.UserRepository
	Expenses   repository.ExpenseRepository
	Categories repository.CategoryRepository
	Tx         repository.Transactor
	Logger     *logrus.Logger
}

func NewGroupService(
	groups repository.GroupRepository,
	users repository.UserRepository,
	expenses repository.ExpenseRepository,
	categories repository.CategoryRepository,
	tx repository.Transactor,
	logger *logrus.Logger,
) *GroupService {
	return &GroupService{Groups: groups, Users: users, Expenses: expenses, Categories: categories, Tx: tx, Logger: logger}
}

// CreateGroup persists the group with its creator as the first member.
func (s *GroupService) CreateGroup(ctx context.Context, actor *AuthenticatedUser, name string) (*entity.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidFields(map[string]string{"name": "is required"})
	}
	g := &entity.Group{Name: name, CreatedBy: actor.ID}
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Groups.Create(ctx, g); err != nil {
			return err
		}
		return s.Groups.AddMember(ctx, g.ID, actor.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "you already have a group named %q", name)
		}
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.Logger.WithFields(logrus.Fields{"group_id": g.ID, "user_id": actor.ID}).Info("group created")
	return g, nil
}

// AddMember lets the group creator add another user by username.
func (s *GroupService) AddMember(ctx context.Context, actor *AuthenticatedUser, groupID int64, username string) (*entity.User, error) {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.CreatedBy != actor.ID {
		return nil, newError(ErrForbidden, "only the group creator can add members")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalidFields(map[string]string{"username": "is required"})
	}
	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	member, err := s.Groups.IsMember(ctx, g.ID, u.ID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member {
		return nil, newError(ErrConflict, "user is already a member of the group")
	}
	if err := s.Groups.AddMember(ctx, g.ID, u.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "user is already a member of the group")
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return u, nil
}

// GroupDetails is the member-only view of a group.
type GroupDetails struct {
	Group            *entity.Group
	Members          []entity.Member
	Expenses         []*entity.Expense
	AvailableMembers []*entity.User
}

func (s *GroupService) GetGroupDetails(ctx context.Context, actor *AuthenticatedUser, groupID int64) (*GroupDetails, error) {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.Groups.ListMembers(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	inGroup := make(map[int64]bool, len(members))
	for _, m := range members {
		inGroup[m.UserID] = true
	}
	if !inGroup[actor.ID] {
		return nil, newError(ErrForbidden, "you are not a member of this group")
	}

	expenses, err := s.Expenses.ListByGroup(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	peers, err := s.Users.ListByCollege(ctx, actor.College)
	if err != nil {
		return nil, fmt.Errorf("list college users: %w", err)
	}
	available := make([]*entity.User, 0, len(peers))
	for _, u := range peers {
		if u.ID != actor.ID && !inGroup[u.ID] {
			available = append(available, u)
		}
	}
	return &GroupDetails{Group: g, Members: members, Expenses: expenses, AvailableMembers: available}, nil
}

// ListUserGroups returns the groups username belongs to, or an empty list.
func (s *GroupService) ListUserGroups(ctx context.Context, username string) ([]*entity.Group, error) {
	groups, err := s.Groups.ListByMemberUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if groups == nil {
		groups = []*entity.Group{}
	}
	return groups, nil
}

func (s *GroupService) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	cats, err := s.Categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *GroupService) group(ctx context.Context, id int64) (*entity.Group, error) {
	g, err := s.Groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, "group not found")
		}
		return nil, fmt.Errorf("load group: %w", err)
	}
	return g, nil
}
