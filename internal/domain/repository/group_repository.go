package repository

import (
	"context"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
)

// GroupRepository persists groups and their membership.
type GroupRepository interface {
	// Create inserts g and returns ErrDuplicate when the creator already owns a group with that name.
	Create(ctx context.Context, g *entity.Group) error
	GetByID(ctx context.Context, id int64) (*entity.Group, error)
	// AddMember returns ErrDuplicate when the user already belongs to the group.
	AddMember(ctx context.Context, groupID, userID int64) error
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	// ListMembers returns members in join order.
	ListMembers(ctx context.Context, groupID int64) ([]entity.Member, error)
	ListByMemberUsername(ctx context.Context, username string) ([]*entity.Group, error)
	// NamesByIDs resolves display names; unknown ids are absent from the result.
	NamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
}

// CategoryRepository reads expense categories.
type CategoryRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Category, error)
	List(ctx context.Context) ([]*entity.Category, error)
}
