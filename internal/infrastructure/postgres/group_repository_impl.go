package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

type GroupRepository struct {
	pool *pgxpool.Pool
}

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

func (r *GroupRepository) Create(ctx context.Context, g *entity.Group) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO groups (name, created_by)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, g.Name, g.CreatedBy)
	return mapErr(row.Scan(&g.ID, &g.CreatedAt))
}

func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*entity.Group, error) {
	g := &entity.Group{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, created_by, created_at FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return g, nil
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, groupID, userID)
	return mapErr(err)
}

func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var ok bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&ok)
	return ok, mapErr(err)
}

func (r *GroupRepository) ListMembers(ctx context.Context, groupID int64) ([]entity.Member, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT u.id, u.username, m.joined_at
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.joined_at, u.id
	`, groupID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []entity.Member
	for rows.Next() {
		var m entity.Member
		if err := rows.Scan(&m.UserID, &m.Username, &m.JoinedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}

func (r *GroupRepository) ListByMemberUsername(ctx context.Context, username string) ([]*entity.Group, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT g.id, g.name, g.created_by, g.created_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		JOIN users u ON u.id = m.user_id
		WHERE u.username = $1
		ORDER BY g.id
	`, username)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*entity.Group
	for rows.Next() {
		g := &entity.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, g)
	}
	return out, mapErr(rows.Err())
}

func (r *GroupRepository) NamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, name FROM groups WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, mapErr(err)
		}
		out[id] = name
	}
	return out, mapErr(rows.Err())
}

type CategoryRepository struct {
	pool *pgxpool.Pool
}

func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*entity.Category, error) {
	c := &entity.Category{}
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]*entity.Category, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*entity.Category
	for rows.Next() {
		c := &entity.Category{}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

var (
	_ repository.GroupRepository    = (*GroupRepository)(nil)
	_ repository.CategoryRepository = (*CategoryRepository)(nil)
)
