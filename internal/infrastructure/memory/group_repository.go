package memory

import (
	"context"
	"sort"
	"time"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

type GroupRepository struct {
	s *Store
}

func (r *GroupRepository) Create(ctx context.Context, g *entity.Group) error {
	defer r.s.write(ctx)()
	if _, ok := r.s.st.users[g.CreatedBy]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range r.s.st.groups {
		if existing.CreatedBy == g.CreatedBy && existing.Name == g.Name {
			return repository.ErrDuplicate
		}
	}
	g.ID = r.s.nextID()
	g.CreatedAt = time.Now().UTC()
	r.s.st.groups[g.ID] = *g
	return nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*entity.Group, error) {
	defer r.s.read(ctx)()
	g, ok := r.s.st.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &g, nil
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	defer r.s.write(ctx)()
	u, ok := r.s.st.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.st.groups[groupID]; !ok {
		return repository.ErrNotFound
	}
	key := membership{groupID: groupID, userID: userID}
	if _, ok := r.s.st.members[key]; ok {
		return repository.ErrDuplicate
	}
	r.s.st.members[key] = memberRow{
		Member: entity.Member{UserID: userID, Username: u.Username, JoinedAt: time.Now().UTC()},
		order:  r.s.nextID(),
	}
	return nil
}

func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	defer r.s.read(ctx)()
	_, ok := r.s.st.members[membership{groupID: groupID, userID: userID}]
	return ok, nil
}

func (r *GroupRepository) ListMembers(ctx context.Context, groupID int64) ([]entity.Member, error) {
	defer r.s.read(ctx)()
	rows := make([]memberRow, 0)
	for k, m := range r.s.st.members {
		if k.groupID == groupID {
			rows = append(rows, m)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].order < rows[j].order })
	out := make([]entity.Member, len(rows))
	for i, m := range rows {
		out[i] = m.Member
	}
	return out, nil
}

func (r *GroupRepository) ListByMemberUsername(ctx context.Context, username string) ([]*entity.Group, error) {
	defer r.s.read(ctx)()
	var out []*entity.Group
	for k, m := range r.s.st.members {
		if m.Username != username {
			continue
		}
		if g, ok := r.s.st.groups[k.groupID]; ok {
			out = append(out, &g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *GroupRepository) NamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	defer r.s.read(ctx)()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if g, ok := r.s.st.groups[id]; ok {
			out[id] = g.Name
		}
	}
	return out, nil
}

type CategoryRepository struct {
	s *Store
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*entity.Category, error) {
	defer r.s.read(ctx)()
	c, ok := r.s.st.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]*entity.Category, error) {
	defer r.s.read(ctx)()
	out := make([]*entity.Category, 0, len(r.s.st.categories))
	for _, c := range r.s.st.categories {
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var (
	_ repository.GroupRepository    = (*GroupRepository)(nil)
	_ repository.CategoryRepository = (*CategoryRepository)(nil)
)
