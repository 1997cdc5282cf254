package memory

import (
	"context"
	"sort"
	"time"

	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	defer r.s.write(ctx)()
	for _, existing := range r.s.st.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if r.s.codeTakenLocked(u.VerificationCode, 0) {
		return repository.ErrCodeInUse
	}
	now := time.Now().UTC()
	u.ID = r.s.nextID()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.st.users[u.ID] = copyUser(*u)
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	defer r.s.read(ctx)()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.find(ctx, func(u entity.User) bool { return u.Email == email })
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.find(ctx, func(u entity.User) bool { return u.Username == username })
}

func (r *UserRepository) find(ctx context.Context, match func(entity.User) bool) (*entity.User, error) {
	defer r.s.read(ctx)()
	for _, u := range r.s.st.users {
		if match(u) {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, bool, error) {
	defer r.s.read(ctx)()
	var usernameTaken, emailTaken bool
	for _, u := range r.s.st.users {
		usernameTaken = usernameTaken || u.Username == username
		emailTaken = emailTaken || u.Email == email
	}
	return usernameTaken, emailTaken, nil
}

func (r *UserRepository) VerificationCodeInUse(ctx context.Context, code string) (bool, error) {
	defer r.s.read(ctx)()
	for _, u := range r.s.st.users {
		if u.VerificationCode != nil && *u.VerificationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) ListByCollege(ctx context.Context, college string) ([]*entity.User, error) {
	defer r.s.read(ctx)()
	var out []*entity.User
	for _, u := range r.s.st.users {
		if u.College == college {
			c := copyUser(u)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	defer r.s.write(ctx)()
	if _, ok := r.s.st.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, existing := range r.s.st.users {
		if id != u.ID && (existing.Username == u.Username || existing.Email == u.Email) {
			return repository.ErrDuplicate
		}
	}
	if r.s.codeTakenLocked(u.VerificationCode, u.ID) {
		return repository.ErrCodeInUse
	}
	u.UpdatedAt = time.Now().UTC()
	r.s.st.users[u.ID] = copyUser(*u)
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	defer r.s.write(ctx)()
	u, ok := r.s.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	r.s.st.users[id] = u
	return nil
}

// Delete removes the user together with the rows that cascade from it in SQL.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	defer r.s.write(ctx)()
	if _, ok := r.s.st.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.st.users, id)
	for gid, g := range r.s.st.groups {
		if g.CreatedBy == id {
			r.s.deleteGroupLocked(gid)
		}
	}
	for k := range r.s.st.members {
		if k.userID == id {
			delete(r.s.st.members, k)
		}
	}
	for eid, e := range r.s.st.expenses {
		if e.CreatedBy == id {
			r.s.deleteExpenseLocked(eid)
		}
	}
	for sid, st := range r.s.st.settlements {
		if st.UserID == id {
			delete(r.s.st.settlements, sid)
		}
	}
	return nil
}

func (s *Store) deleteGroupLocked(groupID int64) {
	delete(s.st.groups, groupID)
	for k := range s.st.members {
		if k.groupID == groupID {
			delete(s.st.members, k)
		}
	}
	for id, e := range s.st.expenses {
		if e.GroupID == groupID {
			delete(s.st.expenses, id)
		}
	}
	for id, st := range s.st.settlements {
		if st.GroupID == groupID {
			delete(s.st.settlements, id)
		}
	}
}

func (s *Store) deleteExpenseLocked(expenseID int64) {
	delete(s.st.expenses, expenseID)
	for id, st := range s.st.settlements {
		if st.ExpenseID == expenseID {
			delete(s.st.settlements, id)
		}
	}
}

// codeTakenLocked reports whether a user other than self holds code.
func (s *Store) codeTakenLocked(code *string, self int64) bool {
	if code == nil {
		return false
	}
	for id, u := range s.st.users {
		if id != self && u.VerificationCode != nil && *u.VerificationCode == *code {
			return true
		}
	}
	return false
}

// copyUser detaches the pointer fields so callers cannot mutate stored rows.
func copyUser(u entity.User) entity.User {
	if u.VerificationCode != nil {
		code := *u.VerificationCode
		u.VerificationCode = &code
	}
	if u.VerificationCodeCreatedAt != nil {
		at := *u.VerificationCodeCreatedAt
		u.VerificationCodeCreatedAt = &at
	}
	return u
}

var _ repository.UserRepository = (*UserRepository)(nil)
