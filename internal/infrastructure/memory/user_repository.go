// Package memory provides an in-memory UserRepository used by tests and
// local experiments. Semantics mirror the postgres implementation: reads
// exclude deleted rows, username uniqueness is scoped to live rows, and the
// guarded updates report whether a live row matched.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miskit/backoffice/internal/domain/entity"
	"github.com/miskit/backoffice/internal/domain/repository"
)

type UserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*entity.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{nextID: 1, users: make(map[int64]*entity.User)}
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.users {
		if !e.Deleted && e.Username == u.Username {
			return repository.ErrDuplicateUsername
		}
	}
	u.ID = r.nextID
	r.nextID++
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Deleted {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if !u.Deleted && u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) UsernameTaken(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if !u.Deleted && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id int64, name, role *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Deleted {
		return false, nil
	}
	if name != nil {
		u.Name = *name
	}
	if role != nil {
		u.Role = *role
	}
	u.UpdatedAt = time.Now()
	return true, nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, id int64, oldDigest *string, newDigest string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Deleted {
		return false, nil
	}
	if oldDigest != nil && u.Password != *oldDigest {
		return false, nil
	}
	u.Password = newDigest
	u.UpdatedAt = time.Now()
	return true, nil
}

func (r *UserRepository) SetAvatar(_ context.Context, id int64, filename string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Deleted {
		return false, nil
	}
	u.Avatar = filename
	u.UpdatedAt = time.Now()
	return true, nil
}

func (r *UserRepository) SoftDelete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Deleted {
		return false, nil
	}
	u.Deleted = true
	u.DeletedAt = time.Now()
	u.UpdatedAt = u.DeletedAt
	return true, nil
}

func (r *UserRepository) List(_ context.Context, f repository.ListFilter) ([]entity.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]entity.User, 0, len(r.users))
	for _, u := range r.users {
		if u.Deleted {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Username != "" && !strings.HasPrefix(u.Username, f.Username) {
			continue
		}
		if f.Name != "" && !strings.Contains(u.Name, f.Name) {
			continue
		}
		if !f.IncludeAdmins && u.Role == entity.RoleAdministrator {
			continue
		}
		matched = append(matched, *u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	pageNow := f.PageNow
	if pageNow < 1 {
		pageNow = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	start := (pageNow - 1) * pageSize
	if start >= len(matched) {
		return []entity.User{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
