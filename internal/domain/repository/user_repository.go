package repository

import (
	"context"
	"errors"

	"github.com/miskit/backoffice/internal/domain/entity"
)

var (
	// ErrNotFound is returned by reads when no live row matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUsername is returned by Create when the username is
	// already taken by a non-deleted user.
	ErrDuplicateUsername = errors.New("duplicate username")
)

// ListFilter narrows and pages a user listing. Zero-value string fields are
// ignored. IncludeAdmins is derived from the caller's identity.
type ListFilter struct {
	Role          string
	Username      string // prefix match
	Name          string // substring match
	IncludeAdmins bool
	PageNow       int
	PageSize      int
}

// UserRepository defines the persistence operations for user records.
// All reads exclude logically deleted rows. The partial-update methods
// return false when no live row matched, so callers can map that to a
// not-found result; each of them is a single guarded UPDATE so concurrent
// edits cannot lose fields.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)

	// UpdateProfile overwrites only the non-nil fields.
	UpdateProfile(ctx context.Context, id int64, name, role *string) (bool, error)

	// UpdatePassword stores newDigest. When oldDigest is non-nil the update
	// only applies if the stored digest matches, atomically.
	UpdatePassword(ctx context.Context, id int64, oldDigest *string, newDigest string) (bool, error)

	SetAvatar(ctx context.Context, id int64, filename string) (bool, error)

	// SoftDelete marks the row deleted; a second call on the same id
	// matches nothing and returns false.
	SoftDelete(ctx context.Context, id int64) (bool, error)

	List(ctx context.Context, f ListFilter) ([]entity.User, int64, error)
}
