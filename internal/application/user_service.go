package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/miskit/backoffice/internal/domain/entity"
	repo "github.com/miskit/backoffice/internal/domain/repository"
	"github.com/miskit/backoffice/pkg/helpers"
	"github.com/miskit/backoffice/pkg/mailer"
	"github.com/miskit/backoffice/pkg/storage"
)

var (
	ErrValidation         = errors.New("missing or blank required field")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrWrongPassword      = errors.New("incorrect original password")
	ErrForbidden          = errors.New("operation not permitted")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service implements the user-record lifecycle: creation with default
// credentials, profile updates, password changes, avatar upload, logical
// deletion and identity-scoped listing.
type Service struct {
	Repo            repo.UserRepository
	JWT             *helpers.JWTManager
	Avatars         storage.Store
	Redis           *redis.Client
	Logger          *logrus.Logger
	Pub             *helpers.RabbitPublisher
	ES              *elasticsearch.Client
	ESUsersIndex    string
	DefaultPassword string
}

func NewService(r repo.UserRepository, jwt *helpers.JWTManager, avatars storage.Store, rdb *redis.Client, logger *logrus.Logger, pub *helpers.RabbitPublisher, es *elasticsearch.Client, esUsersIndex, defaultPassword string) *Service {
	return &Service{
		Repo:            r,
		JWT:             jwt,
		Avatars:         avatars,
		Redis:           rdb,
		Logger:          logger,
		Pub:             pub,
		ES:              es,
		ESUsersIndex:    esUsersIndex,
		DefaultPassword: defaultPassword,
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

type AddUserInput struct {
	Name     string
	Username string
	Role     string
	Email    string
}

// AddUser creates an account with the configured default password and the
// default avatar. The store is never touched when validation fails.
func (s *Service) AddUser(ctx context.Context, in AddUserInput) (*entity.User, error) {
	if blank(in.Name) || blank(in.Username) || blank(in.Role) {
		return nil, ErrValidation
	}
	taken, err := s.Repo.UsernameTaken(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	u := &entity.User{
		Name:     in.Name,
		Username: in.Username,
		Role:     in.Role,
		Password: helpers.Digest(s.DefaultPassword),
		Avatar:   entity.DefaultAvatar,
		Email:    in.Email,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		// The pre-check races with concurrent creates; the partial unique
		// index is the authority.
		if errors.Is(err, repo.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.notify(ctx, u, mailer.KindAccountCreated)
	s.indexUser(ctx, u)
	return u, nil
}

type UpdateUserInput struct {
	Name string
	Role string
}

// UpdateByAdmin overwrites name and/or role of any account. Username and
// avatar are immutable through this path; blank fields are left untouched.
func (s *Service) UpdateByAdmin(ctx context.Context, userID int64, in UpdateUserInput) (*entity.User, error) {
	return s.updateProfile(ctx, userID, in.Name, in.Role)
}

// UpdateSelf lets the record owner change their own display name. The
// handler has already verified ownership; role stays untouched here no
// matter what the request carried.
func (s *Service) UpdateSelf(ctx context.Context, ident entity.Identity, userID int64, name string) (*entity.User, error) {
	if ident.UserID != userID {
		return nil, ErrForbidden
	}
	return s.updateProfile(ctx, userID, name, "")
}

func (s *Service) updateProfile(ctx context.Context, userID int64, name, role string) (*entity.User, error) {
	if _, err := s.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	var namePtr, rolePtr *string
	if !blank(name) {
		namePtr = &name
	}
	if !blank(role) {
		rolePtr = &role
	}
	if namePtr != nil || rolePtr != nil {
		ok, err := s.Repo.UpdateProfile(ctx, userID, namePtr, rolePtr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUserNotFound
		}
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.indexUser(ctx, u)
	return u, nil
}

// GetByID returns the live record or ErrUserNotFound; deleted accounts are
// invisible to every read path.
func (s *Service) GetByID(ctx context.Context, userID int64) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Delete applies the logical-delete convention: the row is marked deleted
// and drops out of all lookups, and its username becomes reusable. Deleting
// an already-deleted account reports not found.
func (s *Service) Delete(ctx context.Context, userID int64) error {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.Repo.SoftDelete(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	s.Logger.WithFields(logrus.Fields{"user_id": userID, "name": u.Name}).Info("user deleted")
	s.removeFromIndex(ctx, userID)
	return nil
}

type ChangePasswordInput struct {
	OldPassword string // empty on the recovery path
	NewPassword string
}

// ChangePassword stores the digest of the new password. When an old
// password is supplied its digest must match the stored one, enforced by an
// atomic compare-and-set. The recovery flow supplies no old password and
// skips verification entirely.
func (s *Service) ChangePassword(ctx context.Context, userID int64, in ChangePasswordInput) error {
	if blank(in.NewPassword) {
		return ErrValidation
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	newDigest := helpers.Digest(in.NewPassword)
	var oldDigest *string
	if !blank(in.OldPassword) {
		d := helpers.Digest(in.OldPassword)
		if d != u.Password {
			return ErrWrongPassword
		}
		oldDigest = &d
	}
	ok, err := s.Repo.UpdatePassword(ctx, userID, oldDigest, newDigest)
	if err != nil {
		return err
	}
	if !ok {
		// The stored digest moved between our read and the update.
		if oldDigest != nil {
			return ErrWrongPassword
		}
		return ErrUserNotFound
	}

	s.notify(ctx, u, mailer.KindPasswordChanged)
	return nil
}

// UploadAvatar stores the file under "<userId><ext>", overwriting any prior
// avatar at that name, and records the filename on the user. Returns the
// public path of the stored file.
func (s *Service) UploadAvatar(ctx context.Context, userID int64, r io.Reader, filename string, size int64, contentType string) (string, error) {
	if _, err := s.GetByID(ctx, userID); err != nil {
		return "", err
	}
	if size == 0 {
		return "", ErrValidation
	}

	name := fmt.Sprintf("%d%s", userID, strings.ToLower(filepath.Ext(filename)))
	publicPath, err := s.Avatars.Save(ctx, name, contentType, r)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error("avatar write failed")
		return "", err
	}
	ok, err := s.Repo.SetAvatar(ctx, userID, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUserNotFound
	}
	return publicPath, nil
}

type ListInput struct {
	PageNow  int
	PageSize int
	Role     string
	Username string
	Name     string
}

// List returns one page of users plus the total count. Results are scoped
// by the caller's identity: non-administrators never see administrator
// accounts. Deleted rows are always excluded.
func (s *Service) List(ctx context.Context, ident entity.Identity, in ListInput) ([]entity.User, int64, error) {
	f := repo.ListFilter{
		Role:          in.Role,
		Username:      in.Username,
		Name:          in.Name,
		IncludeAdmins: ident.IsAdministrator(),
		PageNow:       in.PageNow,
		PageSize:      in.PageSize,
	}
	return s.Repo.List(ctx, f)
}

func (s *Service) notify(ctx context.Context, u *entity.User, kind string) {
	if s.Pub == nil || u.Email == "" {
		return
	}
	job := mailer.EmailJob{
		To:   u.Email,
		Kind: kind,
		Data: map[string]any{"name": u.Name, "username": u.Username},
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("email job publish failed")
	}
}
